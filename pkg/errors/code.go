package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: User & Auth module errors
// 12000-12999: Task module errors
// 13000-13999: Submission & Judge module errors
// 14000-14999: Match module errors
// 15000-15999: Leaderboard errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10303

	// ========== User & Auth Module Errors (11000-11999) ==========

	InvalidCredentials    ErrorCode = 11000
	UserNotFound          ErrorCode = 11001
	TokenExpired          ErrorCode = 11003
	TokenInvalid          ErrorCode = 11004
	TokenGenerationFailed ErrorCode = 11005
	EmailAlreadyExists    ErrorCode = 11101
	InvalidPassword       ErrorCode = 11104
	AccountSuspended      ErrorCode = 11203

	// ========== Task Module Errors (12000-12999) ==========

	TaskNotFound        ErrorCode = 12000
	TaskCreateFailed    ErrorCode = 12002
	TaskUpdateFailed    ErrorCode = 12003
	TaskDeleteFailed    ErrorCode = 12004
	TestCaseNotFound    ErrorCode = 12100
	TestCaseInvalid     ErrorCode = 12102
	TaskGenerateFailed  ErrorCode = 12200
	TaskPackInvalid     ErrorCode = 12201
	TaskPackExportError ErrorCode = 12202

	// ========== Submission & Judge Module Errors (13000-13999) ==========

	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	ProgramMissing         ErrorCode = 13002
	SubmitTooFrequently    ErrorCode = 13004
	JudgeSystemError       ErrorCode = 13101

	// ========== Match Module Errors (14000-14999) ==========

	MatchNotFound       ErrorCode = 14000
	MatchNotMember      ErrorCode = 14001
	MatchRoomFull       ErrorCode = 14002
	MatchAlreadyDone    ErrorCode = 14003
	MatchCreateFailed   ErrorCode = 14004
	MatchFinalizeFailed ErrorCode = 14005

	// ========== Leaderboard Errors (15000-15999) ==========

	RankingNotAvailable ErrorCode = 15000
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	InvalidCredentials:    "Invalid email or password",
	UserNotFound:          "User not found",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",
	EmailAlreadyExists:    "Email already exists",
	InvalidPassword:       "Invalid password format",
	AccountSuspended:      "Account has been suspended",

	TaskNotFound:        "Task not found",
	TaskCreateFailed:    "Failed to create task",
	TaskUpdateFailed:    "Failed to update task",
	TaskDeleteFailed:    "Failed to delete task",
	TestCaseNotFound:    "Test case not found",
	TestCaseInvalid:     "Invalid test case",
	TaskGenerateFailed:  "Task generation failed",
	TaskPackInvalid:     "Invalid task pack",
	TaskPackExportError: "Failed to export task pack",

	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	ProgramMissing:         "Submitted program file is missing",
	SubmitTooFrequently:    "Submitting too frequently, please wait",
	JudgeSystemError:       "Judge system error",

	MatchNotFound:       "Match not found",
	MatchNotMember:      "Not a member of this match",
	MatchRoomFull:       "Match room is full",
	MatchAlreadyDone:    "Match is already finished",
	MatchCreateFailed:   "Failed to create match",
	MatchFinalizeFailed: "Failed to finalize match",

	RankingNotAvailable: "Ranking is not available",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Forbidden, c == MatchNotMember, c == AccountSuspended:
		return 403
	case c == NotFound, c == UserNotFound, c == TaskNotFound, c == MatchNotFound, c == SubmissionNotFound, c == TestCaseNotFound:
		return 404
	case c == Unauthorized, c >= 11000 && c < 11100: // Authentication errors
		return 401
	case c == MatchRoomFull, c == MatchAlreadyDone, c == EmailAlreadyExists:
		return 400
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == ProgramMissing, c == TaskPackInvalid:
		return 400
	default:
		return 500
	}
}
