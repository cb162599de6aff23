package model

// Verdicts a judged submission can end with. Failures caught while running
// (time limit, runtime errors) carry their message as the verdict text, so
// this list is not exhaustive.
const (
	VerdictOK              = "OK"
	VerdictPartialSolution = "PartialSolution"
	VerdictWrongAnswer     = "WrongAnswer"
	VerdictTimeLimit       = "time limit exceeded"
)

// JudgeResult is the outcome of judging one submission.
type JudgeResult struct {
	SubmissionID string `json:"submission_id"`
	UserID       int64  `json:"user_id"`
	TaskID       int64  `json:"task_id"`
	Verdict      string `json:"verdict"`
	TestsPassed  int    `json:"tests_passed"`
	TotalTests   int    `json:"total_tests"`
}

// Accepted reports whether every test passed.
func (r *JudgeResult) Accepted() bool {
	return r.Verdict == VerdictOK
}

// Score is the fraction of tests passed, in [0, 1].
func (r *JudgeResult) Score() float64 {
	if r.TotalTests == 0 {
		return 0
	}
	return float64(r.TestsPassed) / float64(r.TotalTests)
}
