package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/mq"
	"codearena/internal/common/storage"
	"codearena/internal/judge/model"
	"codearena/internal/judge/runner"
	submissionrepo "codearena/internal/submission/repository"
	"codearena/internal/task/repository"
	taskservice "codearena/internal/task/service"
	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicVerdict is the Kafka topic verdict events are published to.
const TopicVerdict = "judge.verdict"

const defaultTimeLimit = 2 * time.Second

// submitLockTTL bounds how long a stuck judge run can hold a user's slot.
const submitLockTTL = 30 * time.Second

// Config bundles the judge service dependencies. Storage, Producer and Cache
// are optional; without them program archiving, verdict events and the
// per-user submit lock are skipped.
type Config struct {
	Tasks       *taskservice.Service
	Submissions submissionrepo.SubmissionRepository
	Runner      runner.ProgramRunner
	Storage     storage.ObjectStorage
	Bucket      string
	Producer    mq.Producer
	Cache       cache.Cache
	WorkDir     string
}

// Service judges submissions: it runs contestant programs against the test
// cases of a task and records the outcome.
type Service struct {
	tasks       *taskservice.Service
	submissions submissionrepo.SubmissionRepository
	runner      runner.ProgramRunner
	storage     storage.ObjectStorage
	bucket      string
	producer    mq.Producer
	cache       cache.Cache
	workDir     string
}

// NewService creates a judge service from cfg.
func NewService(cfg Config) (*Service, error) {
	if cfg.Tasks == nil {
		return nil, errors.New("task service is required")
	}
	if cfg.Submissions == nil {
		return nil, errors.New("submission repository is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("program runner is required")
	}
	if cfg.Storage != nil && cfg.Bucket == "" {
		return nil, errors.New("bucket is required when storage is set")
	}
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Service{
		tasks:       cfg.Tasks,
		submissions: cfg.Submissions,
		runner:      cfg.Runner,
		storage:     cfg.Storage,
		bucket:      cfg.Bucket,
		producer:    cfg.Producer,
		cache:       cfg.Cache,
		workDir:     workDir,
	}, nil
}

// Request describes one submission to judge. Code tasks carry the program
// bytes; quiz tasks carry the answer text instead.
type Request struct {
	SubmissionID string
	UserID       int64
	TaskID       int64
	Program      []byte
	Answer       string
}

// Judge runs a submission and records the result. Every judged submission is
// persisted, whatever the verdict.
func (s *Service) Judge(ctx context.Context, req Request) (*model.JudgeResult, error) {
	if req.UserID <= 0 || req.TaskID <= 0 {
		return nil, appErrors.BadRequest("user and task are required")
	}
	if req.SubmissionID == "" {
		req.SubmissionID = uuid.NewString()
	}

	// One judge run per user at a time. A second submission while the first
	// is still running is rejected instead of queued.
	if s.cache != nil {
		lockKey := fmt.Sprintf("judge:lock:user:%d", req.UserID)
		acquired, err := s.cache.TryLock(ctx, lockKey, submitLockTTL)
		if err != nil {
			return nil, appErrors.Wrapf(err, appErrors.JudgeSystemError, "acquire submit lock: %v", err)
		}
		if !acquired {
			return nil, appErrors.New(appErrors.SubmitTooFrequently)
		}
		defer func() {
			if err := s.cache.Unlock(ctx, lockKey); err != nil {
				logger.Warn(ctx, "submit lock release failed",
					zap.Int64("user_id", req.UserID),
					zap.Error(err))
			}
		}()
	}

	tc, err := s.tasks.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if len(tc.Cases) == 0 {
		return nil, appErrors.Newf(appErrors.TestCaseNotFound, "task %d has no test cases", req.TaskID)
	}

	var result *model.JudgeResult
	if tc.Task.Kind == repository.TaskKindQuiz {
		result = s.judgeQuiz(req, tc)
	} else {
		if len(req.Program) == 0 {
			return nil, appErrors.New(appErrors.ProgramMissing)
		}
		result, err = s.judgeCode(ctx, req, tc)
		if err != nil {
			return nil, err
		}
	}

	if err := s.record(ctx, result); err != nil {
		return nil, err
	}
	s.publishVerdict(ctx, result)

	logger.Info(ctx, "submission judged",
		zap.String("submission_id", result.SubmissionID),
		zap.Int64("user_id", result.UserID),
		zap.Int64("task_id", result.TaskID),
		zap.String("verdict", result.Verdict),
		zap.Int("tests_passed", result.TestsPassed),
		zap.Int("total_tests", result.TotalTests))
	return result, nil
}

// judgeCode runs the program once per test case, stopping at the first
// failure that indicates a broken program (timeout or runtime error). Wrong
// answers do not stop the run; remaining cases can still earn credit.
func (s *Service) judgeCode(ctx context.Context, req Request, tc *taskservice.TaskWithCases) (*model.JudgeResult, error) {
	dir, err := os.MkdirTemp(s.workDir, "judge-*")
	if err != nil {
		return nil, appErrors.Wrapf(err, appErrors.JudgeSystemError, "stage workspace: %v", err)
	}
	defer os.RemoveAll(dir)

	programPath := filepath.Join(dir, "program")
	if err := os.WriteFile(programPath, req.Program, 0o755); err != nil {
		return nil, appErrors.Wrapf(err, appErrors.JudgeSystemError, "write program: %v", err)
	}
	s.archiveProgram(ctx, req)

	timeout := defaultTimeLimit
	if tc.Task.TimeLimitSec > 0 {
		timeout = time.Duration(tc.Task.TimeLimitSec) * time.Second
	}

	result := &model.JudgeResult{
		SubmissionID: req.SubmissionID,
		UserID:       req.UserID,
		TaskID:       req.TaskID,
		TotalTests:   len(tc.Cases),
	}

	for _, c := range tc.Cases {
		run, err := s.runner.Run(ctx, programPath, c.Input, timeout)
		if err != nil {
			return nil, appErrors.Wrapf(err, appErrors.JudgeSystemError, "run program: %v", err)
		}
		if run.TimedOut {
			result.Verdict = model.VerdictTimeLimit
			return result, nil
		}
		if msg := lastLine(run.Stderr); msg != "" {
			result.Verdict = msg
			return result, nil
		}
		if strings.TrimSpace(run.Stdout) == strings.TrimSpace(c.Expected) {
			result.TestsPassed++
		}
	}

	if result.TestsPassed == result.TotalTests {
		result.Verdict = model.VerdictOK
	} else {
		result.Verdict = model.VerdictPartialSolution
	}
	return result, nil
}

// judgeQuiz compares the answer against the single expected value,
// case-insensitively.
func (s *Service) judgeQuiz(req Request, tc *taskservice.TaskWithCases) *model.JudgeResult {
	result := &model.JudgeResult{
		SubmissionID: req.SubmissionID,
		UserID:       req.UserID,
		TaskID:       req.TaskID,
		TotalTests:   1,
	}
	expected := strings.TrimSpace(tc.Cases[0].Expected)
	answer := strings.TrimSpace(req.Answer)
	if strings.EqualFold(answer, expected) {
		result.Verdict = model.VerdictOK
		result.TestsPassed = 1
	} else {
		result.Verdict = model.VerdictWrongAnswer
	}
	return result
}

func (s *Service) record(ctx context.Context, result *model.JudgeResult) error {
	sub := &submissionrepo.Submission{
		SubmissionID: result.SubmissionID,
		UserID:       result.UserID,
		TaskID:       result.TaskID,
		Verdict:      result.Verdict,
		TestsPassed:  result.TestsPassed,
		TotalTests:   result.TotalTests,
	}
	if err := s.submissions.Create(ctx, nil, sub); err != nil {
		return appErrors.Wrapf(err, appErrors.SubmissionCreateFailed, "record submission: %v", err)
	}
	return nil
}

// archiveProgram uploads the submitted program for later inspection. Failures
// only log; judging proceeds.
func (s *Service) archiveProgram(ctx context.Context, req Request) {
	if s.storage == nil {
		return
	}
	key := fmt.Sprintf("submissions/%s/program", req.SubmissionID)
	err := s.storage.PutObject(ctx, s.bucket, key,
		bytes.NewReader(req.Program), int64(len(req.Program)), "application/octet-stream")
	if err != nil {
		logger.Warn(ctx, "program archive failed",
			zap.String("submission_id", req.SubmissionID),
			zap.Error(err))
	}
}

// publishVerdict emits the verdict event. Best effort; the submission row is
// already durable.
func (s *Service) publishVerdict(ctx context.Context, result *model.JudgeResult) {
	if s.producer == nil {
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		return
	}
	msg := mq.NewMessage(body)
	msg.ID = result.SubmissionID
	if err := s.producer.Publish(ctx, TopicVerdict, msg); err != nil {
		logger.Warn(ctx, "verdict event publish failed",
			zap.String("submission_id", result.SubmissionID),
			zap.Error(err))
	}
}

// lastLine returns the final non-empty line of s, or "" when s is blank.
func lastLine(s string) string {
	s = strings.TrimRight(s, "\n\r \t")
	if s == "" {
		return ""
	}
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return strings.TrimSpace(s)
}
