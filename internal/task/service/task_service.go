package service

import (
	"context"
	"errors"
	"strings"

	"codearena/internal/common/db"
	"codearena/internal/task/repository"
	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// Config bundles the task service dependencies.
type Config struct {
	DB        db.Provider
	Tasks     repository.TaskRepository
	TestCases repository.TestCaseRepository
	Generator TaskGenerator
}

// Service manages task lifecycle: authoring, generation and lookup.
type Service struct {
	db        db.Provider
	tasks     repository.TaskRepository
	testCases repository.TestCaseRepository
	generator TaskGenerator
}

// NewService creates a task service from cfg.
func NewService(cfg Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("db provider is required")
	}
	if cfg.Tasks == nil {
		return nil, errors.New("task repository is required")
	}
	if cfg.TestCases == nil {
		return nil, errors.New("test case repository is required")
	}
	return &Service{
		db:        cfg.DB,
		tasks:     cfg.Tasks,
		testCases: cfg.TestCases,
		generator: cfg.Generator,
	}, nil
}

// TaskWithCases pairs a task with its test cases.
type TaskWithCases struct {
	Task  *repository.Task       `json:"task"`
	Cases []*repository.TestCase `json:"cases"`
}

// CreateTask stores a task together with its test cases in one transaction.
func (s *Service) CreateTask(ctx context.Context, task *repository.Task, cases []*repository.TestCase) error {
	if task == nil {
		return appErrors.BadRequest("task is required")
	}
	if len(cases) == 0 {
		return appErrors.ValidationError("cases", "at least one test case is required")
	}
	if task.Kind == repository.TaskKindQuiz && len(cases) != 1 {
		return appErrors.ValidationError("cases", "quiz tasks carry exactly one answer case")
	}
	if task.MemoryLimitMB <= 0 {
		task.MemoryLimitMB = repository.DefaultMemoryLimitMB
	}

	database, err := db.CurrentDatabase(s.db)
	if err != nil {
		return appErrors.InternalError(err)
	}
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.tasks.Create(ctx, tx, task); err != nil {
			return err
		}
		return s.testCases.CreateBatch(ctx, tx, task.ID, cases)
	})
	if err != nil {
		return appErrors.Wrapf(err, appErrors.TaskCreateFailed, "create task: %v", err)
	}
	logger.Info(ctx, "task created",
		zap.Int64("task_id", task.ID),
		zap.String("subject", task.Subject),
		zap.Int("cases", len(cases)))
	return nil
}

// UpdateTask rewrites an existing task. When cases is non-empty the stored
// test cases are replaced wholesale in the same transaction.
func (s *Service) UpdateTask(ctx context.Context, task *repository.Task, cases []*repository.TestCase) error {
	if task == nil || task.ID <= 0 {
		return appErrors.BadRequest("task id is required")
	}
	if task.Kind == repository.TaskKindQuiz && len(cases) > 0 && len(cases) != 1 {
		return appErrors.ValidationError("cases", "quiz tasks carry exactly one answer case")
	}
	if task.MemoryLimitMB <= 0 {
		task.MemoryLimitMB = repository.DefaultMemoryLimitMB
	}

	database, err := db.CurrentDatabase(s.db)
	if err != nil {
		return appErrors.InternalError(err)
	}
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.tasks.Update(ctx, tx, task); err != nil {
			return err
		}
		if len(cases) == 0 {
			return nil
		}
		if err := s.testCases.DeleteByTaskID(ctx, tx, task.ID); err != nil {
			return err
		}
		return s.testCases.CreateBatch(ctx, tx, task.ID, cases)
	})
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return appErrors.New(appErrors.TaskNotFound)
		}
		return appErrors.Wrapf(err, appErrors.TaskUpdateFailed, "update task %d: %v", task.ID, err)
	}
	logger.Info(ctx, "task updated",
		zap.Int64("task_id", task.ID),
		zap.Int("cases", len(cases)))
	return nil
}

// GetTask returns a task and its cases.
func (s *Service) GetTask(ctx context.Context, taskID int64) (*TaskWithCases, error) {
	task, err := s.tasks.GetByID(ctx, nil, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, appErrors.New(appErrors.TaskNotFound)
		}
		return nil, appErrors.InternalError(err)
	}
	cases, err := s.testCases.ListByTaskID(ctx, taskID)
	if err != nil {
		return nil, appErrors.InternalError(err)
	}
	return &TaskWithCases{Task: task, Cases: cases}, nil
}

// ListTasks returns tasks for a subject.
func (s *Service) ListTasks(ctx context.Context, subject string, limit int) ([]*repository.Task, error) {
	tasks, err := s.tasks.ListBySubject(ctx, subject, limit)
	if err != nil {
		return nil, appErrors.InternalError(err)
	}
	return tasks, nil
}

// DeleteTask removes a task and its cases.
func (s *Service) DeleteTask(ctx context.Context, taskID int64) error {
	database, err := db.CurrentDatabase(s.db)
	if err != nil {
		return appErrors.InternalError(err)
	}
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.testCases.DeleteByTaskID(ctx, tx, taskID); err != nil {
			return err
		}
		return s.tasks.Delete(ctx, tx, taskID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return appErrors.New(appErrors.TaskNotFound)
		}
		return appErrors.Wrapf(err, appErrors.TaskDeleteFailed, "delete task %d: %v", taskID, err)
	}
	return nil
}

// GenerateTask asks the configured generator for a new task and persists it.
func (s *Service) GenerateTask(ctx context.Context, subject, theme, difficulty string) (*TaskWithCases, error) {
	if s.generator == nil {
		return nil, appErrors.New(appErrors.TaskGenerateFailed).WithMessage("no task generator configured")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, appErrors.ValidationError("subject", "is required")
	}

	generated, err := s.generator.Generate(ctx, subject, theme, difficulty)
	if err != nil {
		return nil, err
	}

	task := &repository.Task{
		Subject:       subject,
		Theme:         theme,
		Difficulty:    difficulty,
		Title:         generated.Title,
		Statement:     generated.Statement,
		InputFormat:   generated.InputFormat,
		OutputFormat:  generated.OutputFormat,
		MemoryLimitMB: generated.MemoryLimitMB,
		TimeLimitSec:  generated.TimeLimitSec,
		Kind:          generated.Kind,
	}
	cases := make([]*repository.TestCase, 0, len(generated.Cases))
	for _, c := range generated.Cases {
		cases = append(cases, &repository.TestCase{Input: c.Input, Expected: c.Expected})
	}
	if err := s.CreateTask(ctx, task, cases); err != nil {
		return nil, err
	}
	return &TaskWithCases{Task: task, Cases: cases}, nil
}

// PickTask selects a random task for a subject, used when opening a match.
func (s *Service) PickTask(ctx context.Context, subject string) (*TaskWithCases, error) {
	task, err := s.tasks.PickRandom(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return nil, appErrors.Newf(appErrors.TaskNotFound, "no tasks for subject %q", subject)
		}
		return nil, appErrors.InternalError(err)
	}
	cases, err := s.testCases.ListByTaskID(ctx, task.ID)
	if err != nil {
		return nil, appErrors.InternalError(err)
	}
	if len(cases) == 0 {
		return nil, appErrors.Newf(appErrors.TestCaseNotFound, "task %d has no test cases", task.ID)
	}
	return &TaskWithCases{Task: task, Cases: cases}, nil
}
