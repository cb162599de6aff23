package service

import (
	"context"
	"fmt"
	"strings"

	appErrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

// maxGeneratedCases caps how many test pairs a generated task may carry.
const maxGeneratedCases = 5

// GeneratedTask is the raw output of a task generator before persistence.
type GeneratedTask struct {
	Title         string          `json:"title"`
	Statement     string          `json:"statement"`
	InputFormat   string          `json:"input_format"`
	OutputFormat  string          `json:"output_format"`
	TimeLimitSec  int             `json:"time_limit_sec"`
	MemoryLimitMB int             `json:"memory_limit_mb"`
	Kind          string          `json:"kind"`
	Cases         []GeneratedCase `json:"cases"`
}

// GeneratedCase is one input/expected pair produced by a generator.
type GeneratedCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// TaskGenerator produces a fresh task for a subject/theme/difficulty triple.
// Implementations may call external services and should honor ctx.
type TaskGenerator interface {
	Generate(ctx context.Context, subject, theme, difficulty string) (*GeneratedTask, error)
}

// RetryingGenerator wraps a TaskGenerator and retries malformed outputs a
// bounded number of times before giving up. Generator backends occasionally
// return structurally incomplete tasks; retrying with the same prompt is
// usually enough to get a valid one.
type RetryingGenerator struct {
	inner      TaskGenerator
	maxRetries int
}

// NewRetryingGenerator wraps gen with up to maxRetries additional attempts.
func NewRetryingGenerator(gen TaskGenerator, maxRetries int) *RetryingGenerator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryingGenerator{inner: gen, maxRetries: maxRetries}
}

// Generate calls the wrapped generator until it returns a valid task or the
// retry budget runs out.
func (g *RetryingGenerator) Generate(ctx context.Context, subject, theme, difficulty string) (*GeneratedTask, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, appErrors.Wrapf(err, appErrors.TaskGenerateFailed, "task generation canceled")
		}
		task, err := g.inner.Generate(ctx, subject, theme, difficulty)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "task generation attempt failed",
				zap.Int("attempt", attempt),
				zap.String("subject", subject),
				zap.Error(err))
			continue
		}
		if err := validateGenerated(task); err != nil {
			lastErr = err
			logger.Warn(ctx, "generated task failed validation",
				zap.Int("attempt", attempt),
				zap.String("subject", subject),
				zap.Error(err))
			continue
		}
		return task, nil
	}
	if lastErr == nil {
		return nil, appErrors.New(appErrors.TaskGenerateFailed)
	}
	return nil, appErrors.Wrapf(lastErr, appErrors.TaskGenerateFailed, "task generation exhausted retries: %v", lastErr)
}

func validateGenerated(task *GeneratedTask) error {
	if task == nil {
		return appErrors.ValidationError("task", "is empty")
	}
	if strings.TrimSpace(task.Title) == "" {
		return appErrors.ValidationError("title", "is required")
	}
	if strings.TrimSpace(task.Statement) == "" {
		return appErrors.ValidationError("statement", "is required")
	}
	if len(task.Cases) == 0 {
		return appErrors.ValidationError("cases", "at least one test case is required")
	}
	if len(task.Cases) > maxGeneratedCases {
		task.Cases = task.Cases[:maxGeneratedCases]
	}
	for i, c := range task.Cases {
		if strings.TrimSpace(c.Expected) == "" {
			return appErrors.ValidationError("cases", fmt.Sprintf("case %d has no expected output", i))
		}
	}
	if task.TimeLimitSec <= 0 {
		task.TimeLimitSec = 2
	}
	if task.MemoryLimitMB <= 0 {
		task.MemoryLimitMB = 256
	}
	if task.Kind == "" {
		task.Kind = "code"
	}
	return nil
}
