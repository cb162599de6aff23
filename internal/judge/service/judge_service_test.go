package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/judge/model"
	"codearena/internal/judge/runner"
	submissionrepo "codearena/internal/submission/repository"
	"codearena/internal/task/repository"
	taskservice "codearena/internal/task/service"
	appErrors "codearena/pkg/errors"
)

type fakeTaskRepo struct {
	task *repository.Task
}

func (f *fakeTaskRepo) Create(context.Context, db.Transaction, *repository.Task) error {
	return errors.New("not implemented")
}

func (f *fakeTaskRepo) GetByID(_ context.Context, _ db.Transaction, taskID int64) (*repository.Task, error) {
	if f.task == nil || f.task.ID != taskID {
		return nil, repository.ErrTaskNotFound
	}
	return f.task, nil
}

func (f *fakeTaskRepo) Update(context.Context, db.Transaction, *repository.Task) error {
	return errors.New("not implemented")
}

func (f *fakeTaskRepo) Delete(context.Context, db.Transaction, int64) error {
	return errors.New("not implemented")
}

func (f *fakeTaskRepo) ListBySubject(context.Context, string, int) ([]*repository.Task, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTaskRepo) PickRandom(context.Context, string) (*repository.Task, error) {
	if f.task == nil {
		return nil, repository.ErrTaskNotFound
	}
	return f.task, nil
}

type fakeTestCaseRepo struct {
	cases []*repository.TestCase
}

func (f *fakeTestCaseRepo) CreateBatch(context.Context, db.Transaction, int64, []*repository.TestCase) error {
	return errors.New("not implemented")
}

func (f *fakeTestCaseRepo) ListByTaskID(context.Context, int64) ([]*repository.TestCase, error) {
	return f.cases, nil
}

func (f *fakeTestCaseRepo) DeleteByTaskID(context.Context, db.Transaction, int64) error {
	return errors.New("not implemented")
}

type fakeSubmissionRepo struct {
	created []*submissionrepo.Submission
}

func (f *fakeSubmissionRepo) Create(_ context.Context, _ db.Transaction, sub *submissionrepo.Submission) error {
	sub.ID = int64(len(f.created) + 1)
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubmissionRepo) GetBySubmissionID(context.Context, string) (*submissionrepo.Submission, error) {
	return nil, submissionrepo.ErrSubmissionNotFound
}

func (f *fakeSubmissionRepo) Latest(context.Context, int64, int64) (*submissionrepo.Submission, error) {
	return nil, submissionrepo.ErrSubmissionNotFound
}

func (f *fakeSubmissionRepo) ListByUser(context.Context, int64, int) ([]*submissionrepo.Submission, error) {
	return f.created, nil
}

type stubProvider struct{}

func (stubProvider) Current() db.Database { return nil }

func squareCases(n int) []*repository.TestCase {
	cases := make([]*repository.TestCase, 0, n)
	for i := 1; i <= n; i++ {
		cases = append(cases, &repository.TestCase{
			ID:       int64(i),
			TaskID:   1,
			Input:    fmt.Sprintf("%d\n", i),
			Expected: fmt.Sprintf("%d", i*i),
		})
	}
	return cases
}

func newJudge(t *testing.T, task *repository.Task, cases []*repository.TestCase) (*Service, *fakeSubmissionRepo) {
	t.Helper()
	tasks, err := taskservice.NewService(taskservice.Config{
		DB:        stubProvider{},
		Tasks:     &fakeTaskRepo{task: task},
		TestCases: &fakeTestCaseRepo{cases: cases},
	})
	if err != nil {
		t.Fatalf("task service: %v", err)
	}
	subs := &fakeSubmissionRepo{}
	judge, err := NewService(Config{
		Tasks:       tasks,
		Submissions: subs,
		Runner:      runner.NewProcessRunner(),
		WorkDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("judge service: %v", err)
	}
	return judge, subs
}

func codeTask(timeLimitSec int) *repository.Task {
	return &repository.Task{
		ID:           1,
		Subject:      "math",
		Title:        "Square",
		Statement:    "Print n squared.",
		TimeLimitSec: timeLimitSec,
		Kind:         repository.TaskKindCode,
	}
}

func TestJudgeAllTestsPass(t *testing.T) {
	judge, subs := newJudge(t, codeTask(2), squareCases(5))

	result, err := judge.Judge(context.Background(), Request{
		UserID:  10,
		TaskID:  1,
		Program: []byte("#!/bin/sh\nread n; echo $((n*n))\n"),
	})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if result.Verdict != model.VerdictOK {
		t.Errorf("verdict = %q, want %q", result.Verdict, model.VerdictOK)
	}
	if result.TestsPassed != 5 || result.TotalTests != 5 {
		t.Errorf("score = %d/%d, want 5/5", result.TestsPassed, result.TotalTests)
	}
	if len(subs.created) != 1 {
		t.Fatalf("submissions recorded = %d, want 1", len(subs.created))
	}
	if subs.created[0].Verdict != model.VerdictOK {
		t.Errorf("recorded verdict = %q, want %q", subs.created[0].Verdict, model.VerdictOK)
	}
}

func TestJudgeWrongAnswerKeepsGoing(t *testing.T) {
	judge, _ := newJudge(t, codeTask(2), squareCases(5))

	// Wrong output on n=3 only; the remaining cases still count.
	program := "#!/bin/sh\nread n\nif [ \"$n\" = \"3\" ]; then echo 0; else echo $((n*n)); fi\n"
	result, err := judge.Judge(context.Background(), Request{UserID: 10, TaskID: 1, Program: []byte(program)})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if result.Verdict != model.VerdictPartialSolution {
		t.Errorf("verdict = %q, want %q", result.Verdict, model.VerdictPartialSolution)
	}
	if result.TestsPassed != 4 {
		t.Errorf("tests passed = %d, want 4", result.TestsPassed)
	}
}

func TestJudgeTimeoutStopsRun(t *testing.T) {
	judge, subs := newJudge(t, codeTask(1), squareCases(5))

	// Hangs on n=3, so tests 1 and 2 pass and judging stops there.
	program := "#!/bin/sh\nread n\nif [ \"$n\" = \"3\" ]; then sleep 30; fi\necho $((n*n))\n"
	start := time.Now()
	result, err := judge.Judge(context.Background(), Request{UserID: 10, TaskID: 1, Program: []byte(program)})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if result.Verdict != model.VerdictTimeLimit {
		t.Errorf("verdict = %q, want %q", result.Verdict, model.VerdictTimeLimit)
	}
	if result.TestsPassed != 2 {
		t.Errorf("tests passed = %d, want 2", result.TestsPassed)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("judging took %v, remaining cases were not skipped", elapsed)
	}
	if len(subs.created) != 1 {
		t.Errorf("submissions recorded = %d, want 1", len(subs.created))
	}
}

func TestJudgeRuntimeErrorUsesLastStderrLine(t *testing.T) {
	judge, _ := newJudge(t, codeTask(2), squareCases(5))

	program := "#!/bin/sh\nread n\nif [ \"$n\" = \"2\" ]; then\n" +
		"echo traceback line one >&2\necho ValueError: bad input >&2\nexit 1\nfi\necho $((n*n))\n"
	result, err := judge.Judge(context.Background(), Request{UserID: 10, TaskID: 1, Program: []byte(program)})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if result.Verdict != "ValueError: bad input" {
		t.Errorf("verdict = %q, want the last stderr line", result.Verdict)
	}
	if result.TestsPassed != 1 {
		t.Errorf("tests passed = %d, want 1", result.TestsPassed)
	}
}

func TestJudgeTrimsWhitespaceOnCompare(t *testing.T) {
	judge, _ := newJudge(t, codeTask(2), squareCases(3))

	program := "#!/bin/sh\nread n\nprintf '  %s  \\n\\n' $((n*n))\n"
	result, err := judge.Judge(context.Background(), Request{UserID: 10, TaskID: 1, Program: []byte(program)})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if result.Verdict != model.VerdictOK {
		t.Errorf("verdict = %q, want %q", result.Verdict, model.VerdictOK)
	}
}

func TestJudgeQuizCaseInsensitive(t *testing.T) {
	task := &repository.Task{ID: 1, Subject: "history", Title: "Capital", Kind: repository.TaskKindQuiz}
	cases := []*repository.TestCase{{ID: 1, TaskID: 1, Expected: "Paris"}}
	judge, subs := newJudge(t, task, cases)

	result, err := judge.Judge(context.Background(), Request{UserID: 10, TaskID: 1, Answer: "  pArIs "})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if result.Verdict != model.VerdictOK || result.TestsPassed != 1 {
		t.Errorf("got %q %d/%d, want OK 1/1", result.Verdict, result.TestsPassed, result.TotalTests)
	}

	result, err = judge.Judge(context.Background(), Request{UserID: 10, TaskID: 1, Answer: "London"})
	if err != nil {
		t.Fatalf("Judge: %v", err)
	}
	if result.Verdict != model.VerdictWrongAnswer || result.TestsPassed != 0 {
		t.Errorf("got %q %d/%d, want WrongAnswer 0/1", result.Verdict, result.TestsPassed, result.TotalTests)
	}
	if len(subs.created) != 2 {
		t.Errorf("submissions recorded = %d, want 2", len(subs.created))
	}
}

func TestJudgeMissingProgram(t *testing.T) {
	judge, subs := newJudge(t, codeTask(2), squareCases(3))

	if _, err := judge.Judge(context.Background(), Request{UserID: 10, TaskID: 1}); err == nil {
		t.Fatal("expected error for missing program")
	}
	if len(subs.created) != 0 {
		t.Errorf("submissions recorded = %d, want 0", len(subs.created))
	}
}

func TestJudgeSubmitLockPerUser(t *testing.T) {
	tasks, err := taskservice.NewService(taskservice.Config{
		DB:        stubProvider{},
		Tasks:     &fakeTaskRepo{task: codeTask(2)},
		TestCases: &fakeTestCaseRepo{cases: squareCases(3)},
	})
	if err != nil {
		t.Fatalf("task service: %v", err)
	}
	c := newStatsCache(t)
	judge, err := NewService(Config{
		Tasks:       tasks,
		Submissions: &fakeSubmissionRepo{},
		Runner:      runner.NewProcessRunner(),
		Cache:       c,
		WorkDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("judge service: %v", err)
	}
	ctx := context.Background()
	program := []byte("#!/bin/sh\nread n; echo $((n*n))\n")

	// Hold user 10's slot; their submission must be rejected while user 11
	// is unaffected.
	if ok, err := c.TryLock(ctx, "judge:lock:user:10", time.Minute); err != nil || !ok {
		t.Fatalf("TryLock = %v, %v; want acquired", ok, err)
	}
	_, err = judge.Judge(ctx, Request{UserID: 10, TaskID: 1, Program: program})
	if !appErrors.Is(err, appErrors.SubmitTooFrequently) {
		t.Errorf("err = %v, want SubmitTooFrequently", err)
	}
	if _, err := judge.Judge(ctx, Request{UserID: 11, TaskID: 1, Program: program}); err != nil {
		t.Errorf("other user blocked: %v", err)
	}

	// Released locks free the slot again.
	if err := c.Unlock(ctx, "judge:lock:user:10"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := judge.Judge(ctx, Request{UserID: 10, TaskID: 1, Program: program}); err != nil {
		t.Errorf("Judge after unlock: %v", err)
	}
}

func TestLastLine(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"\n\n", ""},
		{"only", "only"},
		{"first\nsecond\n", "second"},
		{"first\nsecond\n\n  \n", "second"},
	}
	for _, c := range cases {
		if got := lastLine(c.in); got != c.want {
			t.Errorf("lastLine(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
