package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"codearena/internal/common/db"
	"codearena/internal/common/storage"
	"codearena/internal/task/repository"
)

type fakeDatabase struct{}

func (fakeDatabase) Query(context.Context, string, ...interface{}) (db.Rows, error) {
	return nil, errors.New("not implemented")
}
func (fakeDatabase) QueryRow(context.Context, string, ...interface{}) db.Row { return nil }
func (fakeDatabase) Exec(context.Context, string, ...interface{}) (db.Result, error) {
	return nil, errors.New("not implemented")
}
func (fakeDatabase) Transaction(_ context.Context, fn func(db.Transaction) error) error {
	return fn(nil)
}
func (fakeDatabase) BeginTx(context.Context) (db.Transaction, error) {
	return nil, errors.New("not implemented")
}
func (fakeDatabase) Ping(context.Context) error { return nil }
func (fakeDatabase) Close() error               { return nil }

type fakeProvider struct{}

func (fakeProvider) Current() db.Database { return fakeDatabase{} }

type memTaskRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*repository.Task
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[int64]*repository.Task)}
}

func (m *memTaskRepo) Create(_ context.Context, _ db.Transaction, task *repository.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	task.ID = m.nextID
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *memTaskRepo) GetByID(_ context.Context, _ db.Transaction, taskID int64) (*repository.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, repository.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *memTaskRepo) Update(_ context.Context, _ db.Transaction, task *repository.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return repository.ErrTaskNotFound
	}
	copied := *task
	m.tasks[task.ID] = &copied
	return nil
}

func (m *memTaskRepo) Delete(_ context.Context, _ db.Transaction, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return repository.ErrTaskNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

func (m *memTaskRepo) ListBySubject(_ context.Context, subject string, _ int) ([]*repository.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tasks []*repository.Task
	for _, task := range m.tasks {
		if task.Subject == subject {
			copied := *task
			tasks = append(tasks, &copied)
		}
	}
	return tasks, nil
}

func (m *memTaskRepo) PickRandom(_ context.Context, subject string) (*repository.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range m.tasks {
		if task.Subject == subject {
			copied := *task
			return &copied, nil
		}
	}
	return nil, repository.ErrTaskNotFound
}

type memTestCaseRepo struct {
	mu     sync.Mutex
	nextID int64
	byTask map[int64][]*repository.TestCase
}

func newMemTestCaseRepo() *memTestCaseRepo {
	return &memTestCaseRepo{byTask: make(map[int64][]*repository.TestCase)}
}

func (m *memTestCaseRepo) CreateBatch(_ context.Context, _ db.Transaction, taskID int64, cases []*repository.TestCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, tc := range cases {
		m.nextID++
		tc.ID = m.nextID
		tc.TaskID = taskID
		tc.Ordinal = i
		copied := *tc
		m.byTask[taskID] = append(m.byTask[taskID], &copied)
	}
	return nil
}

func (m *memTestCaseRepo) ListByTaskID(_ context.Context, taskID int64) ([]*repository.TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*repository.TestCase(nil), m.byTask[taskID]...), nil
}

func (m *memTestCaseRepo) DeleteByTaskID(_ context.Context, _ db.Transaction, taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTask, taskID)
	return nil
}

// memStorage is an in-memory ObjectStorage for tests.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) PutObject(_ context.Context, bucket, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memStorage) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) StatObject(_ context.Context, bucket, key string) (storage.ObjectStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectStat{}, fmt.Errorf("object %s/%s not found", bucket, key)
	}
	return storage.ObjectStat{SizeBytes: int64(len(data))}, nil
}

func (m *memStorage) RemoveObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func newTaskService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{
		DB:        fakeProvider{},
		Tasks:     newMemTaskRepo(),
		TestCases: newMemTestCaseRepo(),
	})
	if err != nil {
		t.Fatalf("task service: %v", err)
	}
	return svc
}

func TestPackExportImportRoundTrip(t *testing.T) {
	tasks := newTaskService(t)
	store := newMemStorage()
	packs, err := NewPackService(tasks, store, "arena")
	if err != nil {
		t.Fatalf("pack service: %v", err)
	}
	ctx := context.Background()

	original := &repository.Task{
		Subject:      "math",
		Title:        "Square",
		Statement:    "Print n squared.",
		TimeLimitSec: 2,
		Kind:         repository.TaskKindCode,
	}
	cases := []*repository.TestCase{
		{Input: "2\n", Expected: "4"},
		{Input: "3\n", Expected: "9"},
	}
	if err := tasks.CreateTask(ctx, original, cases); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	key, err := packs.Export(ctx, original.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if key == "" {
		t.Fatal("export key should be set")
	}

	imported, err := packs.Import(ctx, key)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.Task.ID == original.ID {
		t.Error("import should create a new task, not reuse the id")
	}
	if imported.Task.Title != original.Title {
		t.Errorf("title = %q, want %q", imported.Task.Title, original.Title)
	}
	if len(imported.Cases) != len(cases) {
		t.Fatalf("cases = %d, want %d", len(imported.Cases), len(cases))
	}
	for i, c := range imported.Cases {
		if c.Expected != cases[i].Expected {
			t.Errorf("case %d expected = %q, want %q", i, c.Expected, cases[i].Expected)
		}
	}
}

func TestPackImportRejectsGarbage(t *testing.T) {
	tasks := newTaskService(t)
	store := newMemStorage()
	packs, _ := NewPackService(tasks, store, "arena")
	ctx := context.Background()

	store.PutObject(ctx, "arena", "packs/bad", bytes.NewReader([]byte("not a pack")), 10, "application/zstd")
	if _, err := packs.Import(ctx, "packs/bad"); err == nil {
		t.Fatal("expected error for a corrupt pack")
	}
}

func TestPackExportUnknownTask(t *testing.T) {
	tasks := newTaskService(t)
	packs, _ := NewPackService(tasks, newMemStorage(), "arena")
	if _, err := packs.Export(context.Background(), 404); err == nil {
		t.Fatal("expected error for a missing task")
	}
}
