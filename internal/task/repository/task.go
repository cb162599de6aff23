package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
)

const (
	defaultTaskCacheTTL      = 30 * time.Minute
	defaultTaskCacheEmptyTTL = 5 * time.Minute
	taskCacheKeyPrefix       = "task:"
)

var (
	ErrTaskNotFound = errors.New("task not found")
)

// Task kinds. Code tasks are judged by executing the submitted program;
// quiz tasks by a single case-insensitive answer comparison.
const (
	TaskKindCode = "code"
	TaskKindQuiz = "quiz"
)

// DefaultMemoryLimitMB is applied when an authored or generated task does not
// name a memory limit, matching the schema default.
const DefaultMemoryLimitMB = 256

// Task represents one problem statement with its limits.
type Task struct {
	ID            int64     `json:"id"`
	Subject       string    `json:"subject"`
	Theme         string    `json:"theme"`
	Difficulty    string    `json:"difficulty"`
	Title         string    `json:"title"`
	Statement     string    `json:"statement"`
	InputFormat   string    `json:"input_format"`
	OutputFormat  string    `json:"output_format"`
	MemoryLimitMB int       `json:"memory_limit_mb"`
	TimeLimitSec  int       `json:"time_limit_sec"`
	Kind          string    `json:"kind"`
	CreatedAt     time.Time `json:"created_at"`
}

// TaskRepository defines task persistence interfaces.
type TaskRepository interface {
	Create(ctx context.Context, tx db.Transaction, task *Task) error
	GetByID(ctx context.Context, tx db.Transaction, taskID int64) (*Task, error)
	Update(ctx context.Context, tx db.Transaction, task *Task) error
	Delete(ctx context.Context, tx db.Transaction, taskID int64) error
	ListBySubject(ctx context.Context, subject string, limit int) ([]*Task, error)
	PickRandom(ctx context.Context, subject string) (*Task, error)
}

// MySQLTaskRepository implements TaskRepository with MySQL plus a redis
// read-through cache on single-task lookups.
type MySQLTaskRepository struct {
	db       db.Provider
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewTaskRepository creates a task repository with default cache TTLs.
func NewTaskRepository(provider db.Provider, cacheClient cache.Cache) *MySQLTaskRepository {
	return &MySQLTaskRepository{
		db:       provider,
		cache:    cacheClient,
		ttl:      defaultTaskCacheTTL,
		emptyTTL: defaultTaskCacheEmptyTTL,
	}
}

const taskColumns = "id, subject, theme, difficulty, title, statement, input_format, output_format, memory_limit_mb, time_limit_sec, kind, created_at"

// Create inserts a task record and sets its generated id.
func (r *MySQLTaskRepository) Create(ctx context.Context, tx db.Transaction, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	if task.Subject == "" {
		return errors.New("subject is required")
	}
	if task.Title == "" {
		return errors.New("title is required")
	}
	if task.Kind == "" {
		task.Kind = TaskKindCode
	}

	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO tasks
		(subject, theme, difficulty, title, statement, input_format, output_format, memory_limit_mb, time_limit_sec, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.GetQuerier(database, tx).Exec(
		ctx,
		query,
		task.Subject,
		task.Theme,
		task.Difficulty,
		task.Title,
		task.Statement,
		task.InputFormat,
		task.OutputFormat,
		task.MemoryLimitMB,
		task.TimeLimitSec,
		task.Kind,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	task.ID = id
	return nil
}

// GetByID retrieves a task by id.
func (r *MySQLTaskRepository) GetByID(ctx context.Context, tx db.Transaction, taskID int64) (*Task, error) {
	if taskID <= 0 {
		return nil, errors.New("taskID is required")
	}
	if r.cache != nil && tx == nil {
		task, err := cache.GetWithCached[*Task](
			ctx,
			r.cache,
			taskCacheKey(taskID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(task *Task) bool { return task == nil },
			marshalTask,
			unmarshalTask,
			func(ctx context.Context) (*Task, error) {
				task, err := r.getByIDFromDB(ctx, nil, taskID)
				if err != nil {
					if errors.Is(err, ErrTaskNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return task, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if task == nil {
			return nil, ErrTaskNotFound
		}
		return task, nil
	}
	return r.getByIDFromDB(ctx, tx, taskID)
}

// Update rewrites a task record and invalidates its cache entry.
func (r *MySQLTaskRepository) Update(ctx context.Context, tx db.Transaction, task *Task) error {
	if task == nil || task.ID <= 0 {
		return errors.New("task id is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	query := `
		UPDATE tasks
		SET subject = ?, theme = ?, difficulty = ?, title = ?, statement = ?, input_format = ?, output_format = ?, memory_limit_mb = ?, time_limit_sec = ?, kind = ?
		WHERE id = ?
	`
	write := func(ctx context.Context) error {
		result, err := db.GetQuerier(database, tx).Exec(
			ctx,
			query,
			task.Subject,
			task.Theme,
			task.Difficulty,
			task.Title,
			task.Statement,
			task.InputFormat,
			task.OutputFormat,
			task.MemoryLimitMB,
			task.TimeLimitSec,
			task.Kind,
			task.ID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrTaskNotFound
		}
		return nil
	}
	if r.cache == nil {
		return write(ctx)
	}
	return cache.UpdateCached(ctx, r.cache, taskCacheKey(task.ID), write)
}

// Delete removes a task and invalidates its cache entry.
func (r *MySQLTaskRepository) Delete(ctx context.Context, tx db.Transaction, taskID int64) error {
	if taskID <= 0 {
		return errors.New("taskID is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	write := func(ctx context.Context) error {
		result, err := db.GetQuerier(database, tx).Exec(ctx, "DELETE FROM tasks WHERE id = ?", taskID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrTaskNotFound
		}
		return nil
	}
	if r.cache == nil {
		return write(ctx)
	}
	return cache.UpdateCached(ctx, r.cache, taskCacheKey(taskID), write)
}

// ListBySubject returns tasks for a subject, newest first.
func (r *MySQLTaskRepository) ListBySubject(ctx context.Context, subject string, limit int) ([]*Task, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	if limit <= 0 {
		limit = 50
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE subject = ? ORDER BY created_at DESC LIMIT ?", taskColumns)
	rows, err := database.Query(ctx, query, subject, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// PickRandom selects one random task for a subject.
func (r *MySQLTaskRepository) PickRandom(ctx context.Context, subject string) (*Task, error) {
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE subject = ? ORDER BY RAND() LIMIT 1", taskColumns)
	task := &Task{}
	row := database.QueryRow(ctx, query, subject)
	if err := scanTaskRow(row, task); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (r *MySQLTaskRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, taskID int64) (*Task, error) {
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE id = ?", taskColumns)
	task := &Task{}
	row := db.GetQuerier(database, tx).QueryRow(ctx, query, taskID)
	if err := scanTaskRow(row, task); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func scanTask(rows db.Rows) (*Task, error) {
	task := &Task{}
	err := rows.Scan(
		&task.ID,
		&task.Subject,
		&task.Theme,
		&task.Difficulty,
		&task.Title,
		&task.Statement,
		&task.InputFormat,
		&task.OutputFormat,
		&task.MemoryLimitMB,
		&task.TimeLimitSec,
		&task.Kind,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func scanTaskRow(row db.Row, task *Task) error {
	return row.Scan(
		&task.ID,
		&task.Subject,
		&task.Theme,
		&task.Difficulty,
		&task.Title,
		&task.Statement,
		&task.InputFormat,
		&task.OutputFormat,
		&task.MemoryLimitMB,
		&task.TimeLimitSec,
		&task.Kind,
		&task.CreatedAt,
	)
}

func taskCacheKey(taskID int64) string {
	return fmt.Sprintf("%s%d", taskCacheKeyPrefix, taskID)
}

func marshalTask(task *Task) string {
	data, err := json.Marshal(task)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalTask(data string) (*Task, error) {
	task := &Task{}
	if err := json.Unmarshal([]byte(data), task); err != nil {
		return nil, err
	}
	return task, nil
}
