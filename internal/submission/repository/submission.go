package repository

import (
	"context"
	"errors"
	"time"

	"codearena/internal/common/db"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// Submission is one judged attempt. Rows are append only; rejudging a task
// produces a new row rather than rewriting history.
type Submission struct {
	ID           int64     `json:"id"`
	SubmissionID string    `json:"submission_id"`
	UserID       int64     `json:"user_id"`
	TaskID       int64     `json:"task_id"`
	Verdict      string    `json:"verdict"`
	TestsPassed  int       `json:"tests_passed"`
	TotalTests   int       `json:"total_tests"`
	CreatedAt    time.Time `json:"created_at"`
}

// SubmissionRepository defines submission persistence interfaces.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, sub *Submission) error
	GetBySubmissionID(ctx context.Context, submissionID string) (*Submission, error)
	Latest(ctx context.Context, userID, taskID int64) (*Submission, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Submission, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
type MySQLSubmissionRepository struct {
	db db.Provider
}

// NewSubmissionRepository creates a submission repository.
func NewSubmissionRepository(provider db.Provider) *MySQLSubmissionRepository {
	return &MySQLSubmissionRepository{db: provider}
}

const submissionColumns = "id, submission_id, user_id, task_id, verdict, tests_passed, total_tests, created_at"

// Create appends a submission row.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, sub *Submission) error {
	if sub == nil {
		return errors.New("submission is nil")
	}
	if sub.SubmissionID == "" {
		return errors.New("submissionID is required")
	}
	if sub.UserID <= 0 || sub.TaskID <= 0 {
		return errors.New("userID and taskID are required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO submissions (submission_id, user_id, task_id, verdict, tests_passed, total_tests)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := db.GetQuerier(database, tx).Exec(ctx, query,
		sub.SubmissionID, sub.UserID, sub.TaskID, sub.Verdict, sub.TestsPassed, sub.TotalTests)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	sub.ID = id
	return nil
}

// GetBySubmissionID retrieves a submission by its public id.
func (r *MySQLSubmissionRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*Submission, error) {
	if submissionID == "" {
		return nil, errors.New("submissionID is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	return r.scanOne(database.QueryRow(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE submission_id = ?", submissionID))
}

// Latest returns the most recent submission a user made for a task.
func (r *MySQLSubmissionRepository) Latest(ctx context.Context, userID, taskID int64) (*Submission, error) {
	if userID <= 0 || taskID <= 0 {
		return nil, errors.New("userID and taskID are required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	return r.scanOne(database.QueryRow(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE user_id = ? AND task_id = ? ORDER BY id DESC LIMIT 1",
		userID, taskID))
}

// ListByUser returns a user's submissions, newest first.
func (r *MySQLSubmissionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*Submission, error) {
	if userID <= 0 {
		return nil, errors.New("userID is required")
	}
	if limit <= 0 {
		limit = 20
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	rows, err := database.Query(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE user_id = ? ORDER BY id DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub := &Submission{}
		if err := rows.Scan(&sub.ID, &sub.SubmissionID, &sub.UserID, &sub.TaskID,
			&sub.Verdict, &sub.TestsPassed, &sub.TotalTests, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (r *MySQLSubmissionRepository) scanOne(row db.Row) (*Submission, error) {
	sub := &Submission{}
	err := row.Scan(&sub.ID, &sub.SubmissionID, &sub.UserID, &sub.TaskID,
		&sub.Verdict, &sub.TestsPassed, &sub.TotalTests, &sub.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}
