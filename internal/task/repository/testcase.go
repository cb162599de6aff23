package repository

import (
	"context"
	"errors"

	"codearena/internal/common/db"
)

// TestCase is one stdin/expected-stdout pair for a code task. Quiz tasks
// carry exactly one case whose Expected field holds the answer.
type TestCase struct {
	ID       int64  `json:"id"`
	TaskID   int64  `json:"task_id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Ordinal  int    `json:"ordinal"`
}

// TestCaseRepository defines test case persistence interfaces.
type TestCaseRepository interface {
	CreateBatch(ctx context.Context, tx db.Transaction, taskID int64, cases []*TestCase) error
	ListByTaskID(ctx context.Context, taskID int64) ([]*TestCase, error)
	DeleteByTaskID(ctx context.Context, tx db.Transaction, taskID int64) error
}

// MySQLTestCaseRepository implements TestCaseRepository with MySQL.
type MySQLTestCaseRepository struct {
	db db.Provider
}

// NewTestCaseRepository creates a test case repository.
func NewTestCaseRepository(provider db.Provider) *MySQLTestCaseRepository {
	return &MySQLTestCaseRepository{db: provider}
}

// CreateBatch inserts the cases for a task in their given order.
func (r *MySQLTestCaseRepository) CreateBatch(ctx context.Context, tx db.Transaction, taskID int64, cases []*TestCase) error {
	if taskID <= 0 {
		return errors.New("taskID is required")
	}
	if len(cases) == 0 {
		return errors.New("cases are required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	querier := db.GetQuerier(database, tx)
	query := "INSERT INTO test_cases (task_id, input, expected, ordinal) VALUES (?, ?, ?, ?)"
	for i, tc := range cases {
		result, err := querier.Exec(ctx, query, taskID, tc.Input, tc.Expected, i)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		tc.ID = id
		tc.TaskID = taskID
		tc.Ordinal = i
	}
	return nil
}

// ListByTaskID returns all cases for a task in insertion order.
func (r *MySQLTestCaseRepository) ListByTaskID(ctx context.Context, taskID int64) ([]*TestCase, error) {
	if taskID <= 0 {
		return nil, errors.New("taskID is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	query := "SELECT id, task_id, input, expected, ordinal FROM test_cases WHERE task_id = ? ORDER BY ordinal ASC"
	rows, err := database.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*TestCase
	for rows.Next() {
		tc := &TestCase{}
		if err := rows.Scan(&tc.ID, &tc.TaskID, &tc.Input, &tc.Expected, &tc.Ordinal); err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// DeleteByTaskID removes all cases attached to a task.
func (r *MySQLTestCaseRepository) DeleteByTaskID(ctx context.Context, tx db.Transaction, taskID int64) error {
	if taskID <= 0 {
		return errors.New("taskID is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	_, err = db.GetQuerier(database, tx).Exec(ctx, "DELETE FROM test_cases WHERE task_id = ?", taskID)
	return err
}
