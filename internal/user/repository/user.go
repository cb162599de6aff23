package repository

import (
	"context"
	"errors"
	"time"

	"codearena/internal/common/db"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// Roles a user can carry.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultEloRating is the rating assigned to new accounts.
const DefaultEloRating = 1000.0

// User represents a registered player.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	EloRating    float64   `json:"elo_rating"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserRepository defines user persistence interfaces.
type UserRepository interface {
	Create(ctx context.Context, tx db.Transaction, user *User) error
	GetByID(ctx context.Context, tx db.Transaction, userID int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateRating(ctx context.Context, tx db.Transaction, userID int64, rating float64) error
}

// MySQLUserRepository implements UserRepository with MySQL.
type MySQLUserRepository struct {
	db db.Provider
}

// NewUserRepository creates a user repository.
func NewUserRepository(provider db.Provider) *MySQLUserRepository {
	return &MySQLUserRepository{db: provider}
}

const userColumns = "id, name, email, password_hash, role, elo_rating, created_at"

// Create inserts a user and sets its generated id. A duplicate name or email
// returns ErrDuplicateUser.
func (r *MySQLUserRepository) Create(ctx context.Context, tx db.Transaction, user *User) error {
	if user == nil {
		return errors.New("user is nil")
	}
	if user.Name == "" {
		return errors.New("name is required")
	}
	if user.Email == "" {
		return errors.New("email is required")
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.EloRating == 0 {
		user.EloRating = DefaultEloRating
	}

	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	query := "INSERT INTO users (name, email, password_hash, role, elo_rating) VALUES (?, ?, ?, ?, ?)"
	result, err := db.GetQuerier(database, tx).Exec(ctx, query, user.Name, user.Email, user.PasswordHash, user.Role, user.EloRating)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return ErrDuplicateUser
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by id.
func (r *MySQLUserRepository) GetByID(ctx context.Context, tx db.Transaction, userID int64) (*User, error) {
	if userID <= 0 {
		return nil, errors.New("userID is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	return r.scanOne(db.GetQuerier(database, tx).QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", userID))
}

// GetByEmail retrieves a user by email.
func (r *MySQLUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return nil, err
	}
	return r.scanOne(database.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

// UpdateRating writes a new Elo rating for a user.
func (r *MySQLUserRepository) UpdateRating(ctx context.Context, tx db.Transaction, userID int64, rating float64) error {
	if userID <= 0 {
		return errors.New("userID is required")
	}
	database, err := db.CurrentDatabase(r.db)
	if err != nil {
		return err
	}
	result, err := db.GetQuerier(database, tx).Exec(ctx, "UPDATE users SET elo_rating = ? WHERE id = ?", rating, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Rating may be unchanged; confirm the row exists.
		if _, err := r.GetByID(ctx, tx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (r *MySQLUserRepository) scanOne(row db.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.EloRating,
		&user.CreatedAt,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
