package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lakonic/taskdeck/models"
)

// pqUniqueViolation is the Postgres error code for unique constraint violations.
const pqUniqueViolation = "23505"

var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrDuplicateEmail    = errors.New("email already registered")
)

type UserRepository struct {
	db *sql.DB // The actual database connection pool
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts the user and fills in its generated ID and CreatedAt.
// Duplicate usernames and emails surface as ErrDuplicateUsername and
// ErrDuplicateEmail, mapped from the storage-layer unique constraints.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password, email, is_admin, reminder_time)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.PasswordHash, user.Email, user.IsAdmin, user.ReminderTime,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrDuplicateEmail
			default:
				return ErrDuplicateUsername
			}
		}
		return fmt.Errorf("failed to insert user %q: %w", user.Username, err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	return r.getUser(ctx, `WHERE id = $1`, userID)
}

// GetUserByUsername retrieves a user by exact username match.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, `WHERE username = $1`, username)
}

// GetUserByEmail retrieves a user by their email address.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `WHERE email = $1`, email)
}

func (r *UserRepository) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `
		SELECT id, username, password, COALESCE(email, ''), is_admin, reminder_time, created_at, last_login_at
		FROM users ` + where

	var user models.User
	var lastLogin sql.NullTime
	row := r.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Email,
		&user.IsAdmin, &user.ReminderTime, &user.CreatedAt, &lastLogin)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

// UpdateLastLogin stamps the user's last successful authentication time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID int64) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to update last login for user %d: %w", userID, err)
	}
	return nil
}

// UpdateReminderTime stores the user's preferred reminder time as minutes
// since midnight.
func (r *UserRepository) UpdateReminderTime(ctx context.Context, userID int64, minutes int) error {
	query := `UPDATE users SET reminder_time = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, minutes, userID); err != nil {
		return fmt.Errorf("failed to update reminder time for user %d: %w", userID, err)
	}
	return nil
}

// UpdatePassword overwrites the user's password digest.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	query := `UPDATE users SET password = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, passwordHash, userID); err != nil {
		return fmt.Errorf("failed to update password for user %d: %w", userID, err)
	}
	return nil
}

// DeleteUser removes a user. The todos foreign key cascades.
func (r *UserRepository) DeleteUser(ctx context.Context, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for user %d: %w", userID, err)
	}
	if affected == 0 {
		return fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}
	return nil
}

// ListUsers returns one page of users matching the optional username/email
// substring search, newest first, along with the total match count.
func (r *UserRepository) ListUsers(ctx context.Context, search string, page, perPage int) ([]models.UserSummary, int64, error) {
	query := `
		SELECT u.id, u.username, COALESCE(u.email, ''), u.is_admin, u.created_at, u.last_login_at,
		       COUNT(t.id) AS todo_count
		FROM users u
		LEFT JOIN todos t ON t.user_id = u.id
		WHERE $1 = '' OR u.username ILIKE '%' || $1 || '%' OR u.email ILIKE '%' || $1 || '%'
		GROUP BY u.id
		ORDER BY u.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, search, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		var lastLogin sql.NullTime
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.IsAdmin, &u.CreatedAt, &lastLogin, &u.TodoCount); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLoginAt = &t
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating user rows: %w", err)
	}

	countQuery := `
		SELECT COUNT(*)
		FROM users u
		WHERE $1 = '' OR u.username ILIKE '%' || $1 || '%' OR u.email ILIKE '%' || $1 || '%'
	`
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	return users, total, nil
}

// GetUsersWithEmail returns every user that can receive reminder mail.
func (r *UserRepository) GetUsersWithEmail(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, username, password, COALESCE(email, ''), is_admin, reminder_time, created_at, last_login_at
		FROM users
		WHERE email IS NOT NULL AND email <> ''
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users with email: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var lastLogin sql.NullTime
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Email,
			&user.IsAdmin, &user.ReminderTime, &user.CreatedAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			user.LastLoginAt = &t
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}
