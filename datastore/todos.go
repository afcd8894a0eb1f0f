package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lakonic/taskdeck/models"
)

type TodoRepository struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

const todoColumns = `id, title, description, completed, created_date, created_at, user_id`

// CreateTodo inserts the todo and fills in its generated ID and CreatedAt.
// CreatedDate must already be set to the owner's calendar day.
func (r *TodoRepository) CreateTodo(ctx context.Context, todo *models.Todo) error {
	query := `
		INSERT INTO todos (title, description, completed, created_date, user_id)
		VALUES ($1, $2, $3, $4::date, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		todo.Title, todo.Description, todo.Completed, todo.CreatedDate, todo.UserID,
	).Scan(&todo.ID, &todo.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

// GetTodoByID retrieves a single todo owned by the given user.
func (r *TodoRepository) GetTodoByID(ctx context.Context, todoID, userID int64) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1 AND user_id = $2`
	row := r.db.QueryRowContext(ctx, query, todoID, userID)

	todo, err := scanTodo(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("todo not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get todo %d: %w", todoID, err)
	}
	return todo, nil
}

// GetTodosByDate returns all of the user's todos created on the given
// calendar day, newest first.
func (r *TodoRepository) GetTodosByDate(ctx context.Context, userID int64, date string) ([]models.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1 AND created_date = $2::date
		ORDER BY created_at DESC
	`
	return r.queryTodos(ctx, query, userID, date)
}

// GetIncompleteTodos returns the user's incomplete todos, newest first.
func (r *TodoRepository) GetIncompleteTodos(ctx context.Context, userID int64) ([]models.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1 AND completed = FALSE
		ORDER BY created_date DESC, created_at DESC
	`
	return r.queryTodos(ctx, query, userID)
}

// GetTodosByUser returns every todo owned by the user, newest first.
// Used by the admin console's elevated read path.
func (r *TodoRepository) GetTodosByUser(ctx context.Context, userID int64) ([]models.Todo, error) {
	query := `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.queryTodos(ctx, query, userID)
}

// UpdateTodo writes the todo's mutable fields. The handler merges the
// partial update into a fetched record before calling this.
func (r *TodoRepository) UpdateTodo(ctx context.Context, todo *models.Todo) error {
	query := `
		UPDATE todos
		SET title = $1, description = $2, completed = $3
		WHERE id = $4 AND user_id = $5
	`
	result, err := r.db.ExecContext(ctx, query,
		todo.Title, todo.Description, todo.Completed, todo.ID, todo.UserID)
	if err != nil {
		return fmt.Errorf("failed to update todo %d: %w", todo.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for todo %d: %w", todo.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("todo not found: %w", sql.ErrNoRows)
	}
	return nil
}

// DeleteTodo removes a todo owned by the given user.
func (r *TodoRepository) DeleteTodo(ctx context.Context, todoID, userID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, todoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo %d: %w", todoID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for todo %d: %w", todoID, err)
	}
	if affected == 0 {
		return fmt.Errorf("todo not found: %w", sql.ErrNoRows)
	}
	return nil
}

func (r *TodoRepository) queryTodos(ctx context.Context, query string, args ...any) ([]models.Todo, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %w", err)
	}
	defer rows.Close()

	var todos []models.Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan todo row: %w", err)
		}
		todos = append(todos, *todo)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todo rows: %w", err)
	}
	return todos, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (*models.Todo, error) {
	var todo models.Todo
	var createdDate time.Time // DATE columns scan as midnight timestamps
	err := row.Scan(&todo.ID, &todo.Title, &todo.Description, &todo.Completed,
		&createdDate, &todo.CreatedAt, &todo.UserID)
	if err != nil {
		return nil, err
	}
	todo.CreatedDate = createdDate.Format(models.DateLayout)
	return &todo, nil
}
