package routehandlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/datastore"
	"github.com/lakonic/taskdeck/models"
	"github.com/lakonic/taskdeck/webutil"
)

// Holds dependencies for todo route handlers. All operations are scoped to
// the authenticated session's user; a todo owned by someone else behaves
// exactly like one that does not exist.
type TodoHandler struct {
	Repo *datastore.TodoRepository
}

func NewTodoHandler(repo *datastore.TodoRepository) *TodoHandler {
	return &TodoHandler{Repo: repo}
}

func (h *TodoHandler) HandleGetTodos(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	var todos []models.Todo
	var err error

	// With a date filter, the whole day is returned. Without one, only
	// incomplete items are.
	if date := r.URL.Query().Get("date"); date != "" {
		if _, parseErr := time.Parse(models.DateLayout, date); parseErr != nil {
			return webutil.ErrBadRequest("Invalid date format, expected YYYY-MM-DD")
		}
		todos, err = h.Repo.GetTodosByDate(r.Context(), session.UserID, date)
	} else {
		todos, err = h.Repo.GetIncompleteTodos(r.Context(), session.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to retrieve todos for user %d: %w", session.UserID, err)
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, todos)
	return nil
}

func (h *TodoHandler) HandleCreateTodo(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	var requestData struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	title := strings.TrimSpace(requestData.Title)
	if title == "" {
		return webutil.ErrBadRequest("Title is required")
	}

	todo := models.Todo{
		Title:       title,
		Description: strings.TrimSpace(requestData.Description),
		CreatedDate: time.Now().Format(models.DateLayout),
		UserID:      session.UserID,
	}

	if err := h.Repo.CreateTodo(r.Context(), &todo); err != nil {
		return fmt.Errorf("failed to create todo %q: %w", title, err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, todo)
	return nil
}

func (h *TodoHandler) HandleUpdateTodo(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	todoID, err := parseIDParam(r)
	if err != nil {
		return webutil.ErrBadRequest("Invalid todo ID")
	}

	var requestData struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Completed   *bool   `json:"completed"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	todo, err := h.Repo.GetTodoByID(r.Context(), todoID, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrNotFound("Todo not found")
		}
		return fmt.Errorf("failed to retrieve todo %d: %w", todoID, err)
	}

	if requestData.Title != nil {
		title := strings.TrimSpace(*requestData.Title)
		if title == "" {
			return webutil.ErrBadRequest("Title cannot be empty")
		}
		todo.Title = title
	}
	if requestData.Description != nil {
		todo.Description = strings.TrimSpace(*requestData.Description)
	}
	if requestData.Completed != nil {
		todo.Completed = *requestData.Completed
	}

	if err := h.Repo.UpdateTodo(r.Context(), todo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrNotFound("Todo not found")
		}
		return fmt.Errorf("failed to update todo %d: %w", todoID, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, todo)
	return nil
}

func (h *TodoHandler) HandleDeleteTodo(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	todoID, err := parseIDParam(r)
	if err != nil {
		return webutil.ErrBadRequest("Invalid todo ID")
	}

	if err := h.Repo.DeleteTodo(r.Context(), todoID, session.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrNotFound("Todo not found")
		}
		return fmt.Errorf("failed to delete todo %d: %w", todoID, err)
	}

	webutil.RespondWithMessage(w, http.StatusOK, "Deleted")
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
