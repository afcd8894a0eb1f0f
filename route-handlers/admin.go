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

	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/datastore"
	"github.com/lakonic/taskdeck/delivery"
	"github.com/lakonic/taskdeck/models"
	"github.com/lakonic/taskdeck/webutil"
)

const (
	defaultPage    = 1
	defaultPerPage = 10
	maxPerPage     = 100
)

// AdminHandler implements the user-management console. All routes are
// mounted behind the admin role guard.
type AdminHandler struct {
	Users  *datastore.UserRepository
	Todos  *datastore.TodoRepository
	Mailer delivery.Mailer
}

func NewAdminHandler(users *datastore.UserRepository, todos *datastore.TodoRepository, mailer delivery.Mailer) *AdminHandler {
	return &AdminHandler{Users: users, Todos: todos, Mailer: mailer}
}

func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) error {
	page := queryInt(r, "page", defaultPage)
	perPage := queryInt(r, "per_page", defaultPerPage)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	if page < 1 {
		page = defaultPage
	}
	if perPage < 1 || perPage > maxPerPage {
		perPage = defaultPerPage
	}

	users, total, err := h.Users.ListUsers(r.Context(), search, page, perPage)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []models.UserSummary{}
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"users":       users,
		"total":       total,
		"page":        page,
		"per_page":    perPage,
		"total_pages": (total + int64(perPage) - 1) / int64(perPage),
	})
	return nil
}

func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"is_admin"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	username := strings.TrimSpace(requestData.Username)
	email := strings.TrimSpace(requestData.Email)

	if err := validateCredentials(username, requestData.Password, email); err != nil {
		return err
	}

	passwordHash, err := auth.HashPassword(requestData.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password for %s: %w", username, err)
	}

	newUser := models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		IsAdmin:      requestData.IsAdmin,
		ReminderTime: models.DefaultReminderTime,
	}

	if err := h.Users.CreateUser(r.Context(), &newUser); err != nil {
		return mapDuplicateUserErr(err, username)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"id":       newUser.ID,
		"username": newUser.Username,
		"email":    newUser.Email,
		"is_admin": newUser.IsAdmin,
	})
	return nil
}

func (h *AdminHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) error {
	userID, err := parseIDParam(r)
	if err != nil {
		return webutil.ErrBadRequest("Invalid user ID")
	}

	user, err := h.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrNotFound("User not found")
		}
		return fmt.Errorf("failed to retrieve user %d: %w", userID, err)
	}

	todos, err := h.Todos.GetTodosByUser(r.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to retrieve todos for user %d: %w", userID, err)
	}
	if todos == nil {
		todos = []models.Todo{}
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"is_admin":      user.IsAdmin,
		"created_at":    user.CreatedAt,
		"last_login_at": user.LastLoginAt,
		"todos":         todos,
	})
	return nil
}

func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	userID, err := parseIDParam(r)
	if err != nil {
		return webutil.ErrBadRequest("Invalid user ID")
	}
	if userID == session.UserID {
		return webutil.ErrBadRequest("You cannot delete your own account")
	}

	if err := h.Users.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrNotFound("User not found")
		}
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}

	webutil.RespondWithMessage(w, http.StatusOK, "Deleted")
	return nil
}

func (h *AdminHandler) HandleGetUserTodos(w http.ResponseWriter, r *http.Request) error {
	userID, err := parseIDParam(r)
	if err != nil {
		return webutil.ErrBadRequest("Invalid user ID")
	}

	if _, err := h.Users.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrNotFound("User not found")
		}
		return fmt.Errorf("failed to retrieve user %d: %w", userID, err)
	}

	todos, err := h.Todos.GetTodosByUser(r.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to retrieve todos for user %d: %w", userID, err)
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, todos)
	return nil
}

func (h *AdminHandler) HandleTestEmail(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Email string `json:"email"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	email := strings.TrimSpace(requestData.Email)
	if email == "" || !strings.Contains(email, "@") {
		return webutil.ErrBadRequest("Please provide a valid email address")
	}

	body, err := delivery.RenderTestEmail(time.Now())
	if err != nil {
		return fmt.Errorf("failed to render test email: %w", err)
	}

	if err := h.Mailer.Send(r.Context(), email, "TaskDeck - Mail Test", body); err != nil {
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError,
			"Failed to send test email, check the mail configuration", err)
	}

	webutil.RespondWithMessage(w, http.StatusOK, fmt.Sprintf("Test email sent to %s", email))
	return nil
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
