package routehandlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/datastore"
	"github.com/lakonic/taskdeck/models"
	"github.com/lakonic/taskdeck/webutil"
)

const minUsernameLength = 3

type AuthHandler struct {
	Users    *datastore.UserRepository
	Sessions *auth.SessionManager
}

func NewAuthHandler(users *datastore.UserRepository, sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{Users: users, Sessions: sessions}
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
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
		ReminderTime: models.DefaultReminderTime,
	}

	if err := h.Users.CreateUser(r.Context(), &newUser); err != nil {
		return mapDuplicateUserErr(err, username)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"id":       newUser.ID,
		"username": newUser.Username,
		"email":    newUser.Email,
	})
	return nil
}

func (h *AuthHandler) HandleCheckUsername(w http.ResponseWriter, r *http.Request) error {
	username := strings.TrimSpace(r.URL.Query().Get("username"))

	if username == "" {
		webutil.RespondWithJSON(w, http.StatusBadRequest, map[string]any{
			"available": false, "message": "Username is required",
		})
		return nil
	}
	if len(username) < minUsernameLength {
		webutil.RespondWithJSON(w, http.StatusBadRequest, map[string]any{
			"available": false, "message": fmt.Sprintf("Username must be at least %d characters", minUsernameLength),
		})
		return nil
	}

	_, err := h.Users.GetUserByUsername(r.Context(), username)
	switch {
	case err == nil:
		webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
			"available": false, "message": "Username already taken",
		})
	case errors.Is(err, sql.ErrNoRows):
		webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
			"available": true, "message": "Username is available",
		})
	default:
		return fmt.Errorf("failed to check username %q: %w", username, err)
	}
	return nil
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	username := strings.TrimSpace(requestData.Username)
	if username == "" || requestData.Password == "" {
		return webutil.ErrBadRequest("Username and password are required")
	}

	// A missing user and a wrong password produce the same response so the
	// login endpoint cannot be used to enumerate usernames.
	user, err := h.Users.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrUnauthorized("Invalid username or password")
		}
		return fmt.Errorf("failed to look up user %q: %w", username, err)
	}
	if !auth.VerifyPassword(requestData.Password, user.PasswordHash) {
		return webutil.ErrUnauthorized("Invalid username or password")
	}

	if err := h.Users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		// Non-essential bookkeeping; the login still proceeds.
		log.Printf("WARN (Auth): Failed to update last login for user %d: %v", user.ID, err)
	}

	session, err := h.Sessions.Create(user)
	if err != nil {
		return fmt.Errorf("failed to create session for user %d: %w", user.ID, err)
	}
	setSessionCookie(w, session.Token)

	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"is_admin": user.IsAdmin,
	})
	return nil
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) error {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Sessions.Destroy(cookie.Value)
	}
	clearSessionCookie(w)
	webutil.RespondWithMessage(w, http.StatusOK, "Logged out")
	return nil
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	// The reminder preference is read fresh; the session only carries
	// identity and role.
	user, err := h.Users.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The account was deleted while the session was live.
			h.Sessions.Destroy(session.Token)
			clearSessionCookie(w)
			return webutil.ErrUnauthorized("Please log in first")
		}
		return fmt.Errorf("failed to load user %d: %w", session.UserID, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"id":              user.ID,
		"username":        user.Username,
		"is_admin":        user.IsAdmin,
		"reminder_time":   user.ReminderTime,
		"reminder_hour":   user.ReminderHour(),
		"reminder_minute": user.ReminderMinute(),
	})
	return nil
}

func (h *AuthHandler) HandleUpdateReminder(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	var requestData struct {
		ReminderHour   *int `json:"reminder_hour"`
		ReminderMinute *int `json:"reminder_minute"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	if requestData.ReminderHour == nil {
		return webutil.ErrBadRequest("Reminder hour is required")
	}
	hour := *requestData.ReminderHour
	minute := 0
	if requestData.ReminderMinute != nil {
		minute = *requestData.ReminderMinute
	}

	if hour < 0 || hour > 23 {
		return webutil.ErrBadRequest("Hour must be between 0 and 23")
	}
	if minute < 0 || minute > 59 {
		return webutil.ErrBadRequest("Minute must be between 0 and 59")
	}

	reminderTime := hour*60 + minute
	if err := h.Users.UpdateReminderTime(r.Context(), session.UserID, reminderTime); err != nil {
		return fmt.Errorf("failed to update reminder time for user %d: %w", session.UserID, err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"message":         "Reminder time updated",
		"reminder_time":   reminderTime,
		"reminder_hour":   hour,
		"reminder_minute": minute,
	})
	return nil
}

// validateCredentials applies the shared registration rules. Email syntax
// is only checked for the presence of "@"; anything stricter is the mail
// transport's problem.
func validateCredentials(username, password, email string) error {
	if username == "" || password == "" || email == "" {
		return webutil.ErrBadRequest("Username, password, and email are required")
	}
	if len(username) < minUsernameLength {
		return webutil.ErrBadRequest(fmt.Sprintf("Username must be at least %d characters", minUsernameLength))
	}
	if len(password) < auth.MinPasswordLength {
		return webutil.ErrBadRequest(fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}
	if !strings.Contains(email, "@") {
		return webutil.ErrBadRequest("Please provide a valid email address")
	}
	return nil
}

func mapDuplicateUserErr(err error, username string) error {
	switch {
	case errors.Is(err, datastore.ErrDuplicateUsername):
		return webutil.ErrConflict("Username already taken")
	case errors.Is(err, datastore.ErrDuplicateEmail):
		return webutil.ErrConflict("Email already registered")
	default:
		return fmt.Errorf("failed to create user %q: %w", username, err)
	}
}

func setSessionCookie(w http.ResponseWriter, token string) {
	// No Expires/MaxAge: the cookie lasts only for the browser session.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
