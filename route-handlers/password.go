package routehandlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/datastore"
	"github.com/lakonic/taskdeck/delivery"
	"github.com/lakonic/taskdeck/webutil"
)

// The forgot-password response is identical whether or not the email
// matched a user, so the endpoint cannot be used to enumerate accounts.
const forgotPasswordResponse = "If the email exists, a reset link has been sent"

type PasswordResetHandler struct {
	Users   *datastore.UserRepository
	Resets  *auth.ResetService
	Mailer  delivery.Mailer
	BaseURL string // reset links are built against this
}

func NewPasswordResetHandler(users *datastore.UserRepository, resets *auth.ResetService, mailer delivery.Mailer, baseURL string) *PasswordResetHandler {
	return &PasswordResetHandler{
		Users:   users,
		Resets:  resets,
		Mailer:  mailer,
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (h *PasswordResetHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) error {
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

	user, err := h.Users.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			webutil.RespondWithMessage(w, http.StatusOK, forgotPasswordResponse)
			return nil
		}
		return fmt.Errorf("failed to look up email for reset: %w", err)
	}

	token, err := h.Resets.Issue(user.ID)
	if err != nil {
		return fmt.Errorf("failed to issue reset token for user %d: %w", user.ID, err)
	}

	resetLink := fmt.Sprintf("%s/reset-password/%s", h.BaseURL, token)
	body, err := delivery.RenderResetEmail(user.Username, resetLink)
	if err != nil {
		return fmt.Errorf("failed to render reset email for user %d: %w", user.ID, err)
	}

	if err := h.Mailer.Send(r.Context(), email, "TaskDeck - Password Reset", body); err != nil {
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError,
			"Failed to send email, please try again later", err)
	}

	webutil.RespondWithMessage(w, http.StatusOK, forgotPasswordResponse)
	return nil
}

func (h *PasswordResetHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&requestData); err != nil {
		return webutil.ErrBadRequest("Invalid request payload: " + err.Error())
	}
	defer r.Body.Close()

	token := strings.TrimSpace(requestData.Token)
	if token == "" || requestData.NewPassword == "" {
		return webutil.ErrBadRequest("Token and new password are required")
	}
	if len(requestData.NewPassword) < auth.MinPasswordLength {
		return webutil.ErrBadRequest(fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	}

	userID, result := h.Resets.Redeem(token)
	switch result {
	case auth.ResetExpired:
		return webutil.ErrBadRequest("Reset link has expired")
	case auth.ResetInvalid:
		return webutil.ErrBadRequest("Reset link is invalid or has expired")
	}

	passwordHash, err := auth.HashPassword(requestData.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password for user %d: %w", userID, err)
	}
	if err := h.Users.UpdatePassword(r.Context(), userID, passwordHash); err != nil {
		return fmt.Errorf("failed to store new password for user %d: %w", userID, err)
	}

	webutil.RespondWithMessage(w, http.StatusOK, "Password reset successful")
	return nil
}
