package routehandlers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/datastore"
	"github.com/lakonic/taskdeck/delivery"
	"github.com/lakonic/taskdeck/models"
	"github.com/lakonic/taskdeck/webutil"
)

// ReminderHandler implements the on-demand "send my reminder now" action.
// Unlike the background loop it bypasses the per-hour dedup state; it is an
// explicit user request.
type ReminderHandler struct {
	Users       *datastore.UserRepository
	Todos       *datastore.TodoRepository
	Mailer      delivery.Mailer
	AppURL      string
	MailEnabled bool
}

func NewReminderHandler(users *datastore.UserRepository, todos *datastore.TodoRepository, mailer delivery.Mailer, appURL string, mailEnabled bool) *ReminderHandler {
	return &ReminderHandler{
		Users:       users,
		Todos:       todos,
		Mailer:      mailer,
		AppURL:      appURL,
		MailEnabled: mailEnabled,
	}
}

func (h *ReminderHandler) HandleSendReminderNow(w http.ResponseWriter, r *http.Request) error {
	session, _ := auth.SessionFrom(r.Context())

	if !h.MailEnabled {
		return webutil.ErrBadRequest("Mail service is not enabled")
	}

	user, err := h.Users.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrUnauthorized("Please log in first")
		}
		return fmt.Errorf("failed to load user %d: %w", session.UserID, err)
	}
	if user.Email == "" {
		return webutil.ErrBadRequest("No email address configured")
	}

	todos, err := h.Todos.GetIncompleteTodos(r.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("failed to retrieve todos for user %d: %w", user.ID, err)
	}
	if len(todos) == 0 {
		webutil.RespondWithMessage(w, http.StatusOK, "No incomplete todos")
		return nil
	}

	titles := make([]string, len(todos))
	for i, todo := range todos {
		titles[i] = todo.Title
	}

	body, err := delivery.RenderReminderEmail(user.Username, titles, h.AppURL)
	if err != nil {
		return fmt.Errorf("failed to render reminder for user %d: %w", user.ID, err)
	}

	subject := fmt.Sprintf("Todo Reminder - %s", time.Now().Format(models.DateLayout))
	if err := h.Mailer.Send(r.Context(), user.Email, subject, body); err != nil {
		// Transport failure is reported, never fatal to the request.
		log.Printf("WARN (Reminder): On-demand send to %s failed: %v", user.Email, err)
		return webutil.NewHTTPErrorWrap(http.StatusInternalServerError,
			"Failed to send email, please try again later", err)
	}

	webutil.RespondWithMessage(w, http.StatusOK, fmt.Sprintf("Reminder email sent to %s", user.Email))
	return nil
}
