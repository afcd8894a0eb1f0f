package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lakonic/taskdeck/auth"
	rh "github.com/lakonic/taskdeck/route-handlers"
	"github.com/lakonic/taskdeck/webutil"
)

const (
	apiBasePath   = "/api"
	todosBasePath = "/todos"
	adminBasePath = "/admin"
	usersBasePath = "/users"
)

const (
	paramID = "id" // General parameter name for resource IDs
)

func SetupRoutes(
	corsCfg CORSConfig,
	sessions *auth.SessionManager,
	authHandler *rh.AuthHandler,
	todoHandler *rh.TodoHandler,
	passwordHandler *rh.PasswordResetHandler,
	adminHandler *rh.AdminHandler,
	reminderHandler *rh.ReminderHandler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                    // Log every request
	r.Use(middleware.Recoverer)                 // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second)) // Set a timeout context for requests
	r.Use(CrossOriginHeaders(corsCfg))
	r.Use(SessionLoader(sessions))

	r.Route(apiBasePath, func(r chi.Router) {
		// Public: registration, login, password recovery.
		r.Post("/register", webutil.MakeHandler(authHandler.HandleRegister))
		r.Get("/check-username", webutil.MakeHandler(authHandler.HandleCheckUsername))
		r.Post("/login", webutil.MakeHandler(authHandler.HandleLogin))
		r.Post("/logout", webutil.MakeHandler(authHandler.HandleLogout))
		r.Post("/forgot-password", webutil.MakeHandler(passwordHandler.HandleForgotPassword))
		r.Post("/reset-password", webutil.MakeHandler(passwordHandler.HandleResetPassword))

		// Authenticated user surface.
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Get("/me", webutil.MakeHandler(authHandler.HandleMe))
			r.Put("/me/reminder", webutil.MakeHandler(authHandler.HandleUpdateReminder))
			r.Post("/send-reminder-now", webutil.MakeHandler(reminderHandler.HandleSendReminderNow))

			r.Route(todosBasePath, func(r chi.Router) {
				r.Get("/", webutil.MakeHandler(todoHandler.HandleGetTodos))
				r.Post("/", webutil.MakeHandler(todoHandler.HandleCreateTodo))
				r.Route(pathWithParam("", paramID), func(r chi.Router) {
					r.Put("/", webutil.MakeHandler(todoHandler.HandleUpdateTodo))
					r.Delete("/", webutil.MakeHandler(todoHandler.HandleDeleteTodo))
				})
			})
		})

		// Admin console.
		r.Route(adminBasePath, func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Route(usersBasePath, func(r chi.Router) {
				r.Get("/", webutil.MakeHandler(adminHandler.HandleListUsers))
				r.Post("/", webutil.MakeHandler(adminHandler.HandleCreateUser))
				r.Route(pathWithParam("", paramID), func(r chi.Router) {
					r.Get("/", webutil.MakeHandler(adminHandler.HandleGetUser))
					r.Delete("/", webutil.MakeHandler(adminHandler.HandleDeleteUser))
					r.Get(todosBasePath, webutil.MakeHandler(adminHandler.HandleGetUserTodos))
				})
			})
			r.Post("/test-email", webutil.MakeHandler(adminHandler.HandleTestEmail))
		})
	})

	// Health check endpoint
	r.Get("/healthz", handleHealthCheck)

	return r
}

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
