package api

import (
	"net/http"
	"strings"

	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/webutil"
)

// SessionLoader resolves the session cookie, if any, and attaches the
// session to the request context. It never rejects a request; the role
// guards below do that.
func SessionLoader(sm *auth.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cookie, err := r.Cookie(auth.CookieName); err == nil {
				if session, ok := sm.Lookup(cookie.Value); ok {
					r = r.WithContext(auth.WithSession(r.Context(), session))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that carry no valid session.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.SessionFrom(r.Context()); !ok {
			webutil.RespondWithError(w, http.StatusUnauthorized, "Please log in first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects unauthenticated requests with 401 and authenticated
// non-admin requests with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFrom(r.Context())
		if !ok {
			webutil.RespondWithError(w, http.StatusUnauthorized, "Please log in first")
			return
		}
		if !session.IsAdmin {
			webutil.RespondWithError(w, http.StatusForbidden, "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CORSConfig is the allow-list for cross-origin requests.
type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
}

func (c CORSConfig) allows(origin string) (string, bool) {
	if origin == "" {
		return "", false
	}
	wildcard := false
	for _, allowed := range c.AllowedOrigins {
		if allowed == origin {
			return origin, true
		}
		if allowed == "*" {
			wildcard = true
		}
	}
	if wildcard {
		return "*", true
	}
	return "", false
}

// CrossOriginHeaders applies the CORS allow-list and baseline security
// headers to every response, and answers preflight requests directly.
func CrossOriginHeaders(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if cfg.Enabled {
				if allowed, ok := cfg.allows(r.Header.Get(webutil.HeaderOrigin)); ok {
					h.Set("Access-Control-Allow-Origin", allowed)
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
					h.Set("Access-Control-Allow-Credentials", "true")
					h.Set("Access-Control-Max-Age", "3600")
				}
			}

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Content-Security-Policy", strings.Join([]string{
				"default-src 'self'",
				"script-src 'self' 'unsafe-inline'",
				"style-src 'self' 'unsafe-inline'",
				"img-src 'self' data:",
			}, "; "))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
