package routehandlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/lakonic/taskdeck/auth"
	"github.com/lakonic/taskdeck/webutil"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// serve runs the handler through the same error-mapping adapter the router
// uses, so tests observe the wire-level status codes and bodies.
func serve(t *testing.T, handler webutil.AppHandler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	webutil.MakeHandler(handler)(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withSession attaches an authenticated session the way the loader
// middleware would.
func withSession(req *http.Request, userID int64, username string, isAdmin bool) *http.Request {
	session := auth.Session{
		ID:       "test-session",
		Token:    "test-token",
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
	}
	return req.WithContext(auth.WithSession(req.Context(), session))
}

// withURLParam injects a chi route parameter without a full router.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

type sentMail struct {
	Recipient string
	Subject   string
	Body      string
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

func (f *fakeMailer) Send(_ context.Context, recipient, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMail{Recipient: recipient, Subject: subject, Body: htmlBody})
	return nil
}

func (f *fakeMailer) sentMails() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

var errMailDown = errors.New("smtp connection refused")
