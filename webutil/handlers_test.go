package webutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runHandler(t *testing.T, handler AppHandler) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	MakeHandler(handler)(rec, req)
	return rec
}

func TestMakeHandlerSuccess(t *testing.T) {
	rec := runHandler(t, func(w http.ResponseWriter, r *http.Request) error {
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return nil
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestMakeHandlerHTTPError(t *testing.T) {
	rec := runHandler(t, func(w http.ResponseWriter, r *http.Request) error {
		return ErrConflict("Username already taken")
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error": "Username already taken"}`, rec.Body.String())
	assert.Equal(t, ContentTypeJSONUTF8, rec.Header().Get(HeaderContentType))
}

func TestMakeHandlerNoRows(t *testing.T) {
	rec := runHandler(t, func(w http.ResponseWriter, r *http.Request) error {
		return fmt.Errorf("lookup failed: %w", sql.ErrNoRows)
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "Resource not found"}`, rec.Body.String())
}

func TestMakeHandlerUnknownError(t *testing.T) {
	rec := runHandler(t, func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("connection reset by peer")
	})

	// Internal details never reach the client.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal Server Error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestMakeHandlerErrorWithPresetHeaders(t *testing.T) {
	// Middleware routinely sets headers before the handler runs; that must
	// not be mistaken for a committed response.
	rec := runHandler(t, func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set(HeaderContentType, ContentTypeJSONUTF8)
		return ErrBadRequest("Title is required")
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Title is required"}`, rec.Body.String())
}

func TestMakeHandlerErrorAfterResponseCommitted(t *testing.T) {
	rec := runHandler(t, func(w http.ResponseWriter, r *http.Request) error {
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return errors.New("too late")
	})

	// The committed response stands; no second body is appended.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestMakeHandlerErrorAfterBareWrite(t *testing.T) {
	rec := runHandler(t, func(w http.ResponseWriter, r *http.Request) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("too late")
	})

	// A bare Write commits an implicit 200.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
}
