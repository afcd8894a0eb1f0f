package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakonic/taskdeck/models"
)

func TestSessionLifecycle(t *testing.T) {
	sm := NewSessionManager(NewMemorySessionStore())

	user := &models.User{ID: 3, Username: "alice", IsAdmin: true}
	session, err := sm.Create(user)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, int64(3), session.UserID)
	assert.Equal(t, "alice", session.Username)
	assert.True(t, session.IsAdmin)

	got, ok := sm.Lookup(session.Token)
	require.True(t, ok)
	assert.Equal(t, session, got)

	sm.Destroy(session.Token)
	_, ok = sm.Lookup(session.Token)
	assert.False(t, ok)

	// Destroying again is a no-op.
	sm.Destroy(session.Token)
}

func TestSessionLookupUnknownToken(t *testing.T) {
	sm := NewSessionManager(NewMemorySessionStore())

	_, ok := sm.Lookup("")
	assert.False(t, ok)

	_, ok = sm.Lookup("nonexistent")
	assert.False(t, ok)
}

func TestSessionTokensAreUnique(t *testing.T) {
	sm := NewSessionManager(NewMemorySessionStore())
	user := &models.User{ID: 1, Username: "bob"}

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		session, err := sm.Create(user)
		require.NoError(t, err)
		assert.False(t, seen[session.Token])
		seen[session.Token] = true
	}
}

func TestSessionContextRoundTrip(t *testing.T) {
	session := Session{Token: "tok", UserID: 9, Username: "carol"}

	ctx := WithSession(context.Background(), session)
	got, ok := SessionFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, session, got)

	_, ok = SessionFrom(context.Background())
	assert.False(t, ok)
}

func TestPasswordHashAndVerify(t *testing.T) {
	digest, err := HashPassword("secret1")
	require.NoError(t, err)
	// SHA-256 hex digest.
	assert.Len(t, digest, 64)

	assert.True(t, VerifyPassword("secret1", digest))
	assert.False(t, VerifyPassword("secret2", digest))
	assert.False(t, VerifyPassword("", digest))
}

func TestPasswordHashIsDeterministic(t *testing.T) {
	a, err := HashPassword("same-input")
	require.NoError(t, err)
	b, err := HashPassword("same-input")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
