package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReminderEmail(t *testing.T) {
	body, err := RenderReminderEmail("alice", []string{"buy milk", "call bank"}, "http://localhost:8080")
	require.NoError(t, err)

	assert.Contains(t, body, "Hi alice,")
	assert.Contains(t, body, "buy milk")
	assert.Contains(t, body, "call bank")
	assert.Contains(t, body, "<strong>2</strong> incomplete todos")
	assert.Contains(t, body, `href="http://localhost:8080"`)
}

func TestRenderReminderEmailSingularCount(t *testing.T) {
	body, err := RenderReminderEmail("alice", []string{"buy milk"}, "http://localhost:8080")
	require.NoError(t, err)

	assert.Contains(t, body, "<strong>1</strong> incomplete todo:")
}

func TestRenderReminderEmailEscapesTitles(t *testing.T) {
	body, err := RenderReminderEmail("alice", []string{`<script>alert("x")</script>`}, "http://localhost:8080")
	require.NoError(t, err)

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestRenderResetEmail(t *testing.T) {
	link := "http://localhost:8080/reset-password/abc123"
	body, err := RenderResetEmail("bob", link)
	require.NoError(t, err)

	assert.Contains(t, body, "Hi bob,")
	assert.Contains(t, body, link)
	assert.Contains(t, body, "expires in 1 hour")
}

func TestRenderTestEmail(t *testing.T) {
	sentAt := time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)
	body, err := RenderTestEmail(sentAt)
	require.NoError(t, err)

	assert.Contains(t, body, "Mail test succeeded")
	assert.Contains(t, body, "2026-03-10 14:30:00")
}
