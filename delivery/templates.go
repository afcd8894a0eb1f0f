package delivery

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Outbound mail bodies. Content is rendered per recipient; the surrounding
// markup stays deliberately simple so it survives most mail clients.

var reminderTemplate = template.Must(template.New("reminder").Parse(`<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background: #4A90D9; color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
    .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
    .todo-list { background: white; padding: 20px; border-radius: 8px; margin: 20px 0; }
    .todo-item { padding: 10px 0; border-bottom: 1px solid #eee; }
    .footer { text-align: center; color: #999; margin-top: 30px; font-size: 12px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>Todo Reminder</h1></div>
    <div class="content">
      <p>Hi {{.Username}},</p>
      <p>You have <strong>{{len .Titles}}</strong> incomplete todo{{if ne (len .Titles) 1}}s{{end}}:</p>
      <div class="todo-list">
        {{range .Titles}}<div class="todo-item">{{.}}</div>
        {{end}}
      </div>
      <p>Visit <a href="{{.AppURL}}">{{.AppURL}}</a> to review and manage your list.</p>
    </div>
    <div class="footer"><p>This message was sent automatically. Please do not reply.</p></div>
  </div>
</body>
</html>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<html>
<head>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; padding: 20px; }
    .container { max-width: 600px; margin: 0 auto; }
    .header { background: #667eea; color: white; padding: 30px; text-align: center; border-radius: 10px 10px 0 0; }
    .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px; }
    .btn { display: inline-block; padding: 12px 30px; background: #667eea; color: white; text-decoration: none; border-radius: 8px; margin: 20px 0; }
    .footer { text-align: center; color: #999; margin-top: 20px; font-size: 12px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>Password Reset</h1></div>
    <div class="content">
      <p>Hi {{.Username}},</p>
      <p>We received a request to reset your password. Click the button below to choose a new one:</p>
      <p style="text-align: center;"><a href="{{.ResetLink}}" class="btn">Reset Password</a></p>
      <p>Or copy this link into your browser:</p>
      <p style="word-break: break-all; color: #667eea;">{{.ResetLink}}</p>
      <p style="color: #999;">This link expires in 1 hour.</p>
    </div>
    <div class="footer"><p>This message was sent automatically. Please do not reply.</p></div>
  </div>
</body>
</html>`))

var testTemplate = template.Must(template.New("test").Parse(`<html>
<body style="font-family: Arial, sans-serif; padding: 20px;">
  <h2 style="color: #667eea;">Mail test succeeded</h2>
  <p>This test message confirms the mail transport is configured correctly.</p>
  <p>Sent at: {{.SentAt}}</p>
  <hr>
  <p style="color: #666; font-size: 12px;">This message was sent automatically. Please do not reply.</p>
</body>
</html>`))

// RenderReminderEmail renders the reminder listing the user's incomplete
// todo titles.
func RenderReminderEmail(username string, titles []string, appURL string) (string, error) {
	data := struct {
		Username string
		Titles   []string
		AppURL   string
	}{username, titles, appURL}

	var b strings.Builder
	if err := reminderTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render reminder email: %w", err)
	}
	return b.String(), nil
}

// RenderResetEmail renders the password reset message carrying the
// single-use reset link.
func RenderResetEmail(username, resetLink string) (string, error) {
	data := struct {
		Username  string
		ResetLink string
	}{username, resetLink}

	var b strings.Builder
	if err := resetTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render reset email: %w", err)
	}
	return b.String(), nil
}

// RenderTestEmail renders the admin console's mail configuration probe.
func RenderTestEmail(sentAt time.Time) (string, error) {
	data := struct {
		SentAt string
	}{sentAt.Format("2006-01-02 15:04:05")}

	var b strings.Builder
	if err := testTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render test email: %w", err)
	}
	return b.String(), nil
}
