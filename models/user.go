package models

import "time"

// Default reminder preference: 09:00, stored as minutes since midnight.
const DefaultReminderTime = 540

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"` // Not exposed in API responses
	Email        string     `json:"email"`
	IsAdmin      bool       `json:"is_admin"`
	ReminderTime int        `json:"reminder_time"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// ReminderHour returns the hour-of-day component of the user's
// reminder preference.
func (u *User) ReminderHour() int {
	return u.ReminderTime / 60
}

// ReminderMinute returns the minute component of the user's
// reminder preference.
func (u *User) ReminderMinute() int {
	return u.ReminderTime % 60
}

// UserSummary is the admin console's list row: the user record plus
// an aggregate count of the todos they own.
type UserSummary struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	IsAdmin     bool       `json:"is_admin"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
	TodoCount   int64      `json:"todo_count"`
}
