package models

import "time"

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type Todo struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedDate string    `json:"created_date"` // Calendar day, DateLayout
	CreatedAt   time.Time `json:"created_at"`
	UserID      int64     `json:"-"` // Ownership is implied by the authenticated session
}
