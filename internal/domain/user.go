package domain

import "time"

// User is one distinct Telegram identity. Profile fields are written once at
// first contact and never re-synced afterwards.
type User struct {
	ID         int64
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	IsBot      bool
	CreatedAt  time.Time
}
