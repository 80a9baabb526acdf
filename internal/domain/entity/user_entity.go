package entity

import (
	"time"
)

// User is the aggregate root for the credential store.
// Password holds the bcrypt hash, never the plain text, and must not leave
// the application layer.
type User struct {
	ID        string
	Email     string
	Password  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
