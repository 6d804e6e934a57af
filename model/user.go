package model

import "time"

// User represents an application user. Password holds the bcrypt hash and
// is cleared before the user is written to any response.
type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
