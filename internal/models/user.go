package models

import "time"

// User is an operator account allowed to issue control commands.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Operator is the authenticated identity behind a command. It travels on
// the request context and is recorded in journal metadata.
type Operator struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
