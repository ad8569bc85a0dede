package types

import (
	"time"
)

type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Profession   string    `json:"profession,omitempty"`
	Location     string    `json:"location,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	Online       bool      `json:"online"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"body"`
	Media     string    `json:"media,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Now returns the server clock in the precision messages are stored with.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
