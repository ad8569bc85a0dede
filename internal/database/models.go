package database

import (
	"time"

	"github.com/npezzotti/go-duochat/internal/types"
)

type User struct {
	Id           string
	Username     string
	EmailAddress string
	Profession   string
	Location     string
	Avatar       string
	PasswordHash string
	Online       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id        string
	From      string
	To        string
	Body      string
	Media     string
	Status    types.Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	Profession   string
	Location     string
	Avatar       string
	PasswordHash string
}

type AppendMessageParams struct {
	From  string
	To    string
	Body  string
	Media string
}

// ToMessage converts a stored message into its wire form.
func (m Message) ToMessage() types.Message {
	return types.Message{
		Id:        m.Id,
		From:      m.From,
		To:        m.To,
		Body:      m.Body,
		Media:     m.Media,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
	}
}

func (u User) ToUser() types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		Profession:   u.Profession,
		Location:     u.Location,
		Avatar:       u.Avatar,
		Online:       u.Online,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
