package database

import (
	"fmt"

	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
)

// encodeAccount encrypts the profile fields stored at rest.
func encodeAccount(codec fieldcrypt.Codec, u User) (User, error) {
	var err error
	if u.EmailAddress, err = codec.Encrypt(u.EmailAddress); err != nil {
		return User{}, fmt.Errorf("encrypt email: %w", err)
	}
	if u.Profession, err = codec.Encrypt(u.Profession); err != nil {
		return User{}, fmt.Errorf("encrypt profession: %w", err)
	}
	if u.Location, err = codec.Encrypt(u.Location); err != nil {
		return User{}, fmt.Errorf("encrypt location: %w", err)
	}
	return u, nil
}

func decodeAccount(codec fieldcrypt.Codec, u User) (User, error) {
	var err error
	if u.EmailAddress, err = codec.Decrypt(u.EmailAddress); err != nil {
		return User{}, fmt.Errorf("decrypt email: %w", err)
	}
	if u.Profession, err = codec.Decrypt(u.Profession); err != nil {
		return User{}, fmt.Errorf("decrypt profession: %w", err)
	}
	if u.Location, err = codec.Decrypt(u.Location); err != nil {
		return User{}, fmt.Errorf("decrypt location: %w", err)
	}
	return u, nil
}

func decodeMessage(codec fieldcrypt.Codec, m Message) (Message, error) {
	body, err := codec.Decrypt(m.Body)
	if err != nil {
		return Message{}, fmt.Errorf("decrypt body of message %s: %w", m.Id, err)
	}
	m.Body = body
	return m, nil
}
