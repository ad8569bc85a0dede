package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
	"github.com/npezzotti/go-duochat/internal/types"
)

// MemoryChatRepository keeps accounts and messages in process memory. Rows
// are stored in their encoded form so it behaves like the Postgres
// repository at the codec boundary.
type MemoryChatRepository struct {
	codec    fieldcrypt.Codec
	mu       sync.RWMutex
	accounts map[string]User
	messages []Message
	msgIndex map[string]int
}

func NewMemoryChatRepository(codec fieldcrypt.Codec) *MemoryChatRepository {
	return &MemoryChatRepository{
		codec:    codec,
		accounts: make(map[string]User),
		msgIndex: make(map[string]int),
	}
}

func (m *MemoryChatRepository) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryChatRepository) Close() error {
	return nil
}

func (m *MemoryChatRepository) CreateAccount(_ context.Context, params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	u, err := encodeAccount(m.codec, User{
		Id:           newAccountId(),
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		Profession:   params.Profession,
		Location:     params.Location,
		Avatar:       params.Avatar,
		PasswordHash: params.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.Username == params.Username {
			return User{}, ErrUsernameTaken
		}
	}

	m.accounts[u.Id] = u
	return decodeAccount(m.codec, u)
}

func (m *MemoryChatRepository) GetAccountById(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.accounts[id]
	if !ok {
		return User{}, fmt.Errorf("%w: account %q", types.ErrNotFound, id)
	}

	return decodeAccount(m.codec, u)
}

func (m *MemoryChatRepository) GetAccountByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.accounts {
		if u.Username == username {
			return decodeAccount(m.codec, u)
		}
	}

	return User{}, fmt.Errorf("%w: account %q", types.ErrNotFound, username)
}

func (m *MemoryChatRepository) ListAccounts(_ context.Context, excludeId string) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]User, 0, len(m.accounts))
	for id, u := range m.accounts {
		if id == excludeId {
			continue
		}

		dec, err := decodeAccount(m.codec, u)
		if err != nil {
			return nil, err
		}
		users = append(users, dec)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (m *MemoryChatRepository) SetOnline(_ context.Context, id string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account %q", types.ErrNotFound, id)
	}

	u.Online = online
	u.UpdatedAt = time.Now().UTC()
	m.accounts[id] = u
	return nil
}

func (m *MemoryChatRepository) AppendMessage(_ context.Context, params AppendMessageParams) (Message, error) {
	if isEmptyMessage(params) {
		return Message{}, fmt.Errorf("%w: message has neither body nor media", types.ErrValidation)
	}

	body, err := m.codec.Encrypt(params.Body)
	if err != nil {
		return Message{}, fmt.Errorf("encrypt body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[params.From]; !ok {
		return Message{}, fmt.Errorf("%w: sender %q", types.ErrNotFound, params.From)
	}
	if _, ok := m.accounts[params.To]; !ok {
		return Message{}, fmt.Errorf("%w: recipient %q", types.ErrNotFound, params.To)
	}

	now := types.Now()
	msg := Message{
		Id:        newMessageId(now),
		From:      params.From,
		To:        params.To,
		Body:      body,
		Media:     params.Media,
		Status:    types.StatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.msgIndex[msg.Id] = len(m.messages)
	m.messages = append(m.messages, msg)

	return decodeMessage(m.codec, msg)
}

func (m *MemoryChatRepository) GetMessage(_ context.Context, id string) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.msgIndex[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}

	return decodeMessage(m.codec, m.messages[i])
}

func (m *MemoryChatRepository) GetHistory(_ context.Context, userA, userB string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]Message, 0)
	for _, msg := range m.messages {
		if (msg.From == userA && msg.To == userB) || (msg.From == userB && msg.To == userA) {
			dec, err := decodeMessage(m.codec, msg)
			if err != nil {
				return nil, err
			}
			history = append(history, dec)
		}
	}

	// messages are appended in insertion order, a stable sort keeps it for
	// equal timestamps
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})

	return history, nil
}

func (m *MemoryChatRepository) UpdateMessageStatus(_ context.Context, id string, status types.Status) (Message, bool, error) {
	if !status.Valid() {
		return Message{}, false, fmt.Errorf("%w: invalid status %d", types.ErrValidation, int(status))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.msgIndex[id]
	if !ok {
		return Message{}, false, fmt.Errorf("%w: message %q", types.ErrNotFound, id)
	}

	msg := m.messages[i]
	if !status.After(msg.Status) {
		dec, err := decodeMessage(m.codec, msg)
		return dec, false, err
	}

	msg.Status = status
	msg.UpdatedAt = time.Now().UTC()
	m.messages[i] = msg

	dec, err := decodeMessage(m.codec, msg)
	return dec, true, err
}

func (m *MemoryChatRepository) MarkAllSeen(_ context.Context, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var n int64
	for i, msg := range m.messages {
		if msg.From == from && msg.To == to && msg.Status != types.StatusSeen {
			m.messages[i].Status = types.StatusSeen
			m.messages[i].UpdatedAt = now
			n++
		}
	}

	return n, nil
}
