package database

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/npezzotti/go-duochat/internal/types"
	"github.com/oklog/ulid/v2"
)

// ChatRepository is the conversation store and the account lookups the
// chat core depends on. Lookups of unknown ids return an error wrapping
// types.ErrNotFound.
type ChatRepository interface {
	Ping(ctx context.Context) error
	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, id string) (User, error)
	GetAccountByUsername(ctx context.Context, username string) (User, error)
	ListAccounts(ctx context.Context, excludeId string) ([]User, error)
	SetOnline(ctx context.Context, id string, online bool) error
	AppendMessage(ctx context.Context, params AppendMessageParams) (Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	GetHistory(ctx context.Context, userA, userB string) ([]Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status types.Status) (Message, bool, error)
	MarkAllSeen(ctx context.Context, from, to string) (int64, error)
}

func newAccountId() string {
	return uuid.NewString()
}

// newMessageId returns a ULID so ids sort in creation order within a
// process even when created_at collides.
func newMessageId(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

func isEmptyMessage(params AppendMessageParams) bool {
	return strings.TrimSpace(params.Body) == "" && strings.TrimSpace(params.Media) == ""
}
