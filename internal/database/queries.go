package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-duochat/internal/types"
)

const (
	accountColumns = "id, username, email, profession, location, avatar, password_hash, online, created_at, updated_at"
	messageColumns = "id, from_id, to_id, body, media, status, created_at, updated_at"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *PgChatRepository) scanAccount(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.Profession,
		&u.Location,
		&u.Avatar,
		&u.PasswordHash,
		&u.Online,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return User{}, translateError(err)
	}

	return decodeAccount(db.codec, u)
}

func (db *PgChatRepository) scanMessage(row rowScanner) (Message, error) {
	var m Message
	err := row.Scan(
		&m.Id,
		&m.From,
		&m.To,
		&m.Body,
		&m.Media,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return Message{}, translateError(err)
	}

	return decodeMessage(db.codec, m)
}

func (db *PgChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	enc, err := encodeAccount(db.codec, User{
		EmailAddress: params.EmailAddress,
		Profession:   params.Profession,
		Location:     params.Location,
	})
	if err != nil {
		return User{}, err
	}

	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (id, username, email, profession, location, avatar, password_hash, online, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $8) RETURNING "+accountColumns,
		newAccountId(),
		params.Username,
		enc.EmailAddress,
		enc.Profession,
		enc.Location,
		params.Avatar,
		params.PasswordHash,
		now,
	)

	return db.scanAccount(row)
}

func (db *PgChatRepository) GetAccountById(ctx context.Context, id string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 LIMIT 1",
		id,
	)

	return db.scanAccount(row)
}

func (db *PgChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username = $1 LIMIT 1",
		username,
	)

	return db.scanAccount(row)
}

func (db *PgChatRepository) ListAccounts(ctx context.Context, excludeId string) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id <> $1 ORDER BY username",
		excludeId,
	)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := db.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return users, nil
}

func (db *PgChatRepository) SetOnline(ctx context.Context, id string, online bool) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE accounts SET online = $2, updated_at = $3 WHERE id = $1",
		id,
		online,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: account %q", types.ErrNotFound, id)
	}

	return nil
}

func (db *PgChatRepository) AppendMessage(ctx context.Context, params AppendMessageParams) (Message, error) {
	if isEmptyMessage(params) {
		return Message{}, fmt.Errorf("%w: message has neither body nor media", types.ErrValidation)
	}

	body, err := db.codec.Encrypt(params.Body)
	if err != nil {
		return Message{}, fmt.Errorf("encrypt body: %w", err)
	}

	now := types.Now()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (id, from_id, to_id, body, media, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING "+messageColumns,
		newMessageId(now),
		params.From,
		params.To,
		body,
		params.Media,
		types.StatusSent,
		now,
	)

	return db.scanMessage(row)
}

func (db *PgChatRepository) GetMessage(ctx context.Context, id string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = $1 LIMIT 1",
		id,
	)

	return db.scanMessage(row)
}

func (db *PgChatRepository) GetHistory(ctx context.Context, userA, userB string) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE (from_id = $1 AND to_id = $2) OR (from_id = $2 AND to_id = $1) "+
			"ORDER BY created_at ASC, seq ASC",
		userA,
		userB,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := db.scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

// UpdateMessageStatus advances a message only if status is later than the
// stored one. The condition lives in the UPDATE so concurrent acks for the
// same message cannot move it backwards.
func (db *PgChatRepository) UpdateMessageStatus(ctx context.Context, id string, status types.Status) (Message, bool, error) {
	if !status.Valid() {
		return Message{}, false, fmt.Errorf("%w: invalid status %d", types.ErrValidation, int(status))
	}

	row := db.conn.QueryRowContext(ctx,
		"UPDATE messages SET status = $2, updated_at = $3 "+
			"WHERE id = $1 AND status < $2 RETURNING "+messageColumns,
		id,
		status,
		time.Now().UTC(),
	)

	msg, err := db.scanMessage(row)
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return Message{}, false, err
	}

	// nothing updated: either the id is unknown or the status is not later
	cur, err := db.GetMessage(ctx, id)
	if err != nil {
		return Message{}, false, err
	}

	return cur, false, nil
}

func (db *PgChatRepository) MarkAllSeen(ctx context.Context, from, to string) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET status = $3, updated_at = $4 "+
			"WHERE from_id = $1 AND to_id = $2 AND status <> $3",
		from,
		to,
		types.StatusSeen,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
