package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
	"github.com/npezzotti/go-duochat/internal/types"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

var ErrUsernameTaken = errors.New("username already taken")

type PgChatRepository struct {
	conn  *sql.DB
	codec fieldcrypt.Codec
}

func NewPgChatRepository(dsn string, codec fieldcrypt.Codec) (*PgChatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &PgChatRepository{conn: db, codec: codec}, nil
}

func (db *PgChatRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// translateError maps driver errors onto the errors callers branch on.
func translateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrUsernameTaken
		case pqForeignKeyViolation:
			return fmt.Errorf("%w: %s", types.ErrNotFound, pqErr.Detail)
		}
	}

	return err
}
