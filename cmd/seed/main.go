// Command seed loads demo accounts and a few conversations into the
// configured database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/npezzotti/go-duochat/internal/config"
	"github.com/npezzotti/go-duochat/internal/database"
	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPassword = "Duochat!1"
	defaultFieldKey = "q3xV8m2L0pR7tY1uW4zA6cE9gJ5kN8bD2fH0jM3nP6s="
)

type demoChat struct {
	from, to, body string
}

var demoChats = []demoChat{
	{from: "efg", to: "def", body: "Helloo.."},
	{from: "ghi", to: "jkl", body: "HI..."},
	{from: "mno", to: "pqr", body: "What are you doing?"},
	{from: "stu", to: "vwx", body: "What is your name?"},
	{from: "yzq", to: "hjs", body: "Helloo..where are you??"},
	{from: "kiu", to: "ouy", body: "How are you.."},
}

// seed creates an account for every name in demoChats, reusing accounts
// that already exist, and appends each chat once.
func seed(ctx context.Context, logger *log.Logger, repo database.ChatRepository, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ids := make(map[string]string)
	account := func(name string) (string, error) {
		if id, ok := ids[name]; ok {
			return id, nil
		}

		u, err := repo.CreateAccount(ctx, database.CreateAccountParams{
			Username:     name,
			EmailAddress: name + "@example.com",
			PasswordHash: string(hash),
		})
		if errors.Is(err, database.ErrUsernameTaken) {
			u, err = repo.GetAccountByUsername(ctx, name)
		}
		if err != nil {
			return "", fmt.Errorf("account %q: %w", name, err)
		}

		ids[name] = u.Id
		return u.Id, nil
	}

	for _, c := range demoChats {
		from, err := account(c.from)
		if err != nil {
			return err
		}
		to, err := account(c.to)
		if err != nil {
			return err
		}

		if _, err := repo.AppendMessage(ctx, database.AppendMessageParams{From: from, To: to, Body: c.body}); err != nil {
			return fmt.Errorf("append message %s -> %s: %w", c.from, c.to, err)
		}
		logger.Printf("%s -> %s: %q", c.from, c.to, c.body)
	}

	return nil
}

func main() {
	config.LoadEnv()

	var dsn, fieldKey, password string
	flag.StringVar(&dsn, "dsn", config.GetEnv("DUOCHAT_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&fieldKey, "field-key", config.GetEnv("DUOCHAT_FIELD_KEY", defaultFieldKey), "base64 encoded 32 byte key for encrypting stored fields")
	flag.StringVar(&password, "password", defaultPassword, "password for every seeded account")
	flag.Parse()

	logger := log.New(os.Stderr, "[go-duochat-seed] ", log.LstdFlags)

	if dsn == config.MemoryDSN {
		logger.Fatal("refusing to seed an in-process store")
	}

	key, err := config.DecodeFieldKey(fieldKey)
	if err != nil {
		logger.Fatal("config:", err)
	}

	codec, err := fieldcrypt.NewXChaChaCodec(key)
	if err != nil {
		logger.Fatal("codec:", err)
	}

	db, err := database.NewPgChatRepository(dsn, codec)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("migrate:", err)
	}

	if err := seed(context.Background(), logger, db, password); err != nil {
		logger.Fatal("seed:", err)
	}

	logger.Println("seed complete")
}
