package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-duochat/internal/api"
	"github.com/npezzotti/go-duochat/internal/config"
	"github.com/npezzotti/go-duochat/internal/database"
	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
	"github.com/npezzotti/go-duochat/internal/journal"
	"github.com/npezzotti/go-duochat/internal/media"
	"github.com/npezzotti/go-duochat/internal/presence"
	"github.com/npezzotti/go-duochat/internal/server"
	"github.com/npezzotti/go-duochat/internal/stats"
)

const (
	defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="
	defaultFieldKey   = "q3xV8m2L0pR7tY1uW4zA6cE9gJ5kN8bD2fH0jM3nP6s="
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

type repository interface {
	database.ChatRepository
	Close() error
}

var (
	addr           string
	dsn            string
	signingKey     string
	fieldKey       string
	redisAddr      string
	kafkaBrokers   string
	kafkaTopic     string
	mediaDir       string
	allowedOrigins stringSliceFlag
)

func openRepository(cfg *config.Config) (repository, error) {
	codec, err := fieldcrypt.NewXChaChaCodec(cfg.FieldKey)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseDSN == config.MemoryDSN {
		return database.NewMemoryChatRepository(codec), nil
	}

	db, err := database.NewPgChatRepository(cfg.DatabaseDSN, codec)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func main() {
	config.LoadEnv()

	flag.StringVar(&addr, "addr", config.GetEnv("DUOCHAT_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", config.GetEnv("DUOCHAT_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string, or memory:// for an in-process store")
	flag.StringVar(&signingKey, "signing-key", config.GetEnv("DUOCHAT_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.StringVar(&fieldKey, "field-key", config.GetEnv("DUOCHAT_FIELD_KEY", defaultFieldKey), "base64 encoded 32 byte key for encrypting stored fields")
	flag.StringVar(&redisAddr, "redis-addr", config.GetEnv("DUOCHAT_REDIS_ADDR", ""), "redis address for the presence mirror")
	flag.StringVar(&kafkaBrokers, "kafka-brokers", config.GetEnv("DUOCHAT_KAFKA_BROKERS", ""), "comma-separated list of kafka brokers for the event journal")
	flag.StringVar(&kafkaTopic, "kafka-topic", config.GetEnv("DUOCHAT_KAFKA_TOPIC", "duochat.events"), "kafka topic for the event journal")
	flag.StringVar(&mediaDir, "media-dir", config.GetEnv("DUOCHAT_MEDIA_DIR", "uploads"), "directory for uploaded files")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins.Set(config.GetEnv("DUOCHAT_ALLOWED_ORIGINS", "http://localhost:3000"))
	}

	logger := log.New(os.Stderr, "[go-duochat] ", log.LstdFlags)

	cfg, err := config.NewConfig(config.Params{
		ServerAddr:     addr,
		DatabaseDSN:    dsn,
		SigningKey:     signingKey,
		FieldKey:       fieldKey,
		AllowedOrigins: allowedOrigins,
		RedisAddr:      redisAddr,
		KafkaBrokers:   kafkaBrokers,
		KafkaTopic:     kafkaTopic,
		MediaDir:       mediaDir,
	})
	if err != nil {
		logger.Fatal("config:", err)
	}

	repo, err := openRepository(cfg)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	mirrors := []presence.Mirror{database.NewPresenceMirror(repo)}
	if cfg.RedisAddr != "" {
		rm, err := presence.NewRedisMirror(context.Background(), cfg.RedisAddr)
		if err != nil {
			logger.Fatal("redis:", err)
		}
		defer rm.Close()

		// presence does not survive a restart
		if err := rm.Reset(context.Background()); err != nil {
			logger.Println("redis reset:", err)
		}
		mirrors = append(mirrors, rm)
	}

	var jrnl journal.Journal = journal.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		jrnl = journal.NewKafkaJournal(logger, cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			logger.Println("journal close:", err)
		}
	}()

	store, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		logger.Fatal("media:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, repo, presence.NewRegistry(logger, mirrors...), statsUpdater, jrnl)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, repo, store, cfg)

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
