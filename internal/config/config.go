package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-duochat/internal/fieldcrypt"
)

// MemoryDSN selects the in-process repository instead of Postgres.
const MemoryDSN = "memory://"

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     []byte
	FieldKey       []byte
	AllowedOrigins []string
	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
	MediaDir       string
}

// Params holds the raw, unvalidated values gathered from flags and the
// environment.
type Params struct {
	ServerAddr     string
	DatabaseDSN    string
	SigningKey     string
	FieldKey       string
	AllowedOrigins []string
	RedisAddr      string
	KafkaBrokers   string
	KafkaTopic     string
	MediaDir       string
}

// LoadEnv loads a .env file from the working directory if one exists.
func LoadEnv() {
	_ = godotenv.Load()
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, errors.New("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

// DecodeFieldKey decodes a base64 field encryption key and checks its size.
func DecodeFieldKey(base64Key string) ([]byte, error) {
	key, err := decodeSigningSecret(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode field key: %w", err)
	}
	if len(key) != fieldcrypt.KeySize {
		return nil, fmt.Errorf("field key must be %d bytes, got %d", fieldcrypt.KeySize, len(key))
	}
	return key, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func NewConfig(p Params) (*Config, error) {
	if p.ServerAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if p.DatabaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if p.SigningKey == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if p.FieldKey == "" {
		return nil, fmt.Errorf("field encryption key cannot be empty")
	}
	if p.MediaDir == "" {
		return nil, fmt.Errorf("media directory cannot be empty")
	}

	signingKey, err := decodeSigningSecret(p.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	fieldKey, err := DecodeFieldKey(p.FieldKey)
	if err != nil {
		return nil, err
	}

	brokers := splitList(p.KafkaBrokers)
	if len(brokers) > 0 && p.KafkaTopic == "" {
		return nil, fmt.Errorf("kafka topic cannot be empty when brokers are set")
	}

	return &Config{
		ServerAddr:     p.ServerAddr,
		DatabaseDSN:    p.DatabaseDSN,
		SigningKey:     signingKey,
		FieldKey:       fieldKey,
		AllowedOrigins: p.AllowedOrigins,
		RedisAddr:      p.RedisAddr,
		KafkaBrokers:   brokers,
		KafkaTopic:     p.KafkaTopic,
		MediaDir:       p.MediaDir,
	}, nil
}
