package presence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const onlineSetKey = "presence:online"

func userKey(userId string) string {
	return fmt.Sprintf("presence:user:%s", userId)
}

// RedisMirror publishes presence to Redis so processes other than the one
// holding the connection can read it.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(ctx context.Context, addr string) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisMirror{client: client}, nil
}

func (m *RedisMirror) SetPresence(ctx context.Context, userId string, online bool) error {
	pipe := m.client.TxPipeline()
	if online {
		pipe.SAdd(ctx, onlineSetKey, userId)
		pipe.Set(ctx, userKey(userId), "1", 0)
	} else {
		pipe.SRem(ctx, onlineSetKey, userId)
		pipe.Del(ctx, userKey(userId))
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Reset clears presence left behind by a previous process. Nobody is
// connected at startup.
func (m *RedisMirror) Reset(ctx context.Context) error {
	members, err := m.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return err
	}

	pipe := m.client.TxPipeline()
	for _, userId := range members {
		pipe.Del(ctx, userKey(userId))
	}
	pipe.Del(ctx, onlineSetKey)

	_, err = pipe.Exec(ctx)
	return err
}

func (m *RedisMirror) Close() error {
	return m.client.Close()
}
