package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"fanloyalty/internal/config"

	"github.com/go-redis/redis/v8"
)

func NewRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// InitRedis connects and exits the process on failure.
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client, err := NewRedis(cfg)
	if err != nil {
		slog.Error("connect redis failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("redis connected", slog.String("host", cfg.Host), slog.Int("port", cfg.Port))
	return client
}

// StandingCache holds display snapshots of a membership's standing as JSON.
// A nil *StandingCache, or one without a client, is a permanent miss.
type StandingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStandingCache(client *redis.Client, ttl time.Duration) *StandingCache {
	return &StandingCache{client: client, ttl: ttl}
}

func standingKey(membershipID int64) string {
	return "fanloyalty:standing:" + strconv.FormatInt(membershipID, 10)
}

// Get decodes the cached snapshot into dest. It reports false on a miss.
func (c *StandingCache) Get(ctx context.Context, membershipID int64, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, standingKey(membershipID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get standing %d: %w", membershipID, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode standing %d: %w", membershipID, err)
	}
	return true, nil
}

func (c *StandingCache) Set(ctx context.Context, membershipID int64, v any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode standing %d: %w", membershipID, err)
	}
	return c.client.Set(ctx, standingKey(membershipID), raw, c.ttl).Err()
}

// Invalidate drops the snapshots of every id given.
func (c *StandingCache) Invalidate(ctx context.Context, membershipIDs ...int64) error {
	if c == nil || c.client == nil || len(membershipIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(membershipIDs))
	for _, id := range membershipIDs {
		keys = append(keys, standingKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}
