package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terra-clan/progression-engine/internal/models"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RedisBus publishes events over Redis pub/sub so every instance's
// subscribers see them
type RedisBus struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBus connects to Redis and verifies the connection
func NewRedisBus(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisBus, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBus{
		client: client,
		logger: logger.With("component", "redis_bus"),
	}, nil
}

// Publish sends the event to the candidate's channel
func (b *RedisBus) Publish(ctx context.Context, ev models.ProgressEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.client.Publish(ctx, Channel(ev.CandidateID), raw).Err()
}

// Subscribe streams events published for the candidate
func (b *RedisBus) Subscribe(ctx context.Context, candidateID string) (<-chan models.ProgressEvent, error) {
	sub := b.client.Subscribe(ctx, Channel(candidateID))

	// Ensure the subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan models.ProgressEvent, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev models.ProgressEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.logger.Warn("bad progress event payload", "channel", m.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// HealthCheck pings Redis
func (b *RedisBus) HealthCheck(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (b *RedisBus) Close() error {
	return b.client.Close()
}
