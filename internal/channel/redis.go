package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	outputPrefix = "output:"
	promptPrefix = "prompt:"
	inputPrefix  = "input:"
)

// RedisStore is a Store backed by Redis, for deployments where the
// runner workers and the gateway run in separate processes.
type RedisStore struct {
	client    *redis.Client
	outputTTL time.Duration
	relayTTL  time.Duration
}

// NewRedisStore connects to Redis at the given URL and verifies the
// connection. Zero TTLs fall back to the package defaults.
func NewRedisStore(ctx context.Context, redisURL string, outputTTL, relayTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if outputTTL <= 0 {
		outputTTL = DefaultOutputTTL
	}
	if relayTTL <= 0 {
		relayTTL = DefaultRelayTTL
	}
	return &RedisStore{client: client, outputTTL: outputTTL, relayTTL: relayTTL}, nil
}

func (s *RedisStore) AppendOutput(ctx context.Context, sessionID, text string) error {
	key := outputPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.Append(ctx, key, text)
	pipe.Expire(ctx, key, s.outputTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending output: %w", err)
	}
	return nil
}

func (s *RedisStore) ReadOutput(ctx context.Context, sessionID string) (string, error) {
	val, err := s.client.Get(ctx, outputPrefix+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading output: %w", err)
	}
	return val, nil
}

func (s *RedisStore) ClearOutput(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, outputPrefix+sessionID).Err()
}

func (s *RedisStore) SetPrompt(ctx context.Context, sessionID, prompt string) error {
	return s.client.Set(ctx, promptPrefix+sessionID, prompt, s.relayTTL).Err()
}

func (s *RedisStore) GetPrompt(ctx context.Context, sessionID string) (string, error) {
	val, err := s.client.Get(ctx, promptPrefix+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	return val, nil
}

func (s *RedisStore) ClearPrompt(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, promptPrefix+sessionID).Err()
}

func (s *RedisStore) SetInput(ctx context.Context, sessionID, input string) error {
	return s.client.Set(ctx, inputPrefix+sessionID, input, s.relayTTL).Err()
}

func (s *RedisStore) TakeInput(ctx context.Context, sessionID string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, inputPrefix+sessionID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("consuming input: %w", err)
	}
	return val, true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
