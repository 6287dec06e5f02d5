package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/arkadian-io/taskmesh/config"
	"github.com/arkadian-io/taskmesh/core"
)

const redisKeyPrefix = "taskmesh:conversation:"

// RedisStore persists conversation state as JSON documents in Redis. Each
// Save overwrites the whole document, matching the store contract. An
// optional TTL expires idle conversations.
type RedisStore struct {
	client *redis.Client
	cfg    config.RedisConfig
}

var _ core.ConversationStore = (*RedisStore)(nil)

// NewRedisStore creates a store from configuration, dialing a new client.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreFromClient(client, cfg)
}

// NewRedisStoreFromClient creates a store around an existing client. The
// caller retains ownership of the client's lifecycle.
func NewRedisStoreFromClient(client *redis.Client, cfg config.RedisConfig) *RedisStore {
	return &RedisStore{client: client, cfg: cfg}
}

func redisKey(conversationID string) string { return redisKeyPrefix + conversationID }

// Load fetches and decodes the stored state, or core.ErrConversationNotFound.
func (s *RedisStore) Load(ctx context.Context, conversationID string) (*core.ConversationState, error) {
	data, err := s.client.Get(ctx, redisKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrConversationNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var state core.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	return &state, nil
}

// Save encodes the state and overwrites the document wholesale.
func (s *RedisStore) Save(ctx context.Context, conversationID string, state *core.ConversationState) error {
	data, err := json.Marshal(state.Clone())
	if err != nil {
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(conversationID), data, s.cfg.KeyTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes the stored document for the conversation.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, redisKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Ping verifies connectivity to the Redis backend.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
