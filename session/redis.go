package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storepulse/chatbot/genie"
)

// RedisStore keeps conversation tokens in Redis so continuity survives
// process restarts. Tokens expire together with the conversation TTL.
type RedisStore struct {
	client         *redis.Client
	prefix         string
	conversationID string
	ttl            time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default "storepulse:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL sets the token expiry. Default 24h; zero means no expiry.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a store scoped to one conversation.
func NewRedisStore(client *redis.Client, conversationID string, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client must not be nil")
	}
	if conversationID == "" {
		return nil, errors.New("conversation id must not be empty")
	}
	s := &RedisStore{
		client:         client,
		prefix:         "storepulse:",
		conversationID: conversationID,
		ttl:            24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisStore) key(backend string) string {
	return fmt.Sprintf("%sconversation:%s:token:%s", s.prefix, s.conversationID, backend)
}

func (s *RedisStore) indexKey() string {
	return fmt.Sprintf("%sconversation:%s:backends", s.prefix, s.conversationID)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, backend string) (genie.Token, bool, error) {
	var token genie.Token
	data, err := s.client.Get(ctx, s.key(backend)).Bytes()
	if errors.Is(err, redis.Nil) {
		return token, false, nil
	}
	if err != nil {
		return token, false, fmt.Errorf("failed to get session token: %w", err)
	}
	if err := json.Unmarshal(data, &token); err != nil {
		return token, false, fmt.Errorf("failed to unmarshal session token: %w", err)
	}
	return token, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, backend string, token genie.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal session token: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(backend), data, s.ttl)
	pipe.SAdd(ctx, s.indexKey(), backend)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set session token: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, backend string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(backend))
	pipe.SRem(ctx, s.indexKey(), backend)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	return nil
}

// ClearAll implements Store.
func (s *RedisStore) ClearAll(ctx context.Context) error {
	backends, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to list session backends: %w", err)
	}
	keys := make([]string, 0, len(backends)+1)
	for _, backend := range backends {
		keys = append(keys, s.key(backend))
	}
	keys = append(keys, s.indexKey())
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear session tokens: %w", err)
	}
	return nil
}
