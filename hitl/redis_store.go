package hitl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAwaitableStore persists Awaitables durably so a suspended action can
// be resumed after a process restart, keyed by action id. The persisted
// format is the record below, matching {kind, id, payload, prompt,
// createdAt} with createdAt rendered as RFC3339 (ISO-8601).
type RedisAwaitableStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// record is the durable, JSON-serialized representation of one Awaitable.
type record struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Prompt    string    `json:"prompt"`
	Payload   any       `json:"payload"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewRedisAwaitableStore wraps client. keyPrefix defaults to
// "agentrun:awaitable:" and ttl to 0 (no expiry) when left zero-valued.
func NewRedisAwaitableStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisAwaitableStore {
	if keyPrefix == "" {
		keyPrefix = "agentrun:awaitable:"
	}
	return &RedisAwaitableStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisAwaitableStore) key(actionID string) string {
	return s.keyPrefix + actionID
}

// Bind persists a, keyed by actionID, so it can be looked up on resume.
func (s *RedisAwaitableStore) Bind(ctx context.Context, actionID string, a Awaitable) error {
	rec := record{
		ID:        a.ID,
		Kind:      a.Kind,
		Prompt:    a.Prompt,
		Payload:   a.Payload,
		Status:    a.Status,
		CreatedAt: time.Now(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("hitl: marshal awaitable for action %s: %w", actionID, err)
	}
	if err := s.client.Set(ctx, s.key(actionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("hitl: persist awaitable for action %s: %w", actionID, err)
	}
	return nil
}

// Lookup retrieves the Awaitable bound to actionID, and false if none is
// bound (expired, resolved and cleared, or never bound).
func (s *RedisAwaitableStore) Lookup(ctx context.Context, actionID string) (Awaitable, bool, error) {
	data, err := s.client.Get(ctx, s.key(actionID)).Bytes()
	if err == redis.Nil {
		return Awaitable{}, false, nil
	}
	if err != nil {
		return Awaitable{}, false, fmt.Errorf("hitl: lookup awaitable for action %s: %w", actionID, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Awaitable{}, false, fmt.Errorf("hitl: decode awaitable for action %s: %w", actionID, err)
	}
	return Awaitable{ID: rec.ID, Kind: rec.Kind, Prompt: rec.Prompt, Payload: rec.Payload, Status: rec.Status}, true, nil
}

// Resolve overwrites the bound Awaitable with its resolved form, carrying
// the resumption payload supplied by the human or external system.
func (s *RedisAwaitableStore) Resolve(ctx context.Context, actionID string, payload any) error {
	existing, ok, err := s.Lookup(ctx, actionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hitl: no awaitable bound to action %s", actionID)
	}
	return s.Bind(ctx, actionID, existing.Resolve(payload))
}

// Clear removes the binding for actionID, typically once the action has
// consumed the resolved Awaitable and moved past WAITING.
func (s *RedisAwaitableStore) Clear(ctx context.Context, actionID string) error {
	if err := s.client.Del(ctx, s.key(actionID)).Err(); err != nil {
		return fmt.Errorf("hitl: clear awaitable for action %s: %w", actionID, err)
	}
	return nil
}
