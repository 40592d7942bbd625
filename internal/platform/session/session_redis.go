// Package session stores auth sessions in Redis as an alternative to the SQL sessions table.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"foodshare_backend/internal/feature/auth/domain/entity"
	"foodshare_backend/internal/feature/auth/usecase"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "session"

// record is the JSON form of a session.
type record struct {
	ID        string     `json:"id"`
	UserID    uint       `json:"user_id"`
	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func toRecord(s *entity.Session) record {
	return record(*s)
}

func (r record) toEntity() *entity.Session {
	s := entity.Session(r)
	return &s
}

// SessionRedis implements usecase.SessionRepository using Redis.
//
// Each session lives under <prefix>:<id> with a TTL equal to its remaining lifetime.
// A per-user sorted set <prefix>:user:<id>, scored by creation time, lists the user's
// active sessions so the oldest can be evicted.
type SessionRedis struct {
	client *redis.Client
	prefix string
}

var _ usecase.SessionRepository = (*SessionRedis)(nil)

// NewSessionRedis creates a new SessionRedis instance.
func NewSessionRedis(client *redis.Client, prefix string) *SessionRedis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionRedis{client: client, prefix: prefix}
}

func (r *SessionRedis) sessionKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

func (r *SessionRedis) userSessionsKey(userID uint) string {
	return fmt.Sprintf("%s:user:%d", r.prefix, userID)
}

// Create persists a new session to Redis.
func (r *SessionRedis) Create(ctx context.Context, s *entity.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	data, err := json.Marshal(toRecord(s))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(s.ID), data, ttl)
		pipe.ZAdd(ctx, r.userSessionsKey(s.UserID), redis.Z{
			Score:  float64(s.CreatedAt.UnixMicro()),
			Member: s.ID,
		})
		return nil
	})
	return err
}

// FindByID retrieves a session by its ID. Revoked sessions are still returned.
func (r *SessionRedis) FindByID(ctx context.Context, id string) (*entity.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, usecase.ErrSessionNotFound
		}
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return rec.toEntity(), nil
}

// Revoke marks a session as revoked and drops it from the user's active set.
// The record keeps its TTL so a revoked token stays rejected until it would have expired anyway.
func (r *SessionRedis) Revoke(ctx context.Context, id string) error {
	s, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	s.RevokedAt = &now
	data, err := json.Marshal(toRecord(s))
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.sessionKey(id), data, redis.KeepTTL)
		pipe.ZRem(ctx, r.userSessionsKey(s.UserID), id)
		return nil
	})
	return err
}

// DeleteExpired is a no-op: Redis drops expired sessions through their TTL.
func (r *SessionRedis) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

// activeSessions returns the user's valid sessions, oldest first.
// Index entries whose session key is gone are pruned.
func (r *SessionRedis) activeSessions(ctx context.Context, userID uint) ([]*entity.Session, error) {
	setKey := r.userSessionsKey(userID)
	ids, err := r.client.ZRange(ctx, setKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.sessionKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var (
		active []*entity.Session
		stale  []any
	)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		if s := rec.toEntity(); s.IsValid() {
			active = append(active, s)
		}
	}
	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, setKey, stale...).Err(); err != nil {
			return nil, err
		}
	}
	return active, nil
}

// CountByUserID returns the number of active sessions for a user.
func (r *SessionRedis) CountByUserID(ctx context.Context, userID uint) (int64, error) {
	sessions, err := r.activeSessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return int64(len(sessions)), nil
}

// DeleteOldestByUserID deletes the oldest active session for a user.
func (r *SessionRedis) DeleteOldestByUserID(ctx context.Context, userID uint) error {
	sessions, err := r.activeSessions(ctx, userID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}

	oldest := sessions[0]
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.sessionKey(oldest.ID))
		pipe.ZRem(ctx, r.userSessionsKey(userID), oldest.ID)
		return nil
	})
	return err
}
