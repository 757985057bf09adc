package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/services/film/internal/entity"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps purchase sessions until they expire. A session with a
// zero ExpiresAt never expires. Update is a compare-and-set: fn runs against
// the latest stored version and its result is written only if nobody else
// wrote in between, with the expiry fn left on the session.
type SessionStore interface {
	Create(ctx context.Context, session *entity.Session) error
	Get(ctx context.Context, id string) (*entity.Session, error)
	Update(ctx context.Context, id string, fn func(s *entity.Session) error) (*entity.Session, error)
}

func sessionKey(id string) string {
	return fmt.Sprintf("film:purchase_session:%s", id)
}

type redisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Create(ctx context.Context, session *entity.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return apperr.Validation("session already expired")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return apperr.Conflict("session %s already exists", session.ID)
	}
	return nil
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (*entity.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("purchase session not found or expired")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var session entity.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *redisSessionStore) Update(ctx context.Context, id string, fn func(s *entity.Session) error) (*entity.Session, error) {
	key := sessionKey(id)
	var updated entity.Session

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperr.NotFound("purchase session not found or expired")
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &updated); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		if err := fn(&updated); err != nil {
			return err
		}
		updated.Version++
		updated.UpdatedAt = time.Now()

		next, err := json.Marshal(&updated)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, sessionTTL(&updated))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, apperr.Conflict("purchase session changed concurrently, reload and retry")
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// sessionTTL is the Redis expiration for a session; 0 keeps it forever.
func sessionTTL(s *entity.Session) time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	if ttl := time.Until(s.ExpiresAt); ttl > time.Second {
		return ttl
	}
	return time.Second
}

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
}

// NewMemorySessionStore is used when Redis is unavailable and in tests.
func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{sessions: make(map[string]entity.Session)}
}

func (s *memorySessionStore) Create(_ context.Context, session *entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return apperr.Conflict("session %s already exists", session.ID)
	}
	s.sessions[session.ID] = *session
	return nil
}

func (s *memorySessionStore) load(id string) (entity.Session, error) {
	session, ok := s.sessions[id]
	if !ok || (!session.ExpiresAt.IsZero() && time.Now().After(session.ExpiresAt)) {
		delete(s.sessions, id)
		return entity.Session{}, apperr.NotFound("purchase session not found or expired")
	}
	return session, nil
}

func (s *memorySessionStore) Get(_ context.Context, id string) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *memorySessionStore) Update(_ context.Context, id string, fn func(s *entity.Session) error) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(&session); err != nil {
		return nil, err
	}
	session.Version++
	session.UpdatedAt = time.Now()
	s.sessions[id] = session
	return &session, nil
}
