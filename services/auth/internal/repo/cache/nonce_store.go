package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrNonceNotFound = errors.New("nonce not found or expired")

// NonceStore holds one-time sign-in challenges keyed by wallet address.
type NonceStore interface {
	Save(ctx context.Context, address, nonce string, ttl time.Duration) error
	// Take returns the nonce and removes it, so a challenge is usable once.
	Take(ctx context.Context, address string) (string, error)
}

type redisNonceStore struct {
	client *redis.Client
}

func NewRedisNonceStore(client *redis.Client) NonceStore {
	return &redisNonceStore{client: client}
}

func nonceKey(address string) string {
	return fmt.Sprintf("auth:nonce:%s", strings.ToLower(address))
}

func (s *redisNonceStore) Save(ctx context.Context, address, nonce string, ttl time.Duration) error {
	return s.client.Set(ctx, nonceKey(address), nonce, ttl).Err()
}

func (s *redisNonceStore) Take(ctx context.Context, address string) (string, error) {
	nonce, err := s.client.GetDel(ctx, nonceKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNonceNotFound
	}
	return nonce, err
}

type memoryNonce struct {
	value   string
	expires time.Time
}

type memoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]memoryNonce
}

// NewMemoryNonceStore is used when Redis is unavailable and in tests.
func NewMemoryNonceStore() NonceStore {
	return &memoryNonceStore{nonces: make(map[string]memoryNonce)}
}

func (s *memoryNonceStore) Save(_ context.Context, address, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonceKey(address)] = memoryNonce{value: nonce, expires: time.Now().Add(ttl)}
	return nil
}

func (s *memoryNonceStore) Take(_ context.Context, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nonceKey(address)
	n, ok := s.nonces[key]
	delete(s.nonces, key)
	if !ok || time.Now().After(n.expires) {
		return "", ErrNonceNotFound
	}
	return n.value, nil
}
