package cache

import (
	"context"
	"testing"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/services/film/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_UpdateBumpsVersion(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &entity.Session{ID: "s-1", State: entity.StateSelect, ExpiresAt: time.Now().Add(time.Minute)}))

	updated, err := store.Update(ctx, "s-1", func(s *entity.Session) error {
		s.State = entity.StateApproving
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	_, err = store.Update(ctx, "s-1", func(s *entity.Session) error {
		s.State = entity.StateSettled
		return apperr.Conflict("refused")
	})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateApproving, got.State, "a refused update is not written")
	assert.Equal(t, int64(1), got.Version)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &entity.Session{ID: "s-1", ExpiresAt: time.Now().Add(-time.Second)}))

	_, err := store.Get(ctx, "s-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = store.Update(ctx, "s-1", func(*entity.Session) error { return nil })
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMemorySessionStore_PinnedSessionOutlivesQuote(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &entity.Session{ID: "s-1", ExpiresAt: time.Now().Add(20 * time.Millisecond)}))

	_, err := store.Update(ctx, "s-1", func(s *entity.Session) error {
		s.PurchaseTxHash = "0xabc"
		s.ExpiresAt = time.Time{}
		return nil
	})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", got.PurchaseTxHash)

	_, err = store.Update(ctx, "s-1", func(s *entity.Session) error {
		s.ExpiresAt = time.Now().Add(-time.Second)
		return nil
	})
	require.NoError(t, err)
	_, err = store.Get(ctx, "s-1")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSessionTTL(t *testing.T) {
	assert.Equal(t, time.Duration(0), sessionTTL(&entity.Session{}))
	assert.Equal(t, time.Second, sessionTTL(&entity.Session{ExpiresAt: time.Now().Add(-time.Minute)}))

	ttl := sessionTTL(&entity.Session{ExpiresAt: time.Now().Add(time.Hour)})
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 5)
}

func TestMemorySessionStore_DuplicateCreate(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	s := &entity.Session{ID: "s-1", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.Create(ctx, s))
	assert.True(t, apperr.Is(store.Create(ctx, s), apperr.KindConflict))
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "film:purchase_session:s-1", sessionKey("s-1"))
}
