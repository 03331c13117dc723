package sessionstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejadex/RE-VLab/core/session"
)

func testStore(t *testing.T, store session.Store) {
	ctx := context.Background()

	sess := session.New(42, time.Hour)
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.AccountID, got.AccountID)
	assert.Equal(t, session.ThemeLight, got.Theme)

	got.Theme = session.ThemeDark
	require.NoError(t, store.Save(ctx, got))
	got, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ThemeDark, got.Theme)

	_, err = store.Get(ctx, uuid.New())
	assert.Equal(t, session.ErrNotFound, err)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.Equal(t, session.ErrNotFound, err)

	expired := session.New(42, time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(ctx, expired))
	_, err = store.Get(ctx, expired.ID)
	assert.Equal(t, session.ErrNotFound, err)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	store := NewRedisStore(client)
	require.NoError(t, store.Ping(context.Background()))
	testStore(t, store)
}
