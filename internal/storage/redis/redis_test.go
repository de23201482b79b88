package redis_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tabularasa/internal/storage/redis"
	"github.com/petasbytes/tabularasa/memory"
)

func TestNew_BadURL(t *testing.T) {
	_, err := redis.New(context.Background(), "not a url")
	assert.ErrorContains(t, err, "parse Redis URL")
}

func TestBackend_Redis(t *testing.T) {
	url := os.Getenv("TR_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TR_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	b, err := redis.New(ctx, url)
	require.NoError(t, err)
	defer b.Close()

	key := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = b.Delete(context.Background(), key) })

	s := memory.NewStore(b, memory.WithKey(key))
	_, err = s.Add(ctx, "um")
	require.NoError(t, err)
	list, err := s.Add(ctx, "dois")
	require.NoError(t, err)
	assert.Equal(t, "- um\n- dois", s.ContextString(ctx))

	list, err = s.Delete(ctx, list[0].ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, s.Wipe(ctx))
	assert.Empty(t, s.Load(ctx))
}
