package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tabularasa/internal/config"
	"github.com/petasbytes/tabularasa/internal/storage"
	"github.com/petasbytes/tabularasa/internal/storage/file"
	"github.com/petasbytes/tabularasa/internal/storage/sqlite"
	"github.com/petasbytes/tabularasa/memory"
)

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := storage.Open(ctx, &config.Config{StoreDriver: "file", DataDir: dir})
	require.NoError(t, err)
	assert.IsType(t, &file.Backend{}, b)
	assert.NoError(t, storage.Ping(ctx, b))

	b, err = storage.Open(ctx, &config.Config{StoreDriver: "sqlite", DataDir: dir})
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &sqlite.Backend{}, b)
	assert.FileExists(t, filepath.Join(dir, "memory.db"))

	b, err = storage.Open(ctx, &config.Config{StoreDriver: "mem"})
	require.NoError(t, err)
	assert.IsType(t, &memory.MemBackend{}, b)
	assert.NoError(t, storage.Ping(ctx, b))
}

func TestOpen_Unknown(t *testing.T) {
	_, err := storage.Open(context.Background(), &config.Config{StoreDriver: "mongo"})
	assert.ErrorContains(t, err, "unsupported STORE_DRIVER")
}
