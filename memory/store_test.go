package memory_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tabularasa/memory"
)

type failingBackend struct {
	getErr error
	setErr error
}

func (f failingBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, f.getErr
}
func (f failingBackend) Set(context.Context, string, string) error { return f.setErr }
func (f failingBackend) Delete(context.Context, string) error      { return nil }
func (f failingBackend) Close() error                              { return nil }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func newStore(t *testing.T, opts ...memory.Option) (*memory.Store, *memory.MemBackend) {
	t.Helper()
	b := memory.NewMemBackend()
	base := []memory.Option{memory.WithIDFunc(sequentialIDs())}
	return memory.NewStore(b, append(base, opts...)...), b
}

func TestStore_LoadEmpty(t *testing.T) {
	s, _ := newStore(t)
	got := s.Load(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_AddTrimsAndPersists(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t)

	list, err := s.Add(ctx, "  O céu é azul.  \n")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "O céu é azul.", list[0].Content)
	assert.NotEmpty(t, list[0].ID)

	loaded := s.Load(ctx)
	assert.Equal(t, list, loaded)
	assert.Equal(t, "- O céu é azul.", s.ContextString(ctx))

	raw, ok, err := b.Get(ctx, memory.DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"content":"O céu é azul."`)
}

func TestStore_AddDefaultIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore(memory.NewMemBackend())
	_, err := s.Add(ctx, "a")
	require.NoError(t, err)
	list, err := s.Add(ctx, "b")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NotEqual(t, list[0].ID, list[1].ID)
}

func TestStore_AddBlankRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, err := s.Add(ctx, " \t\n")
	assert.ErrorIs(t, err, memory.ErrEmptyContent)
	assert.Empty(t, s.Load(ctx))
}

func TestStore_AddPreservesOrderAndTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newStore(t, memory.WithClock(fixedClock(now)))

	for _, c := range []string{"um", "dois", "três"} {
		_, err := s.Add(ctx, c)
		require.NoError(t, err)
	}
	got := s.Load(ctx)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"um", "dois", "três"}, []string{got[0].Content, got[1].Content, got[2].Content})
	assert.Equal(t, now.UnixMilli(), got[2].Timestamp)
	assert.Equal(t, "- um\n- dois\n- três", s.ContextString(ctx))
}

func TestStore_AddThenDeleteRestoresList(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, err := s.Add(ctx, "first")
	require.NoError(t, err)
	_, err = s.Add(ctx, "second")
	require.NoError(t, err)
	before := s.Load(ctx)

	added, err := s.Add(ctx, "temporary")
	require.NoError(t, err)
	id := added[len(added)-1].ID

	after, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, before, s.Load(ctx))
}

func TestStore_DeleteUnknownIsNoop(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_, err := s.Add(ctx, "keep")
	require.NoError(t, err)

	list, err := s.Delete(ctx, "missing")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].Content)
}

func TestStore_WipeThenLoadEmpty(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Add(ctx, fmt.Sprintf("fact %d", i))
		require.NoError(t, err)
	}
	require.NoError(t, s.Wipe(ctx))
	assert.Empty(t, s.Load(ctx))
	_, ok, _ := b.Get(ctx, memory.DefaultKey)
	assert.False(t, ok, "key should be removed")

	// Wiping an already empty store is fine.
	require.NoError(t, s.Wipe(ctx))
}

func TestStore_ContextStringSentinel(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	assert.Equal(t, memory.DefaultEmptyContext, s.ContextString(ctx))

	custom, _ := newStore(t, memory.WithEmptyContext("mind is empty"))
	assert.Equal(t, "mind is empty", custom.ContextString(ctx))
}

func TestStore_CorruptPayloadFailsOpen(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t)
	require.NoError(t, b.Set(ctx, memory.DefaultKey, "{oops"))

	assert.Empty(t, s.Load(ctx))
	assert.Equal(t, memory.DefaultEmptyContext, s.ContextString(ctx))

	// A write after corruption replaces the payload.
	list, err := s.Add(ctx, "novo")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_NullPayloadLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	s, b := newStore(t)
	require.NoError(t, b.Set(ctx, memory.DefaultKey, "null"))
	got := s.Load(ctx)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_BackendReadErrorFailsOpen(t *testing.T) {
	s := memory.NewStore(failingBackend{getErr: errors.New("disk on fire")})
	assert.Empty(t, s.Load(context.Background()))
}

// flakyBackend fails the next Get after fail is armed.
type flakyBackend struct {
	*memory.MemBackend
	fail bool
}

func (f *flakyBackend) Get(ctx context.Context, key string) (string, bool, error) {
	if f.fail {
		f.fail = false
		return "", false, errors.New("i/o timeout")
	}
	return f.MemBackend.Get(ctx, key)
}

func TestStore_TransientReadErrorKeepsFacts(t *testing.T) {
	ctx := context.Background()
	b := &flakyBackend{MemBackend: memory.NewMemBackend()}
	s := memory.NewStore(b, memory.WithIDFunc(sequentialIDs()))
	for _, c := range []string{"a", "b", "c"} {
		_, err := s.Add(ctx, c)
		require.NoError(t, err)
	}

	b.fail = true
	_, err := s.Add(ctx, "d")
	require.Error(t, err)
	assert.Len(t, s.Load(ctx), 3, "failed add must not overwrite earlier facts")

	b.fail = true
	_, err = s.Delete(ctx, "nonexistent")
	require.Error(t, err)
	assert.Len(t, s.Load(ctx), 3, "failed delete must not overwrite earlier facts")

	list, err := s.Add(ctx, "d")
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func TestRenderContext(t *testing.T) {
	assert.Equal(t, "vazio", memory.RenderContext(nil, "vazio"))
	assert.Equal(t, "- a\n- b", memory.RenderContext([]memory.Entry{{Content: "a"}, {Content: "b"}}, "vazio"))
}

func TestStore_BackendWriteErrorSurfaces(t *testing.T) {
	boom := errors.New("read-only")
	s := memory.NewStore(failingBackend{setErr: boom})
	_, err := s.Add(context.Background(), "fact")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestStore_Export(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 4, 9, 30, 15, 0, time.UTC)
	s, _ := newStore(t,
		memory.WithClock(fixedClock(now)),
		memory.WithExportFormat("2006-01-02 15:04:05", time.UTC),
	)
	_, err := s.Add(ctx, "A água ferve a 100 graus.")
	require.NoError(t, err)
	_, err = s.Add(ctx, "Meu nome é João.")
	require.NoError(t, err)

	exp := s.Export(ctx)
	assert.Equal(t, "cerebro_ia_2025-07-04.txt", exp.Filename)
	assert.Equal(t,
		"[2025-07-04 09:30:15] A água ferve a 100 graus.\n\n[2025-07-04 09:30:15] Meu nome é João.",
		exp.Body)

	path, err := exp.Save(t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, exp.Filename))
}

func TestStore_ExportEmpty(t *testing.T) {
	s, _ := newStore(t)
	exp := s.Export(context.Background())
	assert.Empty(t, exp.Body)
	assert.True(t, strings.HasPrefix(exp.Filename, "cerebro_ia_"))
}

func TestStore_SubscribeReceivesEvents(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	events, cancel := s.Subscribe(8)
	defer cancel()

	list, err := s.Add(ctx, "fato")
	require.NoError(t, err)
	_, err = s.Delete(ctx, list[0].ID)
	require.NoError(t, err)
	require.NoError(t, s.Wipe(ctx))

	want := []memory.Event{
		{Kind: memory.EventAdded, EntryID: list[0].ID, Count: 1},
		{Kind: memory.EventDeleted, EntryID: list[0].ID, Count: 0},
		{Kind: memory.EventWiped},
	}
	for _, w := range want {
		select {
		case got := <-events:
			assert.Equal(t, w, got)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", w.Kind)
		}
	}
}

func TestStore_SubscribeFullBufferDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	events, cancel := s.Subscribe(1)

	for i := 0; i < 5; i++ {
		_, err := s.Add(ctx, fmt.Sprintf("f%d", i))
		require.NoError(t, err)
	}
	assert.Len(t, events, 1)

	cancel()
	cancel() // idempotent
	for range events {
	}
	_, err := s.Add(ctx, "after cancel")
	require.NoError(t, err)
}
