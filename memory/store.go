package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultKey is the backend key holding the serialized fact list.
	DefaultKey = "tabularasa_brain_memory"
	// DefaultEmptyContext is injected into the prompt when no facts exist.
	DefaultEmptyContext = "Nenhuma memória encontrada. A mente está vazia."
	// DefaultExportLayout formats entry timestamps in exports.
	DefaultExportLayout = "2006-01-02 15:04:05"
)

// ErrEmptyContent is returned by Add when the content is blank after trimming.
var ErrEmptyContent = errors.New("memory: content is empty")

// Backend is a string key-value store the fact list is persisted in.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// EventKind names a change to the knowledge base.
type EventKind string

const (
	EventAdded   EventKind = "added"
	EventDeleted EventKind = "deleted"
	EventWiped   EventKind = "wiped"
)

// Event is published to subscribers after a successful mutation.
type Event struct {
	Kind    EventKind
	EntryID string // empty for wipes
	Count   int    // facts remaining after the change
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the backend key.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger used for fail-open read diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDFunc replaces the uuid generator.
func WithIDFunc(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithEmptyContext sets the sentinel returned by ContextString for an empty store.
func WithEmptyContext(sentinel string) Option {
	return func(s *Store) {
		if sentinel != "" {
			s.emptyContext = sentinel
		}
	}
}

// WithExportFormat sets the timestamp layout and location used by Export.
func WithExportFormat(layout string, loc *time.Location) Option {
	return func(s *Store) {
		if layout != "" {
			s.exportLayout = layout
		}
		if loc != nil {
			s.exportLoc = loc
		}
	}
}

// Store is the knowledge base. It is safe for concurrent use.
type Store struct {
	backend      Backend
	key          string
	log          zerolog.Logger
	now          func() time.Time
	newID        func() string
	emptyContext string
	exportLayout string
	exportLoc    *time.Location

	mu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewStore returns a Store persisting into backend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:      backend,
		key:          DefaultKey,
		log:          zerolog.Nop(),
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
		emptyContext: DefaultEmptyContext,
		exportLayout: DefaultExportLayout,
		exportLoc:    time.Local,
		subs:         make(map[int]chan Event),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Backend returns the underlying persistence backend.
func (s *Store) Backend() Backend { return s.backend }

// Load returns all facts in insertion order. It never fails: read and decode
// errors are logged and yield an empty list.
func (s *Store) Load(ctx context.Context) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("failed to read memory; treating as empty")
		return []Entry{}
	}
	return entries
}

// read returns backend errors so writers never persist over a list they could not see.
// Undecodable contents are logged and read as empty.
func (s *Store) read(ctx context.Context) ([]Entry, error) {
	raw, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("failed to decode memory; treating as empty")
		return []Entry{}, nil
	}
	if entries == nil {
		return []Entry{}, nil
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries []Entry) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("persist memory: %w", err)
	}
	return nil
}

// Add appends a trimmed fact and returns the updated list.
func (s *Store) Add(ctx context.Context, content string) ([]Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	e := Entry{ID: s.newID(), Content: content, Timestamp: s.now().UnixMilli()}
	updated := append(cur, e)
	if err := s.save(ctx, updated); err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventAdded, EntryID: e.ID, Count: len(updated)})
	return updated, nil
}

// Delete removes the fact with the given id. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory: %w", err)
	}
	updated := make([]Entry, 0, len(cur))
	for _, e := range cur {
		if e.ID != id {
			updated = append(updated, e)
		}
	}
	if err := s.save(ctx, updated); err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventDeleted, EntryID: id, Count: len(updated)})
	return updated, nil
}

// Wipe irreversibly removes every fact.
func (s *Store) Wipe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("wipe memory: %w", err)
	}
	s.publish(Event{Kind: EventWiped})
	return nil
}

// Export renders every fact as "[date-time] content", one per paragraph.
func (s *Store) Export(ctx context.Context) Export {
	entries := s.Load(ctx)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		ts := time.UnixMilli(e.Timestamp).In(s.exportLoc).Format(s.exportLayout)
		lines = append(lines, fmt.Sprintf("[%s] %s", ts, e.Content))
	}
	return Export{
		Filename: fmt.Sprintf("cerebro_ia_%s.txt", s.now().UTC().Format("2006-01-02")),
		Body:     strings.Join(lines, "\n\n"),
	}
}

// ContextString renders the facts for the prompt's memory block.
func (s *Store) ContextString(ctx context.Context) string {
	return RenderContext(s.Load(ctx), s.emptyContext)
}

// EmptyContext is the sentinel rendered for an empty store.
func (s *Store) EmptyContext() string { return s.emptyContext }

// RenderContext renders entries as "- content" lines, or sentinel when there are none.
func RenderContext(entries []Entry, sentinel string) string {
	if len(entries) == 0 {
		return sentinel
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = "- " + e.Content
	}
	return strings.Join(lines, "\n")
}

// Subscribe registers for change events. Events are dropped for a subscriber whose
// buffer is full. The returned cancel func closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) publish(evt Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
