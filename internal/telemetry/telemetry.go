// Package telemetry writes privacy-preserving turn events as JSON lines.
//
// Events never carry raw user or model text; callers pass size features instead.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.Mutex
	logger = zerolog.Nop()
)

// SetLogger routes write failures to l. The default discards them.
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Emit appends one event to <artifacts>/events.jsonl when TR_OBSERVE_JSON=1.
// The caller's fields are copied, then stamped with "event" and an RFC3339Nano "time".
func Emit(name string, fields map[string]any) {
	if !ObserveEnabled() {
		return
	}
	line, err := encodeEvent(name, fields, time.Now())

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		logger.Warn().Err(err).Str("event", name).Msg("telemetry: drop event")
		return
	}
	if err := appendLine(ArtifactsDir(), line); err != nil {
		logger.Warn().Err(err).Str("event", name).Msg("telemetry: write event")
	}
}

func encodeEvent(name string, fields map[string]any, now time.Time) ([]byte, error) {
	m := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	m["time"] = now.UTC().Format(time.RFC3339Nano)
	m["event"] = name

	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return append(b, '\n'), nil
}

func appendLine(dir string, line []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.Write(line)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}
