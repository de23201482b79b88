package telemetry

import (
	"os"
	"strings"
)

const (
	EnvObserve          = "TR_OBSERVE_JSON"
	EnvArtifactsDir     = "TR_ARTIFACTS_DIR"
	DefaultArtifactsDir = ".tabularasa"
)

// ObserveEnabled reports whether JSONL emission is on. Read on every call so tests
// and long-running servers can toggle it.
func ObserveEnabled() bool {
	return os.Getenv(EnvObserve) == "1"
}

// ArtifactsDir is where events.jsonl is written.
func ArtifactsDir() string {
	if d := strings.TrimSpace(os.Getenv(EnvArtifactsDir)); d != "" {
		return d
	}
	return DefaultArtifactsDir
}
