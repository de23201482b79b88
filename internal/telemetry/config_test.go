package telemetry_test

import (
	"os"
	"testing"

	"github.com/petasbytes/tabularasa/internal/telemetry"
)

func TestObserveEnabled(t *testing.T) {
	t.Setenv(telemetry.EnvObserve, "0")
	if telemetry.ObserveEnabled() {
		t.Fatal("expected observe off for 0")
	}
	t.Setenv(telemetry.EnvObserve, "1")
	if !telemetry.ObserveEnabled() {
		t.Fatal("expected observe on for 1")
	}
}

func TestArtifactsDir(t *testing.T) {
	t.Setenv(telemetry.EnvArtifactsDir, "")
	_ = os.Unsetenv(telemetry.EnvArtifactsDir)
	if got := telemetry.ArtifactsDir(); got != telemetry.DefaultArtifactsDir {
		t.Fatalf("default dir: got %q", got)
	}
	t.Setenv(telemetry.EnvArtifactsDir, "/tmp/x")
	if got := telemetry.ArtifactsDir(); got != "/tmp/x" {
		t.Fatalf("override dir: got %q", got)
	}
}
