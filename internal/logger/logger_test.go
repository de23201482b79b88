package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tabularasa/internal/logger"
)

func TestNew_JSONIncludesServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("tabularasa", logger.Options{Level: "debug", Out: &buf})
	l.Debug().Str("k", "v").Msg("hello")

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "tabularasa", m["service"])
	assert.Equal(t, "debug", m["level"])
	assert.Equal(t, "v", m["k"])
	assert.Equal(t, "hello", m["message"])
	assert.Contains(t, m, "time")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New("svc", logger.Options{Level: "warn", Out: &buf})
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, logger.ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, logger.ParseLevel("nonsense"))
	assert.Equal(t, zerolog.ErrorLevel, logger.ParseLevel("ERROR"))
}
