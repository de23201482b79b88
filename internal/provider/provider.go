// Package provider adapts hosted LLM APIs to a single-turn generation call.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/petasbytes/tabularasa/internal/config"
)

// ErrMissingAPIKey is returned before any network call when no credential is configured.
var ErrMissingAPIKey = errors.New("API key not found in environment variables")

// Image is an inline image attachment.
type Image struct {
	Data     []byte
	MIMEType string
}

// Part is one content part of the user turn: either Text or Image.
type Part struct {
	Text  string
	Image *Image
}

// Request is a single-turn generation request.
type Request struct {
	Model             string
	SystemInstruction string
	Parts             []Part
	Temperature       float64
	MaxTokens         int64
	// Structured asks providers that support it for a JSON object with
	// "thought" and "response" fields instead of tagged text.
	Structured bool
}

// Generator sends a Request and returns the raw reply text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// DefaultModelFor returns the default model id for a provider name.
func DefaultModelFor(name string) string {
	if name == "gemini" {
		return DefaultGeminiModel
	}
	return string(DefaultModel)
}

// New builds the Generator selected by cfg.Provider.
func New(cfg *config.Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic":
		return NewAnthropic(cfg.APIKey), nil
	case "gemini":
		return NewGemini(cfg.APIKey, cfg.GeminiBaseURL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
