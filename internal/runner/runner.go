package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/petasbytes/tabularasa/internal/metrics"
	"github.com/petasbytes/tabularasa/internal/prompt"
	"github.com/petasbytes/tabularasa/internal/provider"
	"github.com/petasbytes/tabularasa/internal/telemetry"
	"github.com/petasbytes/tabularasa/memory"
)

// Turn is one user input. History is accepted for callers that track it but is not sent.
type Turn struct {
	Message string
	History []memory.ChatMessage
	Image   *provider.Image
}

// Result is the decoded model reply.
type Result struct {
	Text     string
	Thinking string
	Fallback bool
}

type Runner struct {
	Generator  provider.Generator
	Store      *memory.Store
	Persona    prompt.Persona
	Model      string
	MaxTokens  int64
	Structured bool
	Metrics    *metrics.Collectors
	Log        zerolog.Logger
}

func New(gen provider.Generator, store *memory.Store, persona prompt.Persona) *Runner {
	return &Runner{Generator: gen, Store: store, Persona: persona, Log: zerolog.Nop()}
}

// RunTurn builds the system instruction from the current facts, sends the user turn and
// decodes the reply. Endpoint and credential errors are returned wrapped; nothing is retried.
func (r *Runner) RunTurn(ctx context.Context, turn Turn) (Result, error) {
	ctx, turnID := telemetry.EnsureTurnID(ctx)
	start := time.Now()

	facts := r.Store.Load(ctx)
	r.Metrics.SetFacts(len(facts))
	instruction := r.Persona.SystemInstruction(memory.RenderContext(facts, r.Store.EmptyContext()))

	parts := make([]provider.Part, 0, 2)
	if turn.Image != nil {
		parts = append(parts, provider.Part{Image: turn.Image})
	}
	parts = append(parts, provider.Part{Text: turn.Message})

	fields := map[string]any{
		"turn_id":           turnID,
		"provider":          r.Generator.Name(),
		"model":             r.Model,
		"facts":             len(facts),
		"instruction_bytes": len(instruction),
		"has_image":         turn.Image != nil,
		"history_len":       len(turn.History),
		"message":           metrics.CountFeatures(turn.Message).Map(),
	}
	telemetry.Emit("turn_prepared", fields)

	log := r.Log.With().Str("turn_id", turnID).Logger()

	raw, err := r.Generator.Generate(ctx, provider.Request{
		Model:             r.Model,
		SystemInstruction: instruction,
		Parts:             parts,
		Temperature:       r.Persona.Temp(),
		MaxTokens:         r.MaxTokens,
		Structured:        r.Structured,
	})
	elapsed := time.Since(start)
	if err != nil {
		r.Metrics.ObserveTurn(metrics.OutcomeError, elapsed, false)
		telemetry.Emit("turn_failed", map[string]any{
			"turn_id":     turnID,
			"duration_ms": elapsed.Milliseconds(),
			"error":       errorClass(err),
		})
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("turn failed")
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	if strings.TrimSpace(raw) == "" {
		raw = r.Persona.NoReply
		if raw == "" {
			raw = prompt.DefaultNoReply
		}
	}
	d := Decode(raw)
	if r.Structured {
		d = DecodeStructured(raw)
	}

	r.Metrics.ObserveTurn(metrics.OutcomeOK, elapsed, d.Fallback)
	telemetry.Emit("turn_completed", map[string]any{
		"turn_id":      turnID,
		"duration_ms":  elapsed.Milliseconds(),
		"has_thinking": d.Thinking != "",
		"fallback":     d.Fallback,
		"reply":        metrics.CountFeatures(d.Text).Map(),
	})
	log.Debug().Dur("elapsed", elapsed).Bool("fallback", d.Fallback).Int("facts", len(facts)).Msg("turn completed")

	return Result{Text: d.Text, Thinking: d.Thinking, Fallback: d.Fallback}, nil
}

// errorClass keeps provider error bodies out of telemetry.
func errorClass(err error) string {
	if errors.Is(err, provider.ErrMissingAPIKey) {
		return "missing_api_key"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "generate_error"
}
