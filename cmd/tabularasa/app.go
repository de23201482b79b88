package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/petasbytes/tabularasa/internal/chat"
	"github.com/petasbytes/tabularasa/internal/config"
	"github.com/petasbytes/tabularasa/internal/logger"
	"github.com/petasbytes/tabularasa/internal/metrics"
	"github.com/petasbytes/tabularasa/internal/prompt"
	"github.com/petasbytes/tabularasa/internal/provider"
	"github.com/petasbytes/tabularasa/internal/runner"
	"github.com/petasbytes/tabularasa/internal/storage"
	"github.com/petasbytes/tabularasa/internal/telemetry"
	"github.com/petasbytes/tabularasa/memory"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	persona  prompt.Persona
	backend  memory.Backend
	store    *memory.Store
	registry *prometheus.Registry
	metrics  *metrics.Collectors
}

func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(envFileFlag)
	if err != nil {
		return nil, err
	}
	log := logger.New("tabularasa", logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: logOut})
	telemetry.SetLogger(log)

	persona, err := prompt.Resolve(cfg.PersonaFile, cfg.Persona)
	if err != nil {
		return nil, err
	}

	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Error().Stack().Err(err).Str("driver", cfg.StoreDriver).Msg("storage unavailable")
		return nil, fmt.Errorf("open storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := memory.NewStore(backend,
		memory.WithKey(cfg.StorageKey),
		memory.WithLogger(log),
		memory.WithEmptyContext(persona.EmptyMemory),
		memory.WithExportFormat(cfg.ExportTimeLayout, time.Local),
	)

	log.Debug().
		Str("provider", cfg.Provider).
		Str("persona", persona.Name).
		Str("store_driver", cfg.StoreDriver).
		Bool("api_key", cfg.HasAPIKey()).
		Msg("tabularasa starting")

	return &app{
		cfg:      cfg,
		log:      log,
		persona:  persona,
		backend:  backend,
		store:    store,
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

// newChat builds the generator, runner and chat session. A missing API key is not an
// error here; each turn fails instead.
func (a *app) newChat() (*chat.Service, error) {
	gen, err := provider.New(a.cfg)
	if err != nil {
		return nil, err
	}
	if !a.cfg.HasAPIKey() {
		a.log.Warn().Str("provider", gen.Name()).Msg("no API key configured; turns will fail")
	}

	r := runner.New(gen, a.store, a.persona)
	r.Model = a.cfg.Model
	if r.Model == "" {
		r.Model = provider.DefaultModelFor(gen.Name())
	}
	r.MaxTokens = a.cfg.MaxTokens
	r.Structured = a.cfg.StructuredOutput
	r.Metrics = a.metrics
	r.Log = a.log

	return chat.New(r, memory.NewConversation(),
		chat.WithErrorText(a.persona.ErrorMessage),
		chat.WithLogger(a.log),
	), nil
}

// watchFacts keeps the facts gauge current until ctx ends.
func (a *app) watchFacts(ctx context.Context) {
	a.metrics.SetFacts(len(a.store.Load(ctx)))
	events, cancel := a.store.Subscribe(16)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				a.metrics.SetFacts(evt.Count)
				a.log.Debug().Str("kind", string(evt.Kind)).Str("id", evt.EntryID).Int("count", evt.Count).Msg("memory changed")
			}
		}
	}()
}

func (a *app) close() {
	if err := a.backend.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close storage")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
