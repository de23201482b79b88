// Package api exposes the knowledge base and the chat session over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/petasbytes/tabularasa/internal/chat"
	"github.com/petasbytes/tabularasa/memory"
)

// DefaultMaxBodyBytes bounds request bodies, images included.
const DefaultMaxBodyBytes = 20 << 20

type Deps struct {
	Store    *memory.Store
	Chat     *chat.Service
	Gatherer prometheus.Gatherer // nil means prometheus.DefaultGatherer
	Log      zerolog.Logger

	MaxBodyBytes int64
	TurnTimeout  time.Duration // zero means DefaultTurnTimeout
}

// NewRouter wires every route to its handler.
func NewRouter(d Deps) *mux.Router {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if d.TurnTimeout <= 0 || d.TurnTimeout > DefaultTurnTimeout {
		d.TurnTimeout = DefaultTurnTimeout
	}
	h := &handler{store: d.Store, chat: d.Chat, log: d.Log, maxBody: d.MaxBodyBytes, turnTimeout: d.TurnTimeout}

	root := mux.NewRouter()
	root.Use(h.logRequests)

	root.HandleFunc("/api/facts", h.listFacts).Methods("GET")
	root.HandleFunc("/api/facts", h.addFact).Methods("POST")
	root.HandleFunc("/api/facts", h.wipeFacts).Methods("DELETE")
	root.HandleFunc("/api/facts/export", h.exportFacts).Methods("GET")
	root.HandleFunc("/api/facts/{id}", h.deleteFact).Methods("DELETE")
	root.HandleFunc("/api/context", h.memoryContext).Methods("GET")

	root.HandleFunc("/api/chat", h.sendChat).Methods("POST")
	root.HandleFunc("/api/messages", h.listMessages).Methods("GET")
	root.HandleFunc("/api/messages", h.resetMessages).Methods("DELETE")

	root.HandleFunc("/healthz", h.health).Methods("GET")
	root.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	return root
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
