package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/petasbytes/tabularasa/internal/chat"
	"github.com/petasbytes/tabularasa/internal/provider"
	"github.com/petasbytes/tabularasa/internal/storage"
	"github.com/petasbytes/tabularasa/memory"
)

type handler struct {
	store   *memory.Store
	chat    *chat.Service
	log     zerolog.Logger
	maxBody int64

	turnTimeout time.Duration
}

// listFacts handles GET /api/facts
func (h *handler) listFacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"facts": h.store.Load(r.Context())})
}

// addFact handles POST /api/facts
func (h *handler) addFact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := h.decode(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON")
		return
	}
	facts, err := h.store.Add(r.Context(), req.Content)
	if errors.Is(err, memory.ErrEmptyContent) {
		writeBadRequest(w, "content is required")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("add fact")
		writeInternalError(w, "failed to save fact")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"fact": facts[len(facts)-1], "facts": facts})
}

// deleteFact handles DELETE /api/facts/{id}
func (h *handler) deleteFact(w http.ResponseWriter, r *http.Request) {
	facts, err := h.store.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.log.Error().Err(err).Msg("delete fact")
		writeInternalError(w, "failed to delete fact")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facts": facts})
}

// wipeFacts handles DELETE /api/facts
func (h *handler) wipeFacts(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Wipe(r.Context()); err != nil {
		h.log.Error().Err(err).Msg("wipe facts")
		writeInternalError(w, "failed to wipe memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exportFacts handles GET /api/facts/export
func (h *handler) exportFacts(w http.ResponseWriter, r *http.Request) {
	exp := h.store.Export(r.Context())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(exp.Body))
}

// memoryContext handles GET /api/context
func (h *handler) memoryContext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"context": h.store.ContextString(r.Context())})
}

type chatRequest struct {
	Message string `json:"message"`
	Image   *struct {
		Data     string `json:"data"`
		MIMEType string `json:"mimeType"`
	} `json:"image,omitempty"`
}

type chatResponse struct {
	memory.ChatMessage
	HTML string `json:"html"`
}

// sendChat handles POST /api/chat. Endpoint failures still answer 200 with the
// error-text model message.
func (h *handler) sendChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := h.decode(w, r, &req); err != nil {
		writeBadRequest(w, "Invalid JSON")
		return
	}

	in := chat.Input{Text: req.Message}
	if req.Image != nil && req.Image.Data != "" {
		img, err := decodeImage(req.Image.Data, req.Image.MIMEType)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		in.Image = img
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.turnTimeout)
	defer cancel()
	reply, err := h.chat.Send(ctx, in)
	switch {
	case errors.Is(err, chat.ErrEmptyInput):
		writeBadRequest(w, "message or image is required")
		return
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, "a reply is still being generated")
		return
	case err != nil:
		writeInternalError(w, "chat failed")
		return
	}

	html, err := h.chat.RenderHTML(reply.Text)
	if err != nil {
		h.log.Warn().Err(err).Msg("render markdown")
	}
	writeJSON(w, http.StatusOK, chatResponse{ChatMessage: reply, HTML: html})
}

// listMessages handles GET /api/messages
func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": h.chat.Messages()})
}

// resetMessages handles DELETE /api/messages
func (h *handler) resetMessages(w http.ResponseWriter, r *http.Request) {
	h.chat.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// health handles GET /healthz
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := storage.Ping(ctx, h.store.Backend()); err != nil {
		h.log.Warn().Err(err).Msg("backend ping failed")
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeImage accepts raw base64 or a data URI. A missing MIME type is sniffed.
func decodeImage(data, mimeType string) (*provider.Image, error) {
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, errors.New("malformed data URI")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(header, ";base64")
		}
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.New("image data is not valid base64")
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(raw)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("unsupported image type %q", mimeType)
	}
	return &provider.Image{Data: raw, MIMEType: mimeType}, nil
}
