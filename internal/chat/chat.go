// Package chat applies the caller-side turn policy on top of the runner: one turn in
// flight at a time, a transcript of the session, and a fixed error reply when the
// endpoint fails.
package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/petasbytes/tabularasa/internal/prompt"
	"github.com/petasbytes/tabularasa/internal/provider"
	"github.com/petasbytes/tabularasa/internal/runner"
	"github.com/petasbytes/tabularasa/memory"
)

var (
	ErrBusy       = errors.New("chat: a turn is already in progress")
	ErrEmptyInput = errors.New("chat: message is empty")
)

// Turner runs one conversation turn.
type Turner interface {
	RunTurn(ctx context.Context, turn runner.Turn) (runner.Result, error)
}

// Input is what the user submits: text, an optional image, or both.
type Input struct {
	Text  string
	Image *provider.Image
}

type Option func(*Service)

// WithErrorText overrides the reply shown when a turn fails.
func WithErrorText(s string) Option {
	return func(svc *Service) {
		if s != "" {
			svc.errorText = s
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

type Service struct {
	turner    Turner
	conv      *memory.Conversation
	errorText string
	now       func() time.Time
	log       zerolog.Logger
	md        goldmark.Markdown
	busy      atomic.Bool
}

func New(t Turner, conv *memory.Conversation, opts ...Option) *Service {
	if conv == nil {
		conv = memory.NewConversation()
	}
	s := &Service{
		turner:    t,
		conv:      conv,
		errorText: prompt.DefaultErrorMessage,
		now:       time.Now,
		log:       zerolog.Nop(),
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Send records the user message, runs the turn and records the model reply, which is
// also returned. Endpoint failures are not returned as errors: they become a model
// message carrying the fixed error text.
func (s *Service) Send(ctx context.Context, in Input) (memory.ChatMessage, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Image == nil {
		return memory.ChatMessage{}, ErrEmptyInput
	}
	if !s.busy.CompareAndSwap(false, true) {
		return memory.ChatMessage{}, ErrBusy
	}
	defer s.busy.Store(false)

	history := s.conv.Messages()

	user := memory.ChatMessage{Role: memory.RoleUser, Text: text, Timestamp: s.now().UnixMilli()}
	if in.Image != nil {
		user.Image = memory.DataURI(in.Image.MIMEType, in.Image.Data)
	}
	s.conv.Append(user)

	res, err := s.turner.RunTurn(ctx, runner.Turn{Message: text, History: history, Image: in.Image})
	reply := memory.ChatMessage{Role: memory.RoleModel, Timestamp: s.now().UnixMilli()}
	if err != nil {
		s.log.Error().Err(err).Msg("chat turn failed")
		reply.Text = s.errorText
	} else {
		reply.Text = res.Text
		reply.Thinking = res.Thinking
	}
	s.conv.Append(reply)
	return reply, nil
}

// Busy reports whether a turn is in flight.
func (s *Service) Busy() bool { return s.busy.Load() }

func (s *Service) Messages() []memory.ChatMessage { return s.conv.Messages() }

// Reset clears the session transcript. Facts are untouched.
func (s *Service) Reset() { s.conv.Reset() }

// RenderHTML converts model Markdown to HTML (GitHub flavoured).
func (s *Service) RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
