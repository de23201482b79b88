package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/tabularasa/internal/chat"
	"github.com/petasbytes/tabularasa/internal/prompt"
	"github.com/petasbytes/tabularasa/internal/provider"
	"github.com/petasbytes/tabularasa/internal/runner"
	"github.com/petasbytes/tabularasa/memory"
)

type stubTurner struct {
	mu    sync.Mutex
	res   runner.Result
	err   error
	turns []runner.Turn
	block chan struct{}
}

func (s *stubTurner) RunTurn(ctx context.Context, turn runner.Turn) (runner.Result, error) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	return s.res, s.err
}

func fixedClock() time.Time { return time.UnixMilli(1700000000000) }

func TestSend_Success(t *testing.T) {
	st := &stubTurner{res: runner.Result{Text: "Olá", Thinking: "pensei"}}
	svc := chat.New(st, nil, chat.WithClock(fixedClock))

	reply, err := svc.Send(context.Background(), chat.Input{Text: "  oi  "})
	require.NoError(t, err)
	assert.Equal(t, memory.RoleModel, reply.Role)
	assert.Equal(t, "Olá", reply.Text)
	assert.Equal(t, "pensei", reply.Thinking)

	msgs := svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, memory.ChatMessage{Role: memory.RoleUser, Text: "oi", Timestamp: 1700000000000}, msgs[0])
	assert.Equal(t, reply, msgs[1])
	require.Len(t, st.turns, 1)
	assert.Equal(t, "oi", st.turns[0].Message)
	assert.Empty(t, st.turns[0].History)
}

func TestSend_EmptyInputRejected(t *testing.T) {
	st := &stubTurner{}
	svc := chat.New(st, nil)

	_, err := svc.Send(context.Background(), chat.Input{Text: "   "})
	require.ErrorIs(t, err, chat.ErrEmptyInput)
	assert.Empty(t, st.turns)
	assert.Empty(t, svc.Messages())
}

func TestSend_ImageOnlyAllowed(t *testing.T) {
	st := &stubTurner{res: runner.Result{Text: "um gato"}}
	svc := chat.New(st, nil)
	img := &provider.Image{Data: []byte("abc"), MIMEType: "image/jpeg"}

	_, err := svc.Send(context.Background(), chat.Input{Image: img})
	require.NoError(t, err)
	msgs := svc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "data:image/jpeg;base64,YWJj", msgs[0].Image)
	assert.Same(t, img, st.turns[0].Image)
}

// Zero facts and a failing endpoint produce exactly one model message with the
// critical-error text and no thinking.
func TestSend_EndpointFailureBecomesErrorMessage(t *testing.T) {
	store := memory.NewStore(memory.NewMemBackend())
	require.Empty(t, store.Load(context.Background()))

	persona, err := prompt.Builtin().Get(prompt.DefaultName)
	require.NoError(t, err)
	gen := &failingGenerator{err: errors.New("connection refused")}
	r := runner.New(gen, store, persona)
	svc := chat.New(r, nil, chat.WithErrorText(persona.ErrorMessage))

	reply, err := svc.Send(context.Background(), chat.Input{Text: "Olá"})
	require.NoError(t, err)
	assert.Equal(t, "ERRO CRÍTICO: Falha na conexão com o núcleo neural.", reply.Text)
	assert.Empty(t, reply.Thinking)

	var models int
	for _, m := range svc.Messages() {
		if m.Role == memory.RoleModel {
			models++
		}
	}
	assert.Equal(t, 1, models)
}

func TestSend_BusyWhileTurnInFlight(t *testing.T) {
	st := &stubTurner{block: make(chan struct{}), res: runner.Result{Text: "ok"}}
	svc := chat.New(st, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(context.Background(), chat.Input{Text: "primeira"})
		done <- err
	}()

	require.Eventually(t, svc.Busy, time.Second, time.Millisecond)
	_, err := svc.Send(context.Background(), chat.Input{Text: "segunda"})
	require.ErrorIs(t, err, chat.ErrBusy)

	close(st.block)
	require.NoError(t, <-done)
	assert.False(t, svc.Busy())
	assert.Len(t, svc.Messages(), 2)
}

func TestSend_PassesPriorHistory(t *testing.T) {
	st := &stubTurner{res: runner.Result{Text: "r"}}
	svc := chat.New(st, nil)

	_, err := svc.Send(context.Background(), chat.Input{Text: "um"})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), chat.Input{Text: "dois"})
	require.NoError(t, err)

	require.Len(t, st.turns, 2)
	assert.Len(t, st.turns[1].History, 2)
}

func TestReset(t *testing.T) {
	svc := chat.New(&stubTurner{res: runner.Result{Text: "r"}}, nil)
	_, err := svc.Send(context.Background(), chat.Input{Text: "x"})
	require.NoError(t, err)

	svc.Reset()
	assert.Empty(t, svc.Messages())
}

func TestRenderHTML(t *testing.T) {
	svc := chat.New(&stubTurner{}, nil)
	html, err := svc.RenderHTML("**negrito** e ~~riscado~~\n\n<script>x</script>")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>negrito</strong>")
	assert.Contains(t, html, "<del>riscado</del>")
	assert.False(t, strings.Contains(html, "<script>"), "raw HTML must not pass through")
}

type failingGenerator struct{ err error }

func (f *failingGenerator) Name() string { return "failing" }

func (f *failingGenerator) Generate(context.Context, provider.Request) (string, error) {
	return "", f.err
}
