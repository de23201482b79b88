package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petasbytes/tabularasa/internal/chat"
	"github.com/petasbytes/tabularasa/internal/provider"
	"github.com/petasbytes/tabularasa/memory"
)

const (
	colorUser  = "\u001b[94m"
	colorModel = "\u001b[93m"
	colorDim   = "\u001b[2m"
	colorReset = "\u001b[0m"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session (type /help for commands)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.newChat()
			if err != nil {
				return err
			}
			return (&repl{svc: svc, store: a.store, out: cmd.OutOrStdout()}).run(ctx, cmd.InOrStdin())
		},
	}
}

type repl struct {
	svc   *chat.Service
	store *memory.Store
	out   io.Writer

	pendingImage *provider.Image
	confirmWipe  bool
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		defer close(inputCh)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(r.out, "Tabula Rasa. Teach me with /learn, ask anything else. /help lists commands, Ctrl-C quits.")
	for {
		r.prompt()
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out, "\nExiting...")
			return nil
		case line, ok = <-inputCh:
			if !ok {
				return scanner.Err()
			}
		}
		if quit := r.handle(ctx, line); quit {
			return nil
		}
	}
}

func (r *repl) prompt() {
	if r.confirmWipe {
		fmt.Fprint(r.out, "Apagar TODA a memória? Esta ação é irreversível. (y/N): ")
		return
	}
	fmt.Fprint(r.out, colorUser+"Você"+colorReset+": ")
}

// handle processes one input line and reports whether the session should end.
func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)

	if r.confirmWipe {
		r.confirmWipe = false
		if strings.EqualFold(line, "y") || strings.EqualFold(line, "yes") {
			if err := r.store.Wipe(ctx); err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
				return false
			}
			fmt.Fprintln(r.out, "Memória apagada.")
		} else {
			fmt.Fprintln(r.out, "Cancelado.")
		}
		return false
	}

	if strings.HasPrefix(line, "/") {
		return r.command(ctx, line)
	}
	if line == "" && r.pendingImage == nil {
		return false
	}
	r.send(ctx, line)
	return false
}

func (r *repl) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, "/learn <fato>  /forget <id>  /facts  /wipe  /export [dir]  /image <arquivo>  /reset  /quit")
	case "/learn":
		facts, err := r.store.Add(ctx, arg)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "Aprendido (%d fatos).\n", len(facts))
	case "/forget":
		if arg == "" {
			fmt.Fprintln(r.out, "usage: /forget <id>")
			return false
		}
		facts, err := r.store.Delete(ctx, arg)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "Esquecido (%d fatos).\n", len(facts))
	case "/facts":
		printFacts(r.out, r.store.Load(ctx))
	case "/wipe":
		r.confirmWipe = true
	case "/export":
		p, err := r.store.Export(ctx).Save(arg)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "Exportado para %s\n", p)
	case "/image":
		img, err := readImage(arg)
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return false
		}
		r.pendingImage = img
		fmt.Fprintf(r.out, "Imagem anexada (%s, %d bytes). Será enviada com a próxima mensagem.\n", img.MIMEType, len(img.Data))
	case "/reset":
		r.svc.Reset()
		fmt.Fprintln(r.out, "Conversa reiniciada.")
	default:
		fmt.Fprintf(r.out, "unknown command %s (try /help)\n", name)
	}
	return false
}

func (r *repl) send(ctx context.Context, text string) {
	img := r.pendingImage
	r.pendingImage = nil

	reply, err := r.svc.Send(ctx, chat.Input{Text: text, Image: img})
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	if reply.Thinking != "" {
		fmt.Fprintf(r.out, "%s%s%s\n", colorDim, reply.Thinking, colorReset)
	}
	fmt.Fprintf(r.out, "%sIA%s: %s\n", colorModel, colorReset, reply.Text)
}

func readImage(path string) (*provider.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("usage: /image <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	return &provider.Image{Data: data, MIMEType: mimeType}, nil
}
