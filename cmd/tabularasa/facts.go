package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petasbytes/tabularasa/memory"
)

func newFactsCmd() *cobra.Command {
	factsCmd := &cobra.Command{Use: "facts", Short: "Manage the knowledge base"}

	// withStore opens the app for the duration of fn.
	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, s *memory.Store) error) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a.store)
	}

	factsCmd.AddCommand(&cobra.Command{
		Use:   "add FACT...",
		Short: "Teach a fact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *memory.Store) error {
				facts, err := s.Add(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), facts[len(facts)-1].ID)
				return nil
			})
		},
	})

	factsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List facts, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *memory.Store) error {
				printFacts(cmd.OutOrStdout(), s.Load(ctx))
				return nil
			})
		},
	})

	factsCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Forget one fact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *memory.Store) error {
				facts, err := s.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d facts remain\n", len(facts))
				return nil
			})
		},
	})

	var yes bool
	wipeCmd := &cobra.Command{
		Use:   "wipe",
		Short: "Irreversibly erase every fact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Apagar TODA a memória? Esta ação é irreversível. (y/N): ") {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelado.")
				return nil
			}
			return withStore(cmd, func(ctx context.Context, s *memory.Store) error {
				return s.Wipe(ctx)
			})
		},
	}
	wipeCmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	factsCmd.AddCommand(wipeCmd)

	var outDir string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the knowledge base to a dated text file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *memory.Store) error {
				p, err := s.Export(ctx).Save(outDir)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	factsCmd.AddCommand(exportCmd)

	factsCmd.AddCommand(&cobra.Command{
		Use:   "context",
		Short: "Print the memory block injected into the prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *memory.Store) error {
				fmt.Fprintln(cmd.OutOrStdout(), s.ContextString(ctx))
				return nil
			})
		},
	})

	return factsCmd
}

func printFacts(w io.Writer, facts []memory.Entry) {
	if len(facts) == 0 {
		fmt.Fprintln(w, "(nenhum fato)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range facts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.ID, time.UnixMilli(f.Timestamp).Format("2006-01-02 15:04"), f.Content)
	}
	_ = tw.Flush()
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimSpace(line)
	return strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
}
