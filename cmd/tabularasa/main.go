package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFileFlag string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tabularasa",
		Short:         "A blank-slate chat agent that only knows what you teach it",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "dotenv file loaded before the environment (ignored when missing)")
	root.AddCommand(newChatCmd(), newFactsCmd(), newServeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
