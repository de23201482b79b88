package main

import (
	"github.com/spf13/cobra"

	"github.com/petasbytes/tabularasa/internal/api"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the facts and chat HTTP API",
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
			a.watchFacts(ctx)

			if addr == "" {
				addr = a.cfg.HTTPAddr
			}
			router := api.NewRouter(api.Deps{Store: a.store, Chat: svc, Gatherer: a.registry, Log: a.log})
			return api.Serve(ctx, api.NewHTTPServer(ctx, addr, router), a.log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to TR_HTTP_ADDR)")
	return cmd
}
