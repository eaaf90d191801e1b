package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyber-trackr/cyber-trackr/internal/api"
	"github.com/cyber-trackr/cyber-trackr/pkg/buildinfo"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored documents over a read-only JSON API",
		Long: "Serve the documents and export runs of the local store. The server binds\n" +
			"to localhost by default; use --addr 0.0.0.0:8080 to expose it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			mux := http.NewServeMux()
			api.RegisterRoutes(mux, api.NewHandler(api.HandlerConfig{Store: st, Logger: a.logger}))

			server := &http.Server{
				Addr:         addr,
				Handler:      api.LogRequests(a.logger, mux),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", buildinfo.String())
			a.logger.WithField("addr", addr).Info("Serving stored documents")

			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			a.logger.Info("Shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, localhost-only)")
	return cmd
}
