package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vampirenirmal/chapterforge/internal/api"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" && app.Config != nil {
				addr = app.Config.Server.Addr
			}
			if addr == "" {
				addr = "127.0.0.1:8080"
			}
			logger := app.logger().With("component", "serve")

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewServer(app.Manager, app.Hub, api.WithLogger(app.logger())).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				logger.Info("shutting down")
				err := srv.Shutdown(shutdownCtx)
				if ferr := app.Manager.Flush(shutdownCtx); ferr != nil {
					logger.Warn("flush on shutdown failed", "error", ferr)
				}
				return err
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
