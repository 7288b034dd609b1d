package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/askdb/askdb/pkg/handlers"
	"github.com/askdb/askdb/pkg/logging"
	"github.com/askdb/askdb/pkg/mcp"
	"github.com/askdb/askdb/pkg/middleware"
	"github.com/askdb/askdb/ui"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (question page, /ask, /mcp, /metrics)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// readiness reports the target database and catalog state for GET /ready.
type readiness struct{ c *core }

func (r readiness) Ping(ctx context.Context) error { return r.c.reader.Ping(ctx) }
func (r readiness) Loaded() bool                   { return r.c.catalog.Loaded() }

// newMux registers every route served by askdb.
func (a *app) newMux(c *core) *http.ServeMux {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(a.cfg, readiness{c}, a.logger).RegisterRoutes(mux)
	handlers.NewSchemaHandler(c.catalog, a.logger).RegisterRoutes(mux)
	handlers.NewAskHandler(c.askService, a.logger).RegisterRoutes(mux)

	mcpServer := mcp.NewServer("askdb", a.version, a.logger)
	mcpServer.RegisterTools(a.version, c.catalog, c.askService)
	handlers.NewMCPHandler(mcpServer, a.logger).RegisterRoutes(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	handlers.RegisterUI(mux, ui.DistFS())
	return mux
}

func (a *app) serve(ctx context.Context) error {
	c, err := a.buildCore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	// Warm the catalog; a failure here is retried lazily by the first request.
	if err := c.catalog.EnsureLoaded(ctx); err != nil {
		a.logger.Warn("Schema catalog not loaded at startup", zap.String("error", logging.SanitizeError(err)))
	}

	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           middleware.RequestLogger(a.logger)(a.newMux(c)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting askdb",
			zap.String("addr", srv.Addr),
			zap.String("version", a.version),
			zap.String("env", a.cfg.Env))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
