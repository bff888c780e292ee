package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/railbook/internal/config"
	"github.com/shehryarbajwa/railbook/internal/ratelimit"
)

type apiRouter struct {
	http.Handler
	limiter *ratelimit.Limiter
}

func newServeCmd() *cobra.Command {
	var addr string
	var eager bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg.HTTPAddr, eager, logger, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&eager, "eager", false, "start the browser before accepting requests")
	return cmd
}

func serve(ctx context.Context, addr string, eager bool, logger *zap.Logger, cfg *config.Config) error {
	logger.Info("starting railbook",
		zap.String("addr", addr),
		zap.String("browser_mode", cfg.Browser.Mode),
		zap.String("portal", cfg.PortalURL))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if eager {
		if _, err := a.session.Ensure(ctx); err != nil {
			logger.Warn("browser did not start; it will be retried on first use", zap.Error(err))
		}
	}

	router := a.router()
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		// booking and search calls drive a real browser for minutes
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go pruneLimiter(ctx, router.limiter, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	a.shutdown(shutdownCtx)
	logger.Info("server stopped cleanly")
	return nil
}

func pruneLimiter(ctx context.Context, l *ratelimit.Limiter, logger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(time.Hour); n > 0 {
				logger.Debug("pruned idle rate limit buckets", zap.Int("count", n))
			}
		}
	}
}
