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
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"regdns/internal/config"
	"regdns/internal/hostaddr"
	"regdns/internal/logging"
	"regdns/internal/register"
	"regdns/internal/registry"
	"regdns/internal/resolver"
	"regdns/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand() *cobra.Command {
	cfg, loadErr := config.Load()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "answer DNS queries and accept registrations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().AddFlagSet(cfg.FlagSet())
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	table := registry.NewTable()
	listener := server.NewListener(resolver.NewResolver(logger.Named("resolver")), table, logger.Named("dns"))
	api := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           register.NewHandler(table, hostaddr.NewDetector(cfg.RouteAddr), logger.Named("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("Starting",
		zap.String("DNS", cfg.DNSAddr),
		zap.String("HTTP", cfg.HTTPAddr))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := listener.ListenAndServe(cfg.DNSAddr)
		if errors.Is(err, server.ErrListenerStopped) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := api.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(listener.Stop(), api.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
