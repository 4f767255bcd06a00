package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/warp/warehouse-engine/api"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Start the HTTP API server and the periodic booking expiry sweep`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper, err := api.NewExpirySweeper(a.service, a.cfg.Sweep, a.log)
	if err != nil {
		return err
	}

	handler := api.NewHandler(a.service, a.log)
	handler.Sweeper = sweeper
	if a.redis != nil {
		handler.Inbox = a.redis
	}

	server := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      api.NewRouter(handler, a.cfg.Server.CorsOrigins),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	})

	g.Go(func() error {
		if err := sweeper.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		return sweeper.Stop()
	})

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info().Msg("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.log.Error().Err(err).Msg("Server error")
		return err
	}
	a.log.Info().Msg("Server stopped")
	return nil
}
