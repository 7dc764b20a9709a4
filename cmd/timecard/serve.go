package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"timecard/internal/app"
	"timecard/internal/config"
	"timecard/internal/migrate"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.Default()
			cfg, err := config.Load()
			if err != nil {
				return fail("failed to load config", err)
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			ctx := cmd.Context()
			application, err := app.New(ctx, logger, cfg)
			if err != nil {
				return fail("failed to initialize app", err)
			}
			defer application.Close()

			srv := application.HTTPServer(cfg.HTTP.Addr)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("listening", slog.String("addr", cfg.HTTP.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				return fail("server failed", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var reset, yes bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.Default()
			cfg, err := config.Load()
			if err != nil {
				return fail("failed to load config", err)
			}
			if !reset {
				if err := migrate.Run(cmd.Context(), cfg.DB.Driver, cfg.DB.DSN, logger); err != nil {
					return fail("migration failed", err)
				}
				logger.Info("migrations applied")
				return nil
			}
			if !yes {
				fmt.Fprint(os.Stderr, "This drops every table and all data. Continue? [y/N] ")
				var answer string
				_, _ = fmt.Fscanln(os.Stdin, &answer)
				if answer != "y" && answer != "Y" {
					return errors.New("reset aborted")
				}
			}
			if err := migrate.Reset(cmd.Context(), cfg.DB.Driver, cfg.DB.DSN, logger); err != nil {
				return fail("reset failed", err)
			}
			logger.Info("database reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop all tables and re-apply migrations")
	cmd.Flags().BoolVar(&yes, "yes", false, "Skip the reset confirmation")
	return cmd
}
