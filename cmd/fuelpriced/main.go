package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fueldash/fuelpriced/internal/api"
	"github.com/fueldash/fuelpriced/internal/config"
	"github.com/fueldash/fuelpriced/internal/cron"
	"github.com/fueldash/fuelpriced/internal/migrate"
	"github.com/fueldash/fuelpriced/internal/prices"

	// Register the upstream fuel sources.
	_ "github.com/fueldash/fuelpriced/pkg/sources/fuelsources/collectapi"
	_ "github.com/fueldash/fuelpriced/pkg/sources/fuelsources/doebulletin"
	_ "github.com/fueldash/fuelpriced/pkg/sources/fuelsources/eia"
	_ "github.com/fueldash/fuelpriced/pkg/sources/fuelsources/stub"
)

func main() {
	root := &cobra.Command{
		Use:   "fuelpriced",
		Short: "Regional fuel price service",
	}

	root.AddCommand(serveCmd(), workerCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			mux := api.NewMux()

			addr := ":" + cfg.Port
			log.Printf("fuelpriced listening on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("server failed: %v", err)
				return err
			}
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background price-refresh worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pcfg := prices.Config{
				CacheTTL:            cfg.CacheTTL,
				BreakerThreshold:    cfg.BreakerThreshold,
				BreakerResetTimeout: cfg.BreakerResetTimeout,
			}
			err := cron.Run(ctx, cfg.DBDriver, cfg.DBDSN, pcfg)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("worker failed: %v", err)
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.FromEnv()
				return migrate.Up(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.FromEnv()
				return migrate.Down(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.FromEnv()
				return migrate.Status(cmd.Context(), cfg.DBDriver, cfg.DBDSN)
			},
		},
	)

	return cmd
}
