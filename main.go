package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Govind-619/PayRoute/app"
	"github.com/Govind-619/PayRoute/config"
	"github.com/Govind-619/PayRoute/upi"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "payroute",
		Short:         "PayRoute - payment gateway routing and transaction lifecycle engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepUPICmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and starts the loggers every command needs.
func bootstrap() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if err := utils.InitLogger(cfg.LogDir); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func fxLogger() fx.Option {
	return fx.WithLogger(func() fxevent.Logger {
		return &fxevent.ZapLogger{Logger: utils.InfoLogger.Desugar()}
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the UPI expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer utils.SyncLoggers()

			fx.New(
				fxLogger(),
				fx.Supply(cfg),
				app.Core,
				app.HTTP,
				app.Worker,
			).Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the payment schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer utils.SyncLoggers()

			db, err := config.InitDB(cfg)
			if err != nil {
				utils.LogError("Migration failed: %v", err)
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			fmt.Println("Schema is up to date")
			return nil
		},
	}
}

func sweepUPICmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sweep-upi",
		Short: "Expire stale pending UPI transactions once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			defer utils.SyncLoggers()

			var sweeper *upi.Sweeper
			fxApp := fx.New(
				fxLogger(),
				fx.Supply(cfg),
				app.Core,
				app.Sweep,
				fx.Populate(&sweeper),
			)
			if err := fxApp.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := fxApp.Start(ctx); err != nil {
				return err
			}
			defer fxApp.Stop(context.Background())

			expired, err := sweeper.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Expired %d UPI transaction(s)\n", expired)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "maximum time for the sweep")
	return cmd
}
