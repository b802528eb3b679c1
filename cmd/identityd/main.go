package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smarthubultra/identity-service/internal/app"
	"github.com/smarthubultra/identity-service/internal/config"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/tools/common"
	"github.com/smarthubultra/identity-service/internal/tools/ui"
)

func main() {
	root := &cobra.Command{
		Use:   "identityd",
		Short: "SmartHub Ultra identity service",
	}
	root.AddCommand(newServeCommand(), newSweepCommand(), newWatchCommand())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background maintenance sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnvFile(envFile); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)
			slog.SetDefault(logger)

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file loaded before configuration")
	return cmd
}

func newWatchCommand() *cobra.Command {
	var (
		envFile   string
		namespace string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail newly issued credentials in a namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnvFile(envFile); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)
			slog.SetDefault(logger)

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			feed, err := a.Credentials.Watch(ctx, namespace)
			if err != nil {
				return err
			}
			for token := range feed {
				fmt.Printf("%s %s\n", namespace, token)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file loaded before configuration")
	cmd.Flags().StringVar(&namespace, "namespace", "magiclinks", "credential namespace to watch")
	return cmd
}

func newSweepCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one maintenance sweep and print the removal report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.LoadEnvFile(envFile); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg)
			slog.SetDefault(logger)

			a, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			report, err := a.Sweeper.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Println(ui.RenderReport("maintenance sweep", [][2]string{
				{"expired credentials", fmt.Sprintf("%d", report.MagicLinks)},
				{"stale guest users", fmt.Sprintf("%d", report.GuestUsers)},
				{"old sessions", fmt.Sprintf("%d", report.Sessions)},
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "env file loaded before configuration")
	return cmd
}
