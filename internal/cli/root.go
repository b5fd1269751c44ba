package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwizi/permit-tracker/internal/app"
	"github.com/dwizi/permit-tracker/internal/config"
)

const version = "0.1.0"

func NewRoot(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "permit-tracker",
		Short: "Permit Tracker watches Recreation.gov permits and alerts over chat",
	}

	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newScanOnceCommand(logger))
	root.AddCommand(newChatCommand(logger))
	root.AddCommand(newExportCommand(logger))
	root.AddCommand(newVersionCommand())

	return root
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scanner, chat connectors and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			runtime, err := app.New(cfg, version, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runtime.Run(ctx)
		},
	}
}

func newScanOnceCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "scan-once",
		Short: "Run one availability scan against the configured store and exit",
		Long:  "Runs a single scan and prints its report. With the badger driver the server must not be running, since badger holds a directory lock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			runtime, err := app.New(cfg, version, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			report, err := runtime.ScanOnce(ctx)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(report)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
