package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/dwizi/permit-tracker/internal/adminclient"
	"github.com/dwizi/permit-tracker/internal/config"
	"github.com/dwizi/permit-tracker/internal/tracking"
)

type exportDocument struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Lists      []tracking.List `json:"lists"`
}

type trackingLister interface {
	TrackingLists(ctx context.Context) ([]tracking.List, error)
}

func newExportCommand(logger *slog.Logger) *cobra.Command {
	var (
		outPath    string
		timeoutSec int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every tracking list to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, err := adminclient.New(cfg)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
			defer cancel()
			count, err := exportTrackingLists(ctx, client, outPath, time.Now())
			if err != nil {
				return err
			}
			logger.Info("tracking lists exported", "path", outPath, "count", count)
			cmd.Printf("exported %d tracking list(s) to %s\n", count, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "permit-tracker-export.json", "destination file")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 60, "request timeout in seconds")
	return cmd
}

// exportTrackingLists replaces path in one step so a reader never sees a
// partial export.
func exportTrackingLists(ctx context.Context, lister trackingLister, path string, now time.Time) (int, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, fmt.Errorf("output path is required")
	}
	lists, err := lister.TrackingLists(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch tracking lists: %w", err)
	}
	if lists == nil {
		lists = []tracking.List{}
	}
	payload, err := json.MarshalIndent(exportDocument{
		ExportedAt: now.UTC(),
		Count:      len(lists),
		Lists:      lists,
	}, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(append(payload, '\n'))); err != nil {
		return 0, fmt.Errorf("write export: %w", err)
	}
	return len(lists), nil
}
