package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/welldanyogia/webrana-inbox-backend/internal/app"
	"github.com/welldanyogia/webrana-inbox-backend/internal/config"
	"github.com/welldanyogia/webrana-inbox-backend/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "inboxctl",
	Short: "Shared inbox administration tool",
	Long: `inboxctl manages an inbox installation: database migrations,
team domains and replaying stored inbound webhook payloads.

Configuration is read from the same environment variables as the server.`,
	Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withComponents loads configuration, builds the shared components and
// closes them after fn returns.
func withComponents(ctx context.Context, fn func(c *app.Components) error) error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	c, err := app.Build(ctx, cfg, logger, metrics.New())
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}
