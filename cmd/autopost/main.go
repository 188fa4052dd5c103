// Command autopost runs the photo auto-posting service and its operator
// tools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/autopost/internal/boot"
	"github.com/fpang/autopost/internal/config"
	"github.com/fpang/autopost/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "autopost",
	Short: "Post photos from a Drive folder to Instagram on a schedule",
	Long: `autopost picks unposted photos from a Google Drive folder, groups them by
where they were taken, writes a caption with a vision model, and either
publishes the post or queues it for approval.

Settings come from a .env file, an optional autopost.toml, and environment
variables. The schedule itself is edited at runtime through the HTTP API.

Examples:
  autopost serve
  autopost serve --config /etc/autopost.toml
  autopost run-now
  autopost status
  autopost geocode 40.4461 -73.9833
  autopost token exchange <short-lived-token>`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to a TOML config file (default: ./autopost.toml if present)")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadApp resolves settings and wires the process.
func loadApp(ctx context.Context, name string) (*boot.App, error) {
	settings, err := config.Load(configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app, err := boot.New(ctx, settings, name)
	if err != nil {
		return nil, err
	}
	app.Startup.Version(version)
	log.Debug().Str("command", name).Msg("Process wired")
	return app, nil
}
