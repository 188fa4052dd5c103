package main

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/fpang/autopost/internal/boot"
	"github.com/fpang/autopost/internal/mcptools"
	"github.com/fpang/autopost/internal/scheduler"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the scheduler tools over MCP on stdio",
	Long: `Runs an MCP server on stdin/stdout exposing schedule_status, run_now,
list_pending, approve_pending, reject_pending, and list_history. Logs go to
stderr so they do not corrupt the protocol stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := loadApp(ctx, "autopost-mcp")
		if err != nil {
			return err
		}

		// run_now ticks run inside this process; no cron entry is installed.
		svc := scheduler.NewService(app.Controller, app.Location)
		defer svc.Stop()

		server := mcptools.NewServer(version, mcptools.Deps{
			Store:    app.Store,
			Trigger:  &configuredTrigger{svc: svc, app: app},
			Approver: app.Controller,
			Status:   app.Status,
		})
		app.Startup.Log()
		return server.Run(ctx, &mcp.StdioTransport{})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// configuredTrigger runs ticks in this process and reads the next fire time
// from the stored schedule, since the cron lives in the serving process.
type configuredTrigger struct {
	svc *scheduler.Service
	app *boot.App
}

func (t *configuredTrigger) TriggerNow() bool { return t.svc.TriggerNow() }

func (t *configuredTrigger) NextRun() *time.Time {
	cfg := t.app.Store.LoadConfig(context.Background()).Value
	return scheduler.NextFire(cfg, t.app.Location, time.Now())
}
