package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fpang/autopost/internal/scheduler"
)

var runNowCmd = &cobra.Command{
	Use:   "run-now",
	Short: "Run one scheduled tick in the foreground and print the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := loadApp(ctx, "autopost-run")
		if err != nil {
			return err
		}
		app.Startup.Log()

		outcome, err := app.Controller.Run(ctx)
		fmt.Printf("Outcome: %s\n", outcome)
		return err
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the pre-flight checks as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := loadApp(ctx, "autopost-status")
		if err != nil {
			return err
		}

		cfg := app.Store.LoadConfig(ctx).Value
		next := scheduler.NextFire(cfg, app.Location, time.Now())
		report := app.Status.Report(ctx, next)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.AllOK {
			return fmt.Errorf("%d check(s) failing", failing(report))
		}
		return nil
	},
}

func failing(r scheduler.Report) int {
	n := 0
	for _, c := range r.Checks {
		if !c.OK {
			n++
		}
	}
	return n
}

func init() {
	rootCmd.AddCommand(runNowCmd, statusCmd)
}
