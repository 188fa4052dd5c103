package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect or replace the Instagram access token",
}

var tokenStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored token's expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := loadApp(ctx, "autopost-token")
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(app.Tokens.Status(ctx))
	},
}

var tokenExchangeCmd = &cobra.Command{
	Use:   "exchange <short-lived-token>",
	Short: "Exchange a short-lived token for a long-lived one and store it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := loadApp(ctx, "autopost-token")
		if err != nil {
			return err
		}
		token, err := app.Tokens.Exchange(ctx, args[0])
		if err != nil {
			return err
		}
		st := app.Tokens.Status(ctx)
		preview := token
		if len(preview) > 20 {
			preview = preview[:20] + "…"
		}
		fmt.Printf("Stored token %s", preview)
		if st.DaysLeft != nil {
			fmt.Printf(" (%.1f days left)", *st.DaysLeft)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenStatusCmd, tokenExchangeCmd)
	rootCmd.AddCommand(tokenCmd)
}
