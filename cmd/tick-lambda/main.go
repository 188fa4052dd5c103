// Package main provides the Lambda entry point for scheduled ticks.
//
// An EventBridge rule invokes this function on the configured cadence, and
// the API Lambda sends a "RunRequested" event for manual runs. Every
// invocation runs exactly one tick; the event payload is only logged.
//
// State lives in DynamoDB and images are staged in S3 (see boot for the
// environment variables).
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/autopost/internal/boot"
	"github.com/fpang/autopost/internal/config"
	"github.com/fpang/autopost/internal/logging"
	"github.com/fpang/autopost/internal/scheduler"
)

var controller *scheduler.Controller

func init() {
	os.Setenv("AUTOPOST_LOG_FORMAT", "json")
	logging.Init()

	settings, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	app, err := boot.New(context.Background(), settings, "tick-lambda")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	controller = app.Controller
	app.Startup.Log()
}

type tickResult struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func handler(ctx context.Context, event events.CloudWatchEvent) (tickResult, error) {
	log.Info().
		Str("source", event.Source).
		Str("detailType", event.DetailType).
		Str("eventId", event.ID).
		Msg("Tick invoked")

	outcome, err := controller.Run(ctx)
	res := tickResult{Outcome: outcome.String()}
	if err != nil {
		// Reported in the result rather than returned so EventBridge does
		// not retry a tick that may already have published.
		res.Error = err.Error()
	}
	return res, nil
}

func main() {
	lambda.Start(handler)
}
