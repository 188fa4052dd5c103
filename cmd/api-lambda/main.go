// Package main provides the Lambda entry point for the HTTP API behind API
// Gateway (HTTP API, payload v2).
//
// There is no in-process cron here: ticks are driven by an EventBridge rule
// that invokes the tick Lambda. Saving the schedule only updates the stored
// config, and run-now sends a "RunRequested" event to the same bus.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/autopost/internal/api"
	"github.com/fpang/autopost/internal/boot"
	"github.com/fpang/autopost/internal/config"
	"github.com/fpang/autopost/internal/logging"
)

var adapter *httpadapter.HandlerAdapterV2

func init() {
	os.Setenv("AUTOPOST_LOG_FORMAT", "json")
	logging.Init()

	ctx := context.Background()
	settings, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	app, err := boot.New(ctx, settings, "api-lambda")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	trigger := &eventTrigger{store: app.Store, loc: app.Location, bus: settings.EventBusName}
	if app.AWS != nil && settings.EventBusName != "" {
		trigger.client = eventbridge.NewFromConfig(*app.AWS)
	} else {
		log.Warn().Msg("AUTOPOST_EVENT_BUS not set, run-now is disabled")
	}

	handler := api.NewHandler(api.Deps{
		Store:       app.Store,
		Scheduler:   trigger,
		Poster:      app.Controller,
		Status:      app.Status,
		Tokens:      app.Tokens,
		Photos:      app.Drive,
		Composer:    app.Composer,
		Extractor:   app.Extractor,
		CORSOrigins: settings.CORSOrigins,
	})
	adapter = httpadapter.NewV2(handler)

	app.Startup.Feature("runNow", trigger.client != nil).Log()
}

func main() {
	lambda.Start(adapter.ProxyWithContext)
}
