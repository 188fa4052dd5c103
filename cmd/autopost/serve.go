package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/autopost/internal/api"
	"github.com/fpang/autopost/internal/publish"
	"github.com/fpang/autopost/internal/scheduler"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the in-process scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from PORT or config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := loadApp(ctx, "autopost-serve")
	if err != nil {
		return err
	}
	port := app.Settings.Port
	if portFlag > 0 {
		port = portFlag
	}

	svc := scheduler.NewService(app.Controller, app.Location)
	if err := svc.Start(ctx, app.Store.LoadConfig(ctx).Value); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer svc.Stop()

	deps := api.Deps{
		Store:       app.Store,
		Scheduler:   svc,
		Poster:      app.Controller,
		Status:      app.Status,
		Tokens:      app.Tokens,
		Photos:      app.Drive,
		Composer:    app.Composer,
		Extractor:   app.Extractor,
		CORSOrigins: app.Settings.CORSOrigins,
	}
	if local, ok := app.Stager.(*publish.LocalStager); ok {
		deps.TempDir = local.Dir()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api.NewHandler(deps),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	app.Startup.Config("port", fmt.Sprint(port)).Log()
	log.Info().Int("port", port).Msg("Starting web server")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
