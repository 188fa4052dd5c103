// Package boot builds every component from resolved settings. The CLI and
// both Lambda entry points share it so they run the same wiring.
package boot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/autopost/internal/auth"
	"github.com/fpang/autopost/internal/caption"
	"github.com/fpang/autopost/internal/config"
	"github.com/fpang/autopost/internal/geocode"
	"github.com/fpang/autopost/internal/instagram"
	"github.com/fpang/autopost/internal/logging"
	"github.com/fpang/autopost/internal/media"
	"github.com/fpang/autopost/internal/photostore"
	"github.com/fpang/autopost/internal/publish"
	"github.com/fpang/autopost/internal/s3util"
	"github.com/fpang/autopost/internal/scheduler"
	"github.com/fpang/autopost/internal/store"
)

// stagingPrefix is the key prefix for images staged in a bucket.
const stagingPrefix = "staging/"

// App is the wired process.
type App struct {
	Settings *config.Settings
	Location *time.Location
	AWS      *aws.Config // nil when no AWS integration is configured

	Store      *store.Store
	Drive      *photostore.Drive
	Extractor  *media.Extractor
	Composer   *caption.Composer
	Tokens     *instagram.TokenManager
	Instagram  *instagram.Client
	Stager     publish.Stager
	Prober     *publish.Prober
	Publisher  *publish.Publisher
	Controller *scheduler.Controller
	Status     *scheduler.StatusReporter

	Startup *logging.StartupLogger
}

// New wires the process named name. Startup problems that make the process
// useless are returned; optional integrations that are not configured are
// logged and left disabled.
func New(ctx context.Context, s *config.Settings, name string) (*App, error) {
	initStart := time.Now()
	sl := logging.NewStartupLogger(name)
	app := &App{Settings: s, Startup: sl}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", s.Timezone, err)
	}
	app.Location = loc
	sl.Config("timezone", loc.String())

	var awsCfg *aws.Config
	if s.NeedsAWS() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
		awsCfg = &cfg
		app.AWS = awsCfg
		if s.SSM != (config.SSM{}) {
			LoadSecrets(ctx, ssm.NewFromConfig(cfg), s)
			sl.SSMParam("geminiKey", s.SSM.GeminiKeyParam).
				SSMParam("instagramToken", s.SSM.InstagramTokenParam).
				SSMParam("instagramUser", s.SSM.InstagramUserParam)
		}
	}

	// --- Store ---
	switch s.StoreBackend {
	case config.StoreDynamo:
		app.Store = store.New(store.NewDynamoBackend(dynamodb.NewFromConfig(*awsCfg), s.DynamoTable))
		sl.Backend("store", "dynamo:"+s.DynamoTable)
	default:
		app.Store = store.New(store.NewFileBackend(s.DataDir))
		sl.Backend("store", "file:"+s.DataDir)
	}

	// --- Photo source ---
	creds, err := photostore.LoadCredentials(s.GoogleServiceAccountJSON, s.GoogleServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("google service account: %w", err)
	}
	app.Drive, err = photostore.NewDrive(ctx, creds)
	if err != nil {
		return nil, err
	}
	sl.Backend("photos", "drive")

	app.Extractor = media.NewExtractor(geocode.NewNominatim())

	// --- Captions ---
	gen, err := captionBackend(ctx, s, awsCfg)
	if err != nil {
		return nil, err
	}
	app.Composer = caption.NewComposer(gen)
	if b := app.Composer.Backend(); b != "" {
		sl.Backend("caption", b)
	}
	sl.Feature("captions", gen != nil)

	// --- Publish target ---
	app.Tokens = instagram.NewTokenManager(app.Store, s.InstagramAccessToken, s.FacebookAppID, s.FacebookAppSecret)
	app.Instagram = instagram.NewClient(app.Tokens, s.InstagramAccountID)
	sl.Feature("instagram", app.Instagram.Configured())
	sl.Feature("tokenExchange", s.FacebookAppID != "" && s.FacebookAppSecret != "")
	if !app.Instagram.Configured() {
		log.Warn().Msg("INSTAGRAM_ACCOUNT_ID not set, publishing will fail")
	}

	app.Stager, err = newStager(ctx, s, awsCfg)
	if err != nil {
		return nil, err
	}
	sl.Backend("stager", s.Stager)

	var notifier publish.Notifier
	if s.EventBusName != "" {
		notifier = publish.NewEventBridgeNotifier(eventbridge.NewFromConfig(*awsCfg), s.EventBusName)
		sl.Backend("events", "eventbridge:"+s.EventBusName)
	}
	sl.Feature("events", notifier != nil)

	app.Prober = publish.NewProber()
	app.Publisher = publish.New(app.Drive, app.Instagram, app.Stager, app.Prober, notifier)

	// --- Scheduler ---
	app.Controller = scheduler.NewController(scheduler.Deps{
		Store:     app.Store,
		Photos:    app.Drive,
		Extractor: app.Extractor,
		Composer:  app.Composer,
		Publisher: app.Publisher,
		Places:    app.Instagram,
	})
	app.Status = scheduler.NewStatusReporter(app.Controller, app.Tokens, app.Prober, app.Stager, app.Drive)

	sl.Config("publicBaseUrl", s.PublicBaseURL)
	sl.InitDuration(time.Since(initStart))
	return app, nil
}

// captionBackend returns the configured generator, or nil when none is
// configured. An invalid Gemini key stops startup; transient validation
// failures are only logged.
func captionBackend(ctx context.Context, s *config.Settings, awsCfg *aws.Config) (caption.Generator, error) {
	var gemini, bedrock caption.Generator

	if s.GeminiAPIKey != "" {
		model := s.GeminiModel
		if model == "" {
			model = caption.DefaultGeminiModel
		}
		g, err := caption.NewGeminiGenerator(ctx, s.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		if err := auth.ValidateAPIKey(ctx, g.Client(), model); err != nil {
			var verr *auth.ValidationError
			if errors.As(err, &verr) && verr.Type == auth.ErrTypeInvalidKey {
				return nil, fmt.Errorf("gemini: %w", err)
			}
			log.Warn().Err(err).Msg("Gemini key could not be validated, continuing")
		} else {
			log.Info().Str("model", model).Msg("Gemini API key validated")
		}
		gemini = g
	}
	if s.BedrockModelID != "" && awsCfg != nil {
		bedrock = caption.NewBedrockGenerator(bedrockruntime.NewFromConfig(*awsCfg), s.BedrockModelID)
	}

	gen, err := caption.Select(gemini, bedrock)
	if errors.Is(err, caption.ErrNoBackend) {
		log.Warn().Err(err).Msg("Captions disabled")
		return nil, nil
	}
	return gen, err
}

func newStager(ctx context.Context, s *config.Settings, awsCfg *aws.Config) (publish.Stager, error) {
	if s.Stager != config.StagerS3 {
		stager, err := publish.NewLocalStager(s.TempDir, s.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		if err := stager.Check(); err != nil {
			log.Warn().Err(err).Msg("Public base URL is not usable, publishing will fail until it is set")
		}
		return stager, nil
	}

	client, err := s3util.NewClient(ctx, awsCfg, s3util.Options{
		Endpoint:  s.S3.Endpoint,
		Region:    s.S3.Region,
		AccessKey: s.S3.AccessKey,
		SecretKey: s.S3.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	// S3-compatible providers generally reject object tagging.
	tagged := s.S3.Endpoint == ""
	return publish.NewS3Stager(client, s.S3.Bucket, stagingPrefix, tagged), nil
}
