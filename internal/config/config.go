// Package config resolves process settings. Sources are applied in order,
// later ones winning:
//
//  1. built-in defaults
//  2. a .env file in the working directory (if present)
//  3. an optional TOML file (autopost.toml or the --config flag)
//  4. environment variables
//
// Schedule settings (cadence, folder, tone...) are NOT here: they live in the
// durable store and are edited at runtime through the API.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// DefaultFile is the TOML file read when no explicit path is given.
const DefaultFile = "autopost.toml"

// Store backends.
const (
	StoreFile   = "file"
	StoreDynamo = "dynamo"
)

// Stagers.
const (
	StagerLocal = "local"
	StagerS3    = "s3"
)

// S3 holds the staging bucket settings. Endpoint is set for S3-compatible
// providers such as Cloudflare R2; leave empty for AWS.
type S3 struct {
	Bucket    string `toml:"bucket"`
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// SSM holds Parameter Store paths for secrets. Empty paths are skipped.
type SSM struct {
	GeminiKeyParam      string `toml:"gemini_key_param"`
	InstagramTokenParam string `toml:"instagram_token_param"`
	InstagramUserParam  string `toml:"instagram_user_param"`
}

// Settings is the resolved process configuration.
type Settings struct {
	Port          int      `toml:"port"`
	DataDir       string   `toml:"data_dir"`
	TempDir       string   `toml:"temp_dir"`
	PublicBaseURL string   `toml:"public_base_url"`
	Timezone      string   `toml:"timezone"`
	CORSOrigins   []string `toml:"cors_origins"`

	StoreBackend string `toml:"store_backend"`
	DynamoTable  string `toml:"dynamo_table"`

	Stager string `toml:"stager"`
	S3     S3     `toml:"s3"`

	GeminiAPIKey   string `toml:"gemini_api_key"`
	GeminiModel    string `toml:"gemini_model"`
	BedrockModelID string `toml:"bedrock_model_id"`

	GoogleServiceAccountJSON string `toml:"google_service_account_json"`
	GoogleServiceAccountFile string `toml:"google_service_account_file"`

	InstagramAccountID   string `toml:"instagram_account_id"`
	InstagramAccessToken string `toml:"instagram_access_token"`
	FacebookAppID        string `toml:"facebook_app_id"`
	FacebookAppSecret    string `toml:"facebook_app_secret"`

	EventBusName string `toml:"event_bus_name"`
	SSM          SSM    `toml:"ssm"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Port:         8000,
		DataDir:      "data",
		TempDir:      filepath.Join(os.TempDir(), "autoinstapost"),
		Timezone:     "Local",
		CORSOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
		StoreBackend: StoreFile,
		Stager:       StagerLocal,
	}
}

// Load resolves settings. path may be empty, in which case DefaultFile is
// read if it exists. An explicit path that does not exist is an error.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to parse .env file")
	}

	s := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Config file loaded")
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := s.applyEnv(); err != nil {
		return nil, err
	}
	s.PublicBaseURL = strings.TrimRight(s.PublicBaseURL, "/")
	return &s, s.Validate()
}

// Validate rejects combinations that cannot start.
func (s *Settings) Validate() error {
	switch s.StoreBackend {
	case StoreFile:
	case StoreDynamo:
		if s.DynamoTable == "" {
			return fmt.Errorf("store backend %q requires AUTOPOST_DYNAMO_TABLE", s.StoreBackend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", s.StoreBackend)
	}
	switch s.Stager {
	case StagerLocal:
	case StagerS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("stager %q requires AUTOPOST_S3_BUCKET", s.Stager)
		}
	default:
		return fmt.Errorf("unknown stager %q", s.Stager)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (s *Settings) NeedsAWS() bool {
	return s.StoreBackend == StoreDynamo ||
		(s.Stager == StagerS3 && s.S3.Endpoint == "") ||
		s.BedrockModelID != "" ||
		s.EventBusName != "" ||
		s.SSM != (SSM{})
}

func (s *Settings) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		s.Port = port
	}
	str("AUTOPOST_DATA_DIR", &s.DataDir)
	str("AUTOPOST_TEMP_DIR", &s.TempDir)
	str("PUBLIC_BASE_URL", &s.PublicBaseURL)
	str("AUTOPOST_TIMEZONE", &s.Timezone)
	if v := os.Getenv("AUTOPOST_CORS_ORIGINS"); v != "" {
		s.CORSOrigins = splitList(v)
	}

	str("AUTOPOST_STORE", &s.StoreBackend)
	str("AUTOPOST_DYNAMO_TABLE", &s.DynamoTable)

	str("AUTOPOST_STAGER", &s.Stager)
	str("AUTOPOST_S3_BUCKET", &s.S3.Bucket)
	str("AUTOPOST_S3_ENDPOINT", &s.S3.Endpoint)
	str("AUTOPOST_S3_REGION", &s.S3.Region)
	str("AUTOPOST_S3_ACCESS_KEY", &s.S3.AccessKey)
	str("AUTOPOST_S3_SECRET_KEY", &s.S3.SecretKey)

	str("GEMINI_API_KEY", &s.GeminiAPIKey)
	str("GEMINI_MODEL", &s.GeminiModel)
	str("BEDROCK_MODEL_ID", &s.BedrockModelID)

	str("GOOGLE_SERVICE_ACCOUNT_JSON", &s.GoogleServiceAccountJSON)
	str("GOOGLE_SERVICE_ACCOUNT_FILE", &s.GoogleServiceAccountFile)

	str("INSTAGRAM_ACCOUNT_ID", &s.InstagramAccountID)
	str("INSTAGRAM_ACCESS_TOKEN", &s.InstagramAccessToken)
	str("FACEBOOK_APP_ID", &s.FacebookAppID)
	str("FACEBOOK_APP_SECRET", &s.FacebookAppSecret)

	str("AUTOPOST_EVENT_BUS", &s.EventBusName)
	str("SSM_GEMINI_KEY_PARAM", &s.SSM.GeminiKeyParam)
	str("SSM_INSTAGRAM_TOKEN_PARAM", &s.SSM.InstagramTokenParam)
	str("SSM_INSTAGRAM_USER_ID_PARAM", &s.SSM.InstagramUserParam)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
