package boot

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/autopost/internal/config"
)

// ParameterGetter is the SSM call LoadSecrets needs.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadSecrets fills secrets that are not already set from SSM Parameter
// Store. Values set in the environment or config file win. A missing
// parameter is logged and leaves the setting empty.
func LoadSecrets(ctx context.Context, client ParameterGetter, s *config.Settings) {
	fetch(ctx, client, s.SSM.GeminiKeyParam, true, &s.GeminiAPIKey)
	fetch(ctx, client, s.SSM.InstagramTokenParam, true, &s.InstagramAccessToken)
	fetch(ctx, client, s.SSM.InstagramUserParam, false, &s.InstagramAccountID)
}

func fetch(ctx context.Context, client ParameterGetter, param string, secure bool, dst *string) {
	if param == "" || *dst != "" {
		return
	}
	start := time.Now()
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(param),
		WithDecryption: aws.Bool(secure),
	})
	if err != nil {
		log.Warn().Err(err).Str("param", param).Msg("SSM parameter not loaded")
		return
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		log.Warn().Str("param", param).Msg("SSM parameter has no value")
		return
	}
	*dst = *out.Parameter.Value
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Loaded from SSM")
}
