package boot

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/fpang/autopost/internal/config"
)

type fakeSSM struct {
	values    map[string]string
	requested []string
	decrypt   map[string]bool
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	f.requested = append(f.requested, name)
	if f.decrypt == nil {
		f.decrypt = map[string]bool{}
	}
	f.decrypt[name] = aws.ToBool(in.WithDecryption)
	v, ok := f.values[name]
	if !ok {
		return nil, errors.New("ParameterNotFound")
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

func TestLoadSecrets(t *testing.T) {
	client := &fakeSSM{values: map[string]string{
		"/autopost/gemini":   "gem-key",
		"/autopost/ig-token": "ig-token",
	}}
	s := config.Defaults()
	s.InstagramAccessToken = "from-env"
	s.SSM = config.SSM{
		GeminiKeyParam:      "/autopost/gemini",
		InstagramTokenParam: "/autopost/ig-token",
		InstagramUserParam:  "/autopost/ig-user",
	}

	LoadSecrets(context.Background(), client, &s)

	if s.GeminiAPIKey != "gem-key" {
		t.Errorf("GeminiAPIKey = %q, want gem-key", s.GeminiAPIKey)
	}
	if s.InstagramAccessToken != "from-env" {
		t.Errorf("InstagramAccessToken = %q, env value should win", s.InstagramAccessToken)
	}
	if s.InstagramAccountID != "" {
		t.Errorf("InstagramAccountID = %q, want empty on missing parameter", s.InstagramAccountID)
	}
	for _, name := range client.requested {
		if name == "/autopost/ig-token" {
			t.Error("fetched a parameter that was already set")
		}
	}
	if !client.decrypt["/autopost/gemini"] || client.decrypt["/autopost/ig-user"] {
		t.Errorf("decryption flags = %v", client.decrypt)
	}
}
