// Package s3util holds the small set of S3 calls used to stage images for
// publishing. It works against AWS S3 or an S3-compatible endpoint such as
// Cloudflare R2.
package s3util

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options select the endpoint and credentials. Empty fields fall back to
// the default AWS credential chain and endpoint.
type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewClient builds an S3 client. When AccessKey is set static credentials
// are used; when Endpoint is set, path-style requests go to that endpoint.
func NewClient(ctx context.Context, base *aws.Config, opts Options) (*s3.Client, error) {
	var cfg aws.Config
	if base != nil && opts.AccessKey == "" {
		cfg = base.Copy()
	} else {
		loadOpts := []func(*awsconfig.LoadOptions) error{}
		if opts.AccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
		}
		var err error
		cfg, err = awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
	}

	region := opts.Region
	if region == "" && opts.Endpoint != "" && cfg.Region == "" {
		region = "auto"
	}
	if region != "" {
		cfg.Region = region
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
