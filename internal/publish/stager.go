package publish

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fpang/autopost/internal/s3util"
	"github.com/rs/zerolog/log"
)

// Stager makes prepared JPEGs reachable at a public URL for the duration
// of one publish.
type Stager interface {
	// Check fails fast on configuration that can never work.
	Check() error
	// Stage stores data under name and returns its public URL.
	Stage(ctx context.Context, name string, data []byte) (string, error)
	// Remove deletes a staged object. Missing objects are not an error.
	Remove(ctx context.Context, name string) error
}

// --- Local directory served at {base}/temp/{name} ---

// LocalStager writes files into a directory that the HTTP server exposes
// under /temp/.
type LocalStager struct {
	dir     string
	baseURL string
}

var _ Stager = (*LocalStager)(nil)

// NewLocalStager creates the staging directory if needed.
func NewLocalStager(dir, publicBaseURL string) (*LocalStager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &LocalStager{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir is the directory the HTTP server should serve at /temp/.
func (l *LocalStager) Dir() string { return l.dir }

// BaseURL is the configured public base URL without a trailing slash.
func (l *LocalStager) BaseURL() string { return l.baseURL }

func (l *LocalStager) Check() error {
	return CheckPublicBaseURL(l.baseURL)
}

func (l *LocalStager) Stage(_ context.Context, name string, data []byte) (string, error) {
	path := filepath.Join(l.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write staged image: %w", err)
	}
	return l.baseURL + "/temp/" + url.PathEscape(filepath.Base(name)), nil
}

func (l *LocalStager) Remove(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(l.dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// CheckPublicBaseURL rejects an empty base URL and any that resolves to
// this machine by name or loopback address.
func CheckPublicBaseURL(base string) error {
	if strings.TrimSpace(base) == "" {
		return fmt.Errorf("%w: it is empty; start a tunnel (for example cloudflared) and set PUBLIC_BASE_URL to its URL", ErrPublicURL)
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute URL", ErrPublicURL, base)
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("%w: %q points at localhost; set it to the tunnel URL", ErrPublicURL, base)
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return fmt.Errorf("%w: %q is a loopback address; set it to the tunnel URL", ErrPublicURL, base)
	}
	return nil
}

// --- S3 / R2 bucket with presigned URLs ---

// S3Stager uploads to a bucket and hands out presigned GET URLs.
type S3Stager struct {
	objects s3util.ObjectAPI
	presign s3util.Presigner
	bucket  string
	prefix  string
	expiry  time.Duration
	tagged  bool
}

var _ Stager = (*S3Stager)(nil)

// NewS3Stager stages under prefix in bucket. tagged enables object tagging,
// which R2 does not support.
func NewS3Stager(client *s3.Client, bucket, prefix string, tagged bool) *S3Stager {
	return &S3Stager{
		objects: client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		expiry:  time.Hour,
		tagged:  tagged,
	}
}

func (s *S3Stager) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Stager) Check() error {
	if s.bucket == "" {
		return fmt.Errorf("S3 staging requires AUTOPOST_S3_BUCKET")
	}
	return nil
}

func (s *S3Stager) Stage(ctx context.Context, name string, data []byte) (string, error) {
	key := s.key(name)
	if err := s3util.PutBytes(ctx, s.objects, s.bucket, key, "image/jpeg", data, s.tagged); err != nil {
		return "", err
	}
	u, err := s3util.GeneratePresignedURL(ctx, s.presign, s.bucket, key, s.expiry)
	if err != nil {
		return "", err
	}
	log.Debug().Str("key", key).Msg("Image staged in bucket")
	return u, nil
}

func (s *S3Stager) Remove(ctx context.Context, name string) error {
	return s3util.Delete(ctx, s.objects, s.bucket, s.key(name))
}
