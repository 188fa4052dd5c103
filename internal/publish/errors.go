package publish

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchSize is matched by every *BatchSizeError.
	ErrBatchSize = errors.New("batch size out of range")

	// ErrPublicURL means the public base URL is unset or points at this machine,
	// so the platform's crawler could never fetch the staged images.
	ErrPublicURL = errors.New("PUBLIC_BASE_URL is not a public URL")
)

// BatchSizeError reports a photo count outside 1..MaxBatch.
type BatchSizeError struct {
	Count int
}

func (e *BatchSizeError) Error() string {
	return fmt.Sprintf("publish requires 1-%d photos, got %d", MaxBatch, e.Count)
}

func (e *BatchSizeError) Unwrap() error { return ErrBatchSize }

// ProbeKind classifies a failed reachability probe.
type ProbeKind int

const (
	// TunnelDown: the URL could not be fetched or returned a non-success status.
	TunnelDown ProbeKind = iota
	// ChallengePage: the URL answered, but not with an image (typically a
	// bot-challenge HTML page served to the crawler).
	ChallengePage
)

func (k ProbeKind) String() string {
	if k == ChallengePage {
		return "challenge_page"
	}
	return "tunnel_down"
}

// ProbeError is returned when the first staged image is not fetchable the
// way the platform's crawler would fetch it.
type ProbeError struct {
	Kind        ProbeKind
	URL         string
	StatusCode  int
	ContentType string
	Err         error
}

func (e *ProbeError) Error() string {
	switch {
	case e.Kind == ChallengePage:
		return fmt.Sprintf("image URL returned Content-Type %q, not an image; a bot-challenge page is likely being served to the crawler (url: %s)", e.ContentType, e.URL)
	case e.Err != nil:
		return fmt.Sprintf("cannot reach image URL %s: %v; check the tunnel is running and PUBLIC_BASE_URL is correct", e.URL, e.Err)
	default:
		return fmt.Sprintf("image URL returned HTTP %d; the tunnel may be down or PUBLIC_BASE_URL is wrong (url: %s)", e.StatusCode, e.URL)
	}
}

func (e *ProbeError) Unwrap() error { return e.Err }
