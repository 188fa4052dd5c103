package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// CrawlerUserAgent is what the platform's image fetcher sends.
	CrawlerUserAgent = "facebookexternalhit/1.1 (+http://www.facebook.com/externalhit_uatext.php)"

	probeTimeout  = 12 * time.Second
	probeRange    = "bytes=0-2047"
	healthTimeout = 6 * time.Second
)

// Prober fetches a URL the way the platform's crawler does.
type Prober struct {
	httpClient *http.Client
}

// NewProber creates a Prober. Redirects are followed.
func NewProber() *Prober {
	return &Prober{httpClient: &http.Client{Timeout: probeTimeout}}
}

// Probe GETs the first 2 KB of imageURL with the crawler user agent and
// requires a 200/206 answer with an image content type.
func (p *Prober) Probe(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return &ProbeError{Kind: TunnelDown, URL: imageURL, Err: err}
	}
	req.Header.Set("User-Agent", CrawlerUserAgent)
	req.Header.Set("Range", probeRange)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &ProbeError{Kind: TunnelDown, URL: imageURL, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &ProbeError{Kind: TunnelDown, URL: imageURL, StatusCode: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return &ProbeError{Kind: ChallengePage, URL: imageURL, StatusCode: resp.StatusCode, ContentType: ct}
	}
	return nil
}

// ProbeHealth checks that {base}/health answers 200 within a short timeout.
func (p *Prober) ProbeHealth(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	u := strings.TrimRight(base, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach %s: %w", u, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d", u, resp.StatusCode)
	}
	return nil
}
