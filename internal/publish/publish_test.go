package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

type fakePhotos struct {
	calls int
	err   error
}

func (f *fakePhotos) DownloadPhoto(ctx context.Context, id string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("raw-" + id), "image/jpeg", nil
}

type fakeTarget struct {
	single   []string
	carousel [][]string
	location string
	err      error
}

func (f *fakeTarget) PostPhoto(ctx context.Context, u, caption, loc string) (string, error) {
	f.single = append(f.single, u)
	f.location = loc
	return "media-single", f.err
}

func (f *fakeTarget) PostCarousel(ctx context.Context, urls []string, caption, loc string) (string, error) {
	f.carousel = append(f.carousel, urls)
	f.location = loc
	return "media-carousel", f.err
}

type fakeStager struct {
	checkErr error
	staged   map[string][]byte
	removed  []string
}

func (f *fakeStager) Check() error { return f.checkErr }

func (f *fakeStager) Stage(ctx context.Context, name string, data []byte) (string, error) {
	if f.staged == nil {
		f.staged = map[string][]byte{}
	}
	f.staged[name] = data
	return "https://public.example/temp/" + name, nil
}

func (f *fakeStager) Remove(ctx context.Context, name string) error {
	f.removed = append(f.removed, name)
	return nil
}

type fakeProber struct {
	err  error
	urls []string
}

func (f *fakeProber) Probe(ctx context.Context, u string) error {
	f.urls = append(f.urls, u)
	return f.err
}

type fakeNotifier struct {
	events []PublishedEvent
}

func (f *fakeNotifier) Published(ctx context.Context, e PublishedEvent) error {
	f.events = append(f.events, e)
	return errors.New("bus unavailable")
}

func newTestPublisher(photos *fakePhotos, target *fakeTarget, stager *fakeStager, prober *fakeProber, notifier Notifier) *Publisher {
	p := New(photos, target, stager, prober, notifier)
	p.compress = func(b []byte) ([]byte, error) { return append([]byte("jpeg:"), b...), nil }
	return p
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("f%d", i)
	}
	return out
}

func TestPublishBatchSizeBeforeNetwork(t *testing.T) {
	for _, n := range []int{0, 11, 15} {
		photos, stager := &fakePhotos{}, &fakeStager{}
		p := newTestPublisher(photos, &fakeTarget{}, stager, &fakeProber{}, nil)

		_, err := p.Publish(context.Background(), ids(n), "cap", "")
		if !errors.Is(err, ErrBatchSize) {
			t.Errorf("n=%d: expected ErrBatchSize, got %v", n, err)
		}
		var bse *BatchSizeError
		if !errors.As(err, &bse) || bse.Count != n {
			t.Errorf("n=%d: expected BatchSizeError with count", n)
		}
		if photos.calls != 0 || len(stager.staged) != 0 {
			t.Errorf("n=%d: network/staging touched before size check", n)
		}
	}
}

func TestPublishConfigErrorBeforeDownload(t *testing.T) {
	photos := &fakePhotos{}
	stager := &fakeStager{checkErr: fmt.Errorf("%w: empty", ErrPublicURL)}
	p := newTestPublisher(photos, &fakeTarget{}, stager, &fakeProber{}, nil)

	if _, err := p.Publish(context.Background(), ids(2), "cap", ""); !errors.Is(err, ErrPublicURL) {
		t.Fatalf("expected ErrPublicURL, got %v", err)
	}
	if photos.calls != 0 {
		t.Error("photos downloaded despite configuration error")
	}
}

func TestPublishSingleAndCarousel(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		wantMedia string
	}{
		{"single", 1, "media-single"},
		{"carousel", 3, "media-carousel"},
		{"max carousel", 10, "media-carousel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, stager, prober, notifier := &fakeTarget{}, &fakeStager{}, &fakeProber{}, &fakeNotifier{}
			p := newTestPublisher(&fakePhotos{}, target, stager, prober, notifier)

			got, err := p.Publish(context.Background(), ids(tt.n), "cap", "loc-1")
			if err != nil {
				t.Fatalf("Publish() error: %v (notifier failures must not fail the post)", err)
			}
			if got != tt.wantMedia {
				t.Errorf("media id = %q, want %q", got, tt.wantMedia)
			}
			if target.location != "loc-1" {
				t.Errorf("location not forwarded")
			}
			if len(prober.urls) != 1 {
				t.Errorf("expected exactly one probe, got %d", len(prober.urls))
			}
			if len(stager.removed) != tt.n {
				t.Errorf("removed %d staged files, want %d", len(stager.removed), tt.n)
			}
			for name, data := range stager.staged {
				if !strings.HasSuffix(name, ".jpg") || !strings.HasPrefix(string(data), "jpeg:raw-") {
					t.Errorf("unexpected staged object %s", name)
				}
			}
			if len(notifier.events) != 1 || notifier.events[0].MediaID != tt.wantMedia {
				t.Errorf("notifier events = %+v", notifier.events)
			}
		})
	}
}

func TestPublishCleansUpOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		prober *fakeProber
		target *fakeTarget
	}{
		{"probe fails", &fakeProber{err: &ProbeError{Kind: ChallengePage}}, &fakeTarget{}},
		{"target fails", &fakeProber{}, &fakeTarget{err: errors.New("OAuthException")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stager := &fakeStager{}
			p := newTestPublisher(&fakePhotos{}, tt.target, stager, tt.prober, nil)
			if _, err := p.Publish(context.Background(), ids(2), "cap", ""); err == nil {
				t.Fatal("expected error")
			}
			if len(stager.removed) != 2 {
				t.Errorf("removed %d, want 2", len(stager.removed))
			}
		})
	}
}

func TestCheckPublicBaseURL(t *testing.T) {
	tests := []struct {
		base string
		ok   bool
	}{
		{"", false},
		{"http://localhost:8000", false},
		{"http://LOCALHOST", false},
		{"http://127.0.0.1:8000", false},
		{"http://127.0.0.2", false},
		{"http://[::1]:8000", false},
		{"not a url", false},
		{"https://photos.example.com", true},
		{"https://abc.trycloudflare.com/", true},
	}
	for _, tt := range tests {
		err := CheckPublicBaseURL(tt.base)
		if tt.ok && err != nil {
			t.Errorf("CheckPublicBaseURL(%q) = %v, want nil", tt.base, err)
		}
		if !tt.ok && !errors.Is(err, ErrPublicURL) {
			t.Errorf("CheckPublicBaseURL(%q) = %v, want ErrPublicURL", tt.base, err)
		}
	}
}

func TestLocalStager(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStager(dir, "https://public.example/")
	if err != nil {
		t.Fatal(err)
	}
	u, err := s.Stage(context.Background(), "abc.jpg", []byte("x"))
	if err != nil {
		t.Fatalf("Stage() error: %v", err)
	}
	if u != "https://public.example/temp/abc.jpg" {
		t.Errorf("url = %q", u)
	}
	if err := s.Remove(context.Background(), "abc.jpg"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(dir + "/abc.jpg"); !os.IsNotExist(err) {
		t.Error("staged file still present")
	}
	if err := s.Remove(context.Background(), "abc.jpg"); err != nil {
		t.Errorf("removing a missing file should succeed, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		wantKind    ProbeKind
		wantErr     bool
	}{
		{"partial image", http.StatusPartialContent, "image/jpeg", 0, false},
		{"full image", http.StatusOK, "image/png", 0, false},
		{"html challenge", http.StatusOK, "text/html; charset=UTF-8", ChallengePage, true},
		{"bad gateway", http.StatusBadGateway, "text/html", TunnelDown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("User-Agent") != CrawlerUserAgent {
					t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
				}
				if r.Header.Get("Range") != "bytes=0-2047" {
					t.Errorf("unexpected range %q", r.Header.Get("Range"))
				}
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := NewProber().Probe(context.Background(), server.URL+"/temp/a.jpg")
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var pe *ProbeError
			if !errors.As(err, &pe) || pe.Kind != tt.wantKind {
				t.Errorf("expected ProbeError kind %v, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestProbeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	u := server.URL
	server.Close()

	var pe *ProbeError
	if err := NewProber().Probe(context.Background(), u); !errors.As(err, &pe) || pe.Kind != TunnelDown || pe.Err == nil {
		t.Errorf("expected TunnelDown with cause, got %v", err)
	}
}

func TestProbeHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	if err := NewProber().ProbeHealth(context.Background(), server.URL+"/"); err != nil {
		t.Errorf("ProbeHealth() error: %v", err)
	}
}

type fakeEventBridge struct {
	input *eventbridge.PutEventsInput
	fail  bool
}

func (f *fakeEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.input = in
	if f.fail {
		return &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries:          []eventbridgetypes.PutEventsResultEntry{{ErrorCode: aws.String("Throttled"), ErrorMessage: aws.String("slow down")}},
		}, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEventBridgeNotifier(t *testing.T) {
	fb := &fakeEventBridge{}
	n := &EventBridgeNotifier{client: fb, busName: "posts"}

	if err := n.Published(context.Background(), PublishedEvent{MediaID: "m1", FileIDs: []string{"a"}}); err != nil {
		t.Fatalf("Published() error: %v", err)
	}
	entry := fb.input.Entries[0]
	if aws.ToString(entry.EventBusName) != "posts" || aws.ToString(entry.DetailType) != eventDetailType {
		t.Errorf("unexpected entry %+v", entry)
	}
	if !strings.Contains(aws.ToString(entry.Detail), `"mediaId":"m1"`) {
		t.Errorf("detail = %s", aws.ToString(entry.Detail))
	}

	fb.fail = true
	if err := n.Published(context.Background(), PublishedEvent{MediaID: "m2"}); err == nil || !strings.Contains(err.Error(), "Throttled") {
		t.Errorf("expected entry failure, got %v", err)
	}
}
