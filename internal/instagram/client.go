// Package instagram provides a client for the Instagram Graph API content
// publishing endpoints used by the poster: single-image posts, carousels of
// 2-10 images, place lookup by coordinates, and long-lived token upkeep.
//
// Publishing is a multi-step process:
//  1. Create media containers (one per image, fetched by Instagram from a public URL)
//  2. For carousels: create a parent container referencing the child containers
//  3. Wait for each container to report FINISHED
//  4. Publish the container
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the Graph API base URL.
	DefaultBaseURL = "https://graph.facebook.com/v21.0"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	// MinCarouselItems and MaxCarouselItems bound a carousel.
	MinCarouselItems = 2
	MaxCarouselItems = 10

	// Container readiness polling.
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 60 * time.Second

	// locationSearchRadius is the place-search distance in meters.
	locationSearchRadius = 1000
)

// TokenProvider returns the access token to use for the next call.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider with a fixed token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// Client provides methods for publishing to Instagram via the Graph API.
type Client struct {
	httpClient   *http.Client
	tokens       TokenProvider
	userID       string
	baseURL      string
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewClient creates an Instagram API client for the given business account.
func NewClient(tokens TokenProvider, userID string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout},
		tokens:       tokens,
		userID:       userID,
		baseURL:      DefaultBaseURL,
		pollInterval: defaultPollInterval,
		maxWait:      defaultMaxWait,
	}
}

// Configured reports whether an account id is set.
func (c *Client) Configured() bool {
	return c != nil && c.userID != ""
}

// --- API response types ---

// apiResponse is the generic Graph API response.
type apiResponse struct {
	ID    string  `json:"id"`
	Error *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id,omitempty"`
}

// containerStatusResponse is the response from GET /{container_id}?fields=status_code.
type containerStatusResponse struct {
	ID         string  `json:"id"`
	StatusCode string  `json:"status_code"` // IN_PROGRESS, FINISHED, ERROR
	Error      *apiErr `json:"error,omitempty"`
}

type placeSearchResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
	Error *apiErr `json:"error,omitempty"`
}

// --- Container creation ---

// CreateImageContainer creates a carousel child container for one image.
// imageURL must be publicly reachable by Instagram's crawler.
func (c *Client) CreateImageContainer(ctx context.Context, imageURL string) (string, error) {
	params := url.Values{
		"image_url":        {imageURL},
		"is_carousel_item": {"true"},
	}
	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("create image container: %w", err)
	}
	log.Debug().Str("containerId", resp.ID).Msg("Carousel item container created")
	return resp.ID, nil
}

// CreateSingleImagePost creates a single-image post container with caption.
func (c *Client) CreateSingleImagePost(ctx context.Context, imageURL, caption, locationID string) (string, error) {
	params := url.Values{
		"image_url": {imageURL},
		"caption":   {caption},
	}
	if locationID != "" {
		params.Set("location_id", locationID)
	}
	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("create single image post: %w", err)
	}
	return resp.ID, nil
}

// CreateCarouselContainer creates a carousel container from child container IDs.
func (c *Client) CreateCarouselContainer(ctx context.Context, children []string, caption, locationID string) (string, error) {
	if len(children) < MinCarouselItems {
		return "", fmt.Errorf("carousel requires at least %d items, got %d", MinCarouselItems, len(children))
	}
	if len(children) > MaxCarouselItems {
		return "", fmt.Errorf("carousel supports at most %d items, got %d", MaxCarouselItems, len(children))
	}

	params := url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {caption},
	}
	if locationID != "" {
		params.Set("location_id", locationID)
	}
	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("create carousel container: %w", err)
	}
	return resp.ID, nil
}

// --- Publishing ---

// Publish publishes a ready container and returns the media id of the post.
func (c *Client) Publish(ctx context.Context, containerID string) (string, error) {
	log.Debug().Str("containerId", containerID).Msg("Publishing container")
	params := url.Values{"creation_id": {containerID}}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/media_publish", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("publish container %s: %w", containerID, err)
	}
	log.Info().Str("containerId", containerID).Str("mediaId", resp.ID).Msg("Container published successfully")
	return resp.ID, nil
}

// PostPhoto creates, waits for, and publishes a single-image post.
func (c *Client) PostPhoto(ctx context.Context, imageURL, caption, locationID string) (string, error) {
	containerID, err := c.CreateSingleImagePost(ctx, imageURL, caption, locationID)
	if err != nil {
		return "", err
	}
	if err := c.WaitForContainer(ctx, containerID); err != nil {
		return "", err
	}
	return c.Publish(ctx, containerID)
}

// PostCarousel creates and waits for each child, then the parent, then
// publishes. The item count is checked before any request is made.
func (c *Client) PostCarousel(ctx context.Context, imageURLs []string, caption, locationID string) (string, error) {
	if len(imageURLs) < MinCarouselItems || len(imageURLs) > MaxCarouselItems {
		return "", fmt.Errorf("carousel requires %d-%d images, got %d", MinCarouselItems, MaxCarouselItems, len(imageURLs))
	}

	children := make([]string, 0, len(imageURLs))
	for i, u := range imageURLs {
		id, err := c.CreateImageContainer(ctx, u)
		if err != nil {
			return "", fmt.Errorf("carousel item %d: %w", i+1, err)
		}
		if err := c.WaitForContainer(ctx, id); err != nil {
			return "", fmt.Errorf("carousel item %d: %w", i+1, err)
		}
		children = append(children, id)
	}

	parentID, err := c.CreateCarouselContainer(ctx, children, caption, locationID)
	if err != nil {
		return "", err
	}
	if err := c.WaitForContainer(ctx, parentID); err != nil {
		return "", err
	}
	return c.Publish(ctx, parentID)
}

// --- Status polling ---

// ContainerStatus returns the processing status of a media container:
// "IN_PROGRESS", "FINISHED", or "ERROR".
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (string, error) {
	params := url.Values{"fields": {"status_code"}}
	var status containerStatusResponse
	if err := c.getJSON(ctx, "/"+containerID, params, &status); err != nil {
		return "", fmt.Errorf("container status: %w", err)
	}
	if status.Error != nil {
		return "", status.Error
	}
	return status.StatusCode, nil
}

// WaitForContainer polls at a fixed interval until the container is
// FINISHED, reports ERROR, or the maximum wait elapses.
func (c *Client) WaitForContainer(ctx context.Context, containerID string) error {
	var waited time.Duration
	last := ""
	for waited < c.maxWait {
		status, err := c.ContainerStatus(ctx, containerID)
		if err != nil {
			return fmt.Errorf("container %s: %w", containerID, err)
		}
		last = status
		switch status {
		case "FINISHED":
			log.Debug().Str("containerId", containerID).Msg("Container processing finished")
			return nil
		case "ERROR":
			return fmt.Errorf("container %s: processing failed on Instagram's side (status=ERROR)", containerID)
		}
		log.Debug().Str("containerId", containerID).Str("status", status).Dur("nextPoll", c.pollInterval).Msg("Container still processing")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
		waited += c.pollInterval
	}
	return fmt.Errorf("container %s not ready after %s (last status: %s)", containerID, c.maxWait, last)
}

// --- Place search ---

// SearchLocation returns the id of the nearest place to the coordinates,
// or "" when none is found. It is best effort: errors are logged and
// reported as "".
func (c *Client) SearchLocation(ctx context.Context, lat, lng float64) string {
	params := url.Values{
		"type":     {"place"},
		"center":   {fmt.Sprintf("%f,%f", lat, lng)},
		"distance": {fmt.Sprint(locationSearchRadius)},
		"fields":   {"id,name"},
	}
	var resp placeSearchResponse
	if err := c.getJSON(ctx, "/search", params, &resp); err != nil {
		log.Warn().Err(err).Float64("lat", lat).Float64("lng", lng).Msg("Place search failed")
		return ""
	}
	if resp.Error != nil {
		log.Warn().Err(resp.Error).Msg("Place search returned an error")
		return ""
	}
	if len(resp.Data) == 0 {
		return ""
	}
	log.Debug().Str("locationId", resp.Data[0].ID).Str("name", resp.Data[0].Name).Msg("Place found")
	return resp.Data[0].ID
}

// --- Internal helpers ---

func (e *apiErr) Error() string {
	return fmt.Sprintf("Instagram API error: %s (type: %s, code: %d)", e.Message, e.Type, e.Code)
}

// postForm sends a form-encoded POST and decodes the id response.
func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}
	params.Set("access_token", token)

	startTime := time.Now()
	log.Debug().Str("method", http.MethodPost).Str("path", endpoint).Msg("Instagram API request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Instagram API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w (body: %s)", httpResp.StatusCode, err, truncate(string(body), 200))
	}
	if resp.Error != nil {
		log.Error().Str("errorMessage", resp.Error.Message).Str("errorType", resp.Error.Type).Int("errorCode", resp.Error.Code).Msg("Instagram API error")
		return nil, resp.Error
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("unexpected response (status %d): no ID returned (body: %s)", httpResp.StatusCode, truncate(string(body), 200))
	}
	return &resp, nil
}

// getJSON sends a GET with the access token and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	params.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode >= 400 {
		var wrapped apiResponse
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil {
			return wrapped.Error
		}
		return fmt.Errorf("status %d: %s", httpResp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response (status %d): %w (body: %s)", httpResp.StatusCode, err, truncate(string(body), 200))
	}
	return nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
