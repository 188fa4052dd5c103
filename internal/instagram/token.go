package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fpang/autopost/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTokenURL is the Graph OAuth endpoint used for fb_exchange_token.
	DefaultTokenURL = "https://graph.facebook.com/oauth/access_token"

	// refreshThreshold: tokens closer than this to expiry are refreshed.
	refreshThreshold = 7 * 24 * time.Hour

	// defaultExpiresIn applies when the exchange response omits expires_in (60 days).
	defaultExpiresIn = 5_184_000
)

// TokenStore persists the token state document.
type TokenStore interface {
	LoadToken(ctx context.Context) store.LoadResult[store.TokenState]
	SaveToken(ctx context.Context, t store.TokenState) error
}

// TokenStatus is the summary shown by the token-status endpoint.
type TokenStatus struct {
	Status    string   `json:"status"` // ok, expired, unknown
	ExpiresAt *int64   `json:"expires_at"`
	DaysLeft  *float64 `json:"days_left"`
	Valid     bool     `json:"valid"`
}

// TokenManager hands out the publish token, refreshing it when it is close
// to expiry. The stored document wins over the fallback token from config.
type TokenManager struct {
	store     TokenStore
	fallback  string
	appID     string
	appSecret string

	httpClient *http.Client
	tokenURL   string
	now        func() time.Time

	mu sync.Mutex
}

var _ TokenProvider = (*TokenManager)(nil)

// NewTokenManager creates a TokenManager. fallback is used (with unknown
// expiry) when no token document has been written yet.
func NewTokenManager(st TokenStore, fallback, appID, appSecret string) *TokenManager {
	return &TokenManager{
		store:      st,
		fallback:   fallback,
		appID:      appID,
		appSecret:  appSecret,
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokenURL:   DefaultTokenURL,
		now:        time.Now,
	}
}

// current returns the stored token, or the fallback with unknown expiry.
func (m *TokenManager) current(ctx context.Context) store.TokenState {
	res := m.store.LoadToken(ctx)
	if res.Status == store.Present && res.Value.AccessToken != "" {
		return res.Value
	}
	return store.TokenState{AccessToken: m.fallback}
}

// Token returns a usable access token. A token with known expiry inside the
// refresh window is exchanged for a fresh one first; if that fails the old
// token is returned and the failure logged.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.current(ctx)
	if st.AccessToken == "" {
		return "", fmt.Errorf("no Instagram access token: set INSTAGRAM_ACCESS_TOKEN or exchange a token")
	}

	if st.ExpiresAt > 0 {
		left := time.Unix(st.ExpiresAt, 0).Sub(m.now())
		if left < refreshThreshold {
			log.Info().Float64("daysLeft", left.Hours()/24).Msg("Instagram token close to expiry, refreshing")
			refreshed, err := m.exchange(ctx, st.AccessToken)
			if err != nil {
				log.Warn().Err(err).Msg("Token auto-refresh failed, using existing token")
				return st.AccessToken, nil
			}
			return refreshed, nil
		}
	}
	return st.AccessToken, nil
}

// Exchange trades a short-lived user token for a long-lived one and stores it.
func (m *TokenManager) Exchange(ctx context.Context, shortLived string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exchange(ctx, shortLived)
}

// Status summarizes the stored token.
func (m *TokenManager) Status(ctx context.Context) TokenStatus {
	st := m.current(ctx)
	if st.ExpiresAt == 0 {
		return TokenStatus{Status: "unknown", Valid: st.AccessToken != ""}
	}
	days := time.Unix(st.ExpiresAt, 0).Sub(m.now()).Hours() / 24
	days = math.Round(days*10) / 10
	status := "ok"
	if days <= 0 {
		status = "expired"
	}
	expiresAt := st.ExpiresAt
	return TokenStatus{
		Status:    status,
		ExpiresAt: &expiresAt,
		DaysLeft:  &days,
		Valid:     status == "ok",
	}
}

type exchangeResponse struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int64   `json:"expires_in"`
	Error       *apiErr `json:"error,omitempty"`
}

// exchange calls fb_exchange_token and persists the result. Caller holds mu.
func (m *TokenManager) exchange(ctx context.Context, token string) (string, error) {
	if m.appID == "" || m.appSecret == "" {
		return "", fmt.Errorf("token exchange requires FACEBOOK_APP_ID and FACEBOOK_APP_SECRET")
	}

	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {m.appID},
		"client_secret":     {m.appSecret},
		"fb_exchange_token": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.tokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed (status %d): %s", resp.StatusCode, truncate(string(body), 300))
	}

	var result exchangeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if result.Error != nil {
		return "", result.Error
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("no access token in response: %s", truncate(string(body), 300))
	}
	if result.ExpiresIn <= 0 {
		result.ExpiresIn = defaultExpiresIn
	}

	state := store.TokenState{
		AccessToken: result.AccessToken,
		ExpiresAt:   m.now().Unix() + result.ExpiresIn,
	}
	if err := m.store.SaveToken(ctx, state); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	log.Info().Int64("expiresInDays", result.ExpiresIn/86400).Msg("Long-lived Instagram token saved")
	return result.AccessToken, nil
}
