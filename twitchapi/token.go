// Package twitchapi contains the Twitch app-token lifecycle and minimal Helix
// helpers for live-status and profile lookups, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/endpoints"

	"github.com/wcarena/creator-sync/errclass"
)

const validateURL = "https://id.twitch.tv/oauth2/validate"

// tokenSafetyMargin is the minimum remaining lifetime a cached token must
// have to be handed out, so callers never race the provider-side expiry.
// Applied exactly once, at read time in Get.
const tokenSafetyMargin = 60 * time.Second

// Origin records how the cached token was obtained.
type Origin string

const (
	OriginStatic Origin = "static"
	OriginMinted Origin = "minted"
)

// TokenSource fetches and caches a Twitch app access (client credentials)
// token. A pre-provisioned StaticToken is validated once against the
// validation endpoint and reused when accepted, avoiding an unnecessary mint.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	StaticToken  string
	HTTPClient   *http.Client

	mu            sync.Mutex
	token         string
	expiresAt     time.Time
	origin        Origin
	staticChecked bool
}

// Get returns a valid (fresh or cached) app access token. Missing credentials
// yield an auth-classified error, permanent until configuration changes.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Until(ts.expiresAt) > tokenSafetyMargin {
		return ts.token, nil
	}

	if ts.StaticToken != "" && !ts.staticChecked {
		ts.staticChecked = true
		lifetime, err := ts.validate(ctx, ts.StaticToken)
		if err == nil {
			ts.token = ts.StaticToken
			ts.expiresAt = time.Now().Add(lifetime)
			ts.origin = OriginStatic
			slog.Info("pre-provisioned twitch token validated", slog.Duration("lifetime", lifetime))
			return ts.token, nil
		}
		slog.Warn("pre-provisioned twitch token rejected, minting", slog.Any("err", err))
	}

	return ts.mint(ctx)
}

// Invalidate clears the cached token so the next Get re-mints. Callers
// receiving a 401 with this token must call it; the current check still
// degrades and the next cycle benefits from the fresh token.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" {
		slog.Info("twitch token invalidated", slog.String("origin", string(ts.origin)))
	}
	ts.token = ""
	ts.expiresAt = time.Time{}
}

// TokenOrigin reports how the currently cached token was obtained (empty when
// no token is cached).
func (ts *TokenSource) TokenOrigin() Origin {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token == "" {
		return ""
	}
	return ts.origin
}

func (ts *TokenSource) http() *http.Client {
	if ts.HTTPClient != nil {
		return ts.HTTPClient
	}
	return defaultHTTPClient
}

// validate checks a token against the validation endpoint and returns its
// remaining lifetime. The safety margin is applied once, at read time in Get;
// tokens already inside the margin are rejected here as not worth caching.
func (ts *TokenSource) validate(ctx context.Context, token string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validateURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "OAuth "+token)
	resp, err := ts.http().Do(req)
	if err != nil {
		return 0, errclass.Transient(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return 0, errclass.Newf(errclass.ClassAuth, "twitch token validation failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		ExpiresIn int `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	lifetime := time.Duration(body.ExpiresIn) * time.Second
	if lifetime <= tokenSafetyMargin {
		return 0, errclass.Newf(errclass.ClassAuth, "twitch token expires in %ds, below safety margin", body.ExpiresIn)
	}
	return lifetime, nil
}

// mint performs the client-credentials exchange and caches the result; the
// safety margin is applied at read time in Get. Callers hold ts.mu.
func (ts *TokenSource) mint(ctx context.Context) (string, error) {
	if ts.ClientID == "" || ts.ClientSecret == "" {
		return "", errclass.Auth(errors.New("missing client id/secret for twitch app token"))
	}
	cc := &clientcredentials.Config{
		ClientID:     ts.ClientID,
		ClientSecret: ts.ClientSecret,
		TokenURL:     endpoints.Twitch.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if ts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, ts.HTTPClient)
	}
	tok, err := cc.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("twitch token request failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token in twitch response")
	}
	// oauth2 already folds expires_in into Expiry; the margin is applied at
	// read time in Get.
	ts.token = tok.AccessToken
	ts.expiresAt = tok.Expiry
	ts.origin = OriginMinted
	return ts.token, nil
}
