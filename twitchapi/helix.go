package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wcarena/creator-sync/errclass"
)

const helixBase = "https://api.twitch.tv/helix"

// defaultHTTPClient bounds every provider call; a hung call surfaces as a
// transient error the retry policy owns.
var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

// UserProfile carries the descriptive fields the profile fetcher persists.
type UserProfile struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	AvatarURL   string `json:"profile_image_url"`
	BannerURL   string `json:"offline_image_url"`
}

// HelixClient provides the two Helix lookups the sync subsystem needs:
// live-stream presence and user profiles.
type HelixClient struct {
	TokenSource *TokenSource
	ClientID    string
	HTTPClient  *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return defaultHTTPClient
}

// do issues an authenticated Helix GET and classifies provider failures.
// A 401 invalidates the cached app token so the next cycle re-mints.
func (hc *HelixClient) do(ctx context.Context, path string, query map[string]string, out any) error {
	tok, err := hc.TokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, helixBase+path, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := hc.http().Do(req)
	if err != nil {
		return errclass.Transient(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusUnauthorized:
		hc.TokenSource.Invalidate()
		b, _ := io.ReadAll(resp.Body)
		return errclass.Newf(errclass.ClassAuth, "helix %s: 401 unauthorized: %s", path, string(b))
	case resp.StatusCode == http.StatusTooManyRequests:
		return errclass.Newf(errclass.ClassQuota, "helix %s: 429 rate limited", path)
	case resp.StatusCode == http.StatusNotFound:
		return errclass.Newf(errclass.ClassNotFound, "helix %s: 404", path)
	case resp.StatusCode >= 500:
		return errclass.Newf(errclass.ClassTransient, "helix %s: %s", path, resp.Status)
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("helix %s: %s: %s", path, resp.Status, string(b))
	}
}

// IsLive reports whether the login currently has a live stream.
func (hc *HelixClient) IsLive(ctx context.Context, login string) (bool, error) {
	if login == "" {
		return false, errclass.Malformed(fmt.Errorf("empty twitch login"))
	}
	var body struct {
		Data []struct {
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := hc.do(ctx, "/streams", map[string]string{"user_login": login}, &body); err != nil {
		return false, err
	}
	return len(body.Data) > 0, nil
}

// GetUser fetches the profile for a login. A login Helix does not know yields
// a not-found error, which callers cache as a negative result.
func (hc *HelixClient) GetUser(ctx context.Context, login string) (UserProfile, error) {
	if login == "" {
		return UserProfile{}, errclass.Malformed(fmt.Errorf("empty twitch login"))
	}
	var body struct {
		Data []UserProfile `json:"data"`
	}
	if err := hc.do(ctx, "/users", map[string]string{"login": login}, &body); err != nil {
		return UserProfile{}, err
	}
	if len(body.Data) == 0 {
		return UserProfile{}, errclass.Newf(errclass.ClassNotFound, "twitch user %q not found", login)
	}
	return body.Data[0], nil
}
