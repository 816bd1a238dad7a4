// Package testutil provides httptest-based provider mocks and database
// helpers shared across package test suites.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// MockProviderServer mocks Twitch Helix, the Twitch OAuth endpoints, and the
// YouTube Data API behind one path-keyed test server.
type MockProviderServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockProviderServer returns a mock server; unregistered paths 404.
func NewMockProviderServer(t *testing.T) *MockProviderServer {
	t.Helper()
	m := &MockProviderServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Client returns an HTTP client whose transport rewrites every request to
// the mock server, regardless of the hardcoded provider hosts.
func (m *MockProviderServer) Client() *http.Client {
	return &http.Client{Transport: &RewriteTransport{Host: m.URL}}
}

// RewriteTransport redirects all requests to a test server.
type RewriteTransport struct {
	Host string
}

func (t *RewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.Host, "http://")
	return http.DefaultTransport.RoundTrip(req)
}

// MockTokenResponse adds a handler for the Twitch client-credentials mint.
func (m *MockProviderServer) MockTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockValidateResponse adds a handler for the static-token validate call.
// Pass ok=false to reject the token with a 401.
func (m *MockProviderServer) MockValidateResponse(ok bool) {
	m.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"expires_in": 3600}) //nolint:errcheck // test mock response
	}
}

// MockStreamsResponse adds a handler for /helix/streams. Pass an empty slice
// for an offline channel.
func (m *MockProviderServer) MockStreamsResponse(streams []map[string]interface{}) {
	m.Handlers["/helix/streams"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{"data": streams}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockUsersResponse adds a handler for /helix/users.
func (m *MockProviderServer) MockUsersResponse(login, displayName, avatarURL string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"data": []map[string]string{
				{"login": login, "display_name": displayName, "profile_image_url": avatarURL},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockYouTubeSearch adds a handler for the Data API search endpoint. items
// follow the raw API shape: channel resolution reads
// {"snippet": {"channelId": ...}}, live probes only count items.
func (m *MockProviderServer) MockYouTubeSearch(items []map[string]interface{}) {
	m.Handlers["/youtube/v3/search"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{"items": items}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockYouTubeChannels adds a handler for the Data API channels endpoint.
func (m *MockProviderServer) MockYouTubeChannels(title, avatarURL, bannerURL string) {
	m.Handlers["/youtube/v3/channels"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"snippet": map[string]interface{}{
						"title": title,
						"thumbnails": map[string]interface{}{
							"high": map[string]interface{}{"url": avatarURL},
						},
					},
					"brandingSettings": map[string]interface{}{
						"image": map[string]interface{}{"bannerExternalUrl": bannerURL},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
