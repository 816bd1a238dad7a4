package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/wcarena/creator-sync/errclass"
)

func newHelixClient(t *testing.T, handlers map[string]http.HandlerFunc) *HelixClient {
	t.Helper()
	mints := 0
	handlers["/oauth2/token"] = mintHandler("app-token", 3600, &mints)
	_, hc := newProviderServer(t, handlers)
	return &HelixClient{
		TokenSource: &TokenSource{ClientID: "cid", ClientSecret: "secret", HTTPClient: hc},
		ClientID:    "cid",
		HTTPClient:  hc,
	}
}

func TestHelix_IsLive(t *testing.T) {
	client := newHelixClient(t, map[string]http.HandlerFunc{
		"/helix/streams": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("user_login"); got != "coolstreamer" {
				t.Errorf("user_login = %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{"type": "live"}},
			})
		},
	})
	live, err := client.IsLive(context.Background(), "coolstreamer")
	if err != nil {
		t.Fatalf("IsLive() error = %v", err)
	}
	if !live {
		t.Error("IsLive() = false, want true")
	}
}

func TestHelix_IsLiveEmptyData(t *testing.T) {
	client := newHelixClient(t, map[string]http.HandlerFunc{
		"/helix/streams": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		},
	})
	live, err := client.IsLive(context.Background(), "offline_person")
	if err != nil {
		t.Fatalf("IsLive() error = %v", err)
	}
	if live {
		t.Error("IsLive() = true, want false")
	}
}

func TestHelix_UnauthorizedInvalidatesToken(t *testing.T) {
	client := newHelixClient(t, map[string]http.HandlerFunc{
		"/helix/streams": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	})
	// Prime the token cache.
	if _, err := client.TokenSource.Get(context.Background()); err != nil {
		t.Fatalf("token priming failed: %v", err)
	}
	if client.TokenSource.TokenOrigin() == "" {
		t.Fatal("expected cached token before the 401")
	}

	_, err := client.IsLive(context.Background(), "anyone")
	if err == nil {
		t.Fatal("IsLive() should surface the 401")
	}
	if !errclass.Is(err, errclass.ClassAuth) {
		t.Errorf("401 should classify as auth, got %s", errclass.ClassOf(err))
	}
	if client.TokenSource.TokenOrigin() != "" {
		t.Error("401 must invalidate the cached token so the next cycle re-mints")
	}
}

func TestHelix_GetUser(t *testing.T) {
	client := newHelixClient(t, map[string]http.HandlerFunc{
		"/helix/users": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{{
					"id":                "42",
					"login":             "coolstreamer",
					"display_name":      "CoolStreamer",
					"description":       "plays old RTS games",
					"profile_image_url": "https://cdn.example/avatar.png",
					"offline_image_url": "https://cdn.example/banner.png",
				}},
			})
		},
	})
	u, err := client.GetUser(context.Background(), "coolstreamer")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.DisplayName != "CoolStreamer" || u.AvatarURL == "" || u.BannerURL == "" {
		t.Errorf("GetUser() = %+v, missing fields", u)
	}
}

func TestHelix_GetUserNotFound(t *testing.T) {
	client := newHelixClient(t, map[string]http.HandlerFunc{
		"/helix/users": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		},
	})
	_, err := client.GetUser(context.Background(), "ghost")
	if err == nil {
		t.Fatal("GetUser() should error for unknown login")
	}
	if !errclass.Is(err, errclass.ClassNotFound) {
		t.Errorf("unknown login should classify as not_found, got %s", errclass.ClassOf(err))
	}
}

func TestHelix_ServerErrorIsTransient(t *testing.T) {
	client := newHelixClient(t, map[string]http.HandlerFunc{
		"/helix/streams": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	})
	_, err := client.IsLive(context.Background(), "anyone")
	if err == nil {
		t.Fatal("IsLive() should surface the 502")
	}
	if !errclass.Is(err, errclass.ClassTransient) {
		t.Errorf("5xx should classify as transient, got %s", errclass.ClassOf(err))
	}
}
