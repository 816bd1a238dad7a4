package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wcarena/creator-sync/syncer"
)

// handleHealthz responds to liveness probe requests by checking database
// connectivity.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz responds to readiness probe requests with detailed checks.
// Cooldowns are reported but never fail readiness: a quota-exhausted service
// still serves its cache.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return s.DB.PingContext(r.Context()) }},
		{"credentials", func() error {
			if !s.TwitchReady && !s.YouTubeReady {
				return fmt.Errorf("no platform credentials configured")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ready",
		"cooldowns": s.cooldownSnapshot(r),
	})
}

type statusResponse struct {
	LastCycle      *syncer.CycleStats   `json:"last_cycle,omitempty"`
	QuotaUsed      int                  `json:"quota_used"`
	QuotaRemaining int                  `json:"quota_remaining"`
	Cooldowns      map[string]time.Time `json:"cooldowns"`
	Twitch         bool                 `json:"twitch_configured"`
	YouTube        bool                 `json:"youtube_configured"`
}

// handleStatus reports the last sync cycle, quota bookkeeping, and cooldown
// windows as JSON for dashboards and operators.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Cooldowns: s.cooldownSnapshot(r),
		Twitch:    s.TwitchReady,
		YouTube:   s.YouTubeReady,
	}
	if s.Scheduler != nil {
		if stats, ok := s.Scheduler.LastCycle(); ok {
			resp.LastCycle = &stats
		}
	}
	if s.Budget != nil {
		resp.QuotaUsed = s.Budget.Used()
		resp.QuotaRemaining = s.Budget.Remaining()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// cooldownSnapshot maps each platform in cooldown to the time its window
// ends. Empty map when nothing is cooling down.
func (s *Server) cooldownSnapshot(r *http.Request) map[string]time.Time {
	out := map[string]time.Time{}
	if s.Cooldowns == nil {
		return out
	}
	for _, platform := range []string{"twitch", "youtube"} {
		if until := s.Cooldowns.Until(r.Context(), platform); !until.IsZero() {
			out[platform] = until
		}
	}
	return out
}
