// Package telemetry provides Prometheus metrics, tracing setup, and
// correlation-id aware logging helpers for the sync subsystem.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	SyncCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creator_sync_cycles_total",
		Help: "Number of sync cycles run",
	})
	CreatorsChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creator_sync_creators_checked_total",
		Help: "Number of creators processed across all cycles",
	})
	CreatorErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "creator_sync_creator_errors_total",
		Help: "Number of creators whose processing failed unexpectedly",
	})
	ChecksDegraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creator_sync_checks_degraded_total",
		Help: "Live checks that degraded to not-live instead of confirming",
	}, []string{"platform"})
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creator_sync_provider_calls_total",
		Help: "Outbound provider API calls by platform and endpoint",
	}, []string{"platform", "endpoint"})
	ProfileCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "creator_sync_profile_cache_hits_total",
		Help: "Profile fetches served from the persistent cache",
	}, []string{"platform"})

	// Histograms (seconds)
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "creator_sync_cycle_duration_seconds",
		Help:    "Full sync cycle duration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// Gauges
	QuotaUnitsUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "creator_sync_youtube_quota_units_used",
		Help: "YouTube quota units spent within the current reset boundary",
	})
	CooldownActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "creator_sync_cooldown_active",
		Help: "Platform cooldown active=1 inactive=0",
	}, []string{"platform"})
	LiveCreators = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "creator_sync_live_creators",
		Help: "Creators confirmed live in the most recent cycle",
	}, []string{"platform"})
)

// SetCooldown sets the per-platform cooldown gauge.
func SetCooldown(platform string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	CooldownActive.WithLabelValues(platform).Set(v)
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
