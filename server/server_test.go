package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wcarena/creator-sync/quota"
)

// unreachableDB opens a handle that fails on first use, for probing the
// failure paths without a live Postgres.
func unreachableDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("pgx", "postgres://nobody@127.0.0.1:1/nope?sslmode=disable&connect_timeout=1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHealthz_UnreachableDB(t *testing.T) {
	s := &Server{DB: unreachableDB(t)}
	rr := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReadyz_NoCredentials(t *testing.T) {
	s := &Server{DB: unreachableDB(t)}
	rr := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "database", body["failed_check"])
}

func TestStatus_ReportsQuotaAndCooldowns(t *testing.T) {
	clock := clockwork.NewFakeClock()
	budget := quota.NewBudget(1000, clock)
	budget.Record(quota.CostSearch)
	cooldowns := quota.NewCooldownTracker(time.Hour, clock, nil)
	cooldowns.MarkExhausted(context.Background(), "youtube")

	s := &Server{
		DB:           unreachableDB(t),
		Budget:       budget,
		Cooldowns:    cooldowns,
		TwitchReady:  true,
		YouTubeReady: true,
	}
	rr := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 100, resp.QuotaUsed)
	assert.Equal(t, 900, resp.QuotaRemaining)
	assert.Contains(t, resp.Cooldowns, "youtube")
	assert.NotContains(t, resp.Cooldowns, "twitch")
	assert.Nil(t, resp.LastCycle)
	assert.True(t, resp.Twitch)
}

func TestRequestSpanCarriesHTTPStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	s := &Server{DB: unreachableDB(t)}
	rr := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	var status int64 = -1
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "http.status_code" {
			status = attr.Value.AsInt64()
		}
	}
	assert.Equal(t, int64(http.StatusServiceUnavailable), status)
	assert.Equal(t, codes.Error, spans[0].Status().Code, "5xx responses must mark the span errored")
}

func TestCorrelationIDHeader(t *testing.T) {
	s := &Server{DB: unreachableDB(t)}
	mux := s.NewMux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"), "generated when absent")

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	mux.ServeHTTP(rr, req)
	assert.Equal(t, "corr-123", rr.Header().Get("X-Correlation-ID"), "reused when provided")
}

func TestMetricsEndpoint(t *testing.T) {
	s := &Server{DB: unreachableDB(t)}
	rr := httptest.NewRecorder()
	s.NewMux().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
