// Package syncer drives the periodic sync cycle: every eligible creator gets
// a live-status check and a profile refresh per linked platform, with
// per-creator failure isolation so one bad row never poisons the batch.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wcarena/creator-sync/profile"
	"github.com/wcarena/creator-sync/quota"
	"github.com/wcarena/creator-sync/resolver"
	"github.com/wcarena/creator-sync/status"
	"github.com/wcarena/creator-sync/telemetry"
)

const (
	DefaultInterval     = 5 * time.Minute
	DefaultCreatorDelay = 1 * time.Second
)

// Creator is one row of the creators table, as loaded for a sync cycle.
type Creator struct {
	ID            int64
	Name          string
	YouTubeURL    string
	TwitchURL     string
	YouTubeGames  []string
	TwitchGames   []string
	YouTubeIsLive bool
	TwitchIsLive  bool
	LastChecked   time.Time
}

// link returns the stored channel input for the platform, empty when the
// creator has not linked it or has no target games configured for it.
func (c Creator) link(platform resolver.Platform) string {
	switch platform {
	case resolver.PlatformYouTube:
		if len(c.YouTubeGames) == 0 {
			return ""
		}
		return c.YouTubeURL
	case resolver.PlatformTwitch:
		if len(c.TwitchGames) == 0 {
			return ""
		}
		return c.TwitchURL
	}
	return ""
}

func (c Creator) liveFlag(platform resolver.Platform) bool {
	if platform == resolver.PlatformYouTube {
		return c.YouTubeIsLive
	}
	return c.TwitchIsLive
}

// CreatorStore is the persistence surface the scheduler needs. Implemented
// by db.Store.
type CreatorStore interface {
	ListEligibleCreators(ctx context.Context) ([]Creator, error)
	SetCreatorLive(ctx context.Context, id int64, platform string, live bool) error
	TouchLastChecked(ctx context.Context, id int64) error
	RecordCycleRun(ctx context.Context, at time.Time) error
}

// StatusChecker is implemented by status.Checker.
type StatusChecker interface {
	Check(ctx context.Context, ref resolver.Ref) status.Result
}

// ProfileFetcher is implemented by profile.Fetcher.
type ProfileFetcher interface {
	Fetch(ctx context.Context, platform resolver.Platform, raw string) profile.Data
}

// CycleStats summarizes one sync cycle for logging and the status endpoint.
type CycleStats struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Checked     int           `json:"checked"`
	LiveYouTube int           `json:"live_youtube"`
	LiveTwitch  int           `json:"live_twitch"`
	Degraded    int           `json:"degraded"`
	Errors      int           `json:"errors"`
	Skipped     bool          `json:"skipped,omitempty"` // previous cycle still running
}

// Scheduler runs sync cycles sequentially at a fixed interval.
type Scheduler struct {
	Store    CreatorStore
	Checker  StatusChecker
	Profiles ProfileFetcher
	Budget   *quota.Budget

	Interval     time.Duration
	CreatorDelay time.Duration
	Logger       *slog.Logger

	inFlight atomic.Bool
	mu       sync.Mutex
	last     CycleStats
	hasRun   bool
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default().With(slog.String("component", "syncer"))
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

// LastCycle returns the most recent cycle's stats, false before the first
// cycle completes.
func (s *Scheduler) LastCycle() (CycleStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasRun
}

// Start runs an immediate cycle and then loops on a ticker until ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger().Info("sync job starting", slog.Duration("interval", s.interval()))
	s.RunCycle(ctx)
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger().Info("sync job stopped")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle checks every eligible creator once, sequentially. A cycle that
// overlaps a still-running one is skipped rather than queued.
func (s *Scheduler) RunCycle(ctx context.Context) CycleStats {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger().Warn("sync cycle still in flight, skipping tick")
		return CycleStats{Skipped: true}
	}
	defer s.inFlight.Store(false)

	corrID := uuid.NewString()
	ctx = telemetry.WithCorrelation(ctx, corrID)
	ctx, span := telemetry.StartSpan(ctx, "syncer", "sync.cycle")
	defer span.End()
	log := s.logger().With(slog.String("correlation_id", corrID))

	stats := CycleStats{StartedAt: time.Now()}
	creators, err := s.Store.ListEligibleCreators(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("list eligible creators", slog.Any("err", err))
		stats.Errors++
		s.finish(ctx, log, &stats)
		return stats
	}

	for i, c := range creators {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && s.CreatorDelay > 0 {
			select {
			case <-ctx.Done():
				s.finish(ctx, log, &stats)
				return stats
			case <-time.After(s.CreatorDelay):
			}
		}
		s.syncCreator(ctx, log, c, &stats)
		stats.Checked++
	}

	s.finish(ctx, log, &stats)
	return stats
}

// syncCreator handles one creator end to end. Panics are contained here so
// the rest of the batch still runs.
func (s *Scheduler) syncCreator(ctx context.Context, log *slog.Logger, c Creator, stats *CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Errors++
			telemetry.CreatorErrors.Inc()
			log.Error("creator sync panicked",
				slog.Int64("creator_id", c.ID),
				slog.String("creator", c.Name),
				slog.Any("panic", r))
		}
	}()

	for _, platform := range []resolver.Platform{resolver.PlatformTwitch, resolver.PlatformYouTube} {
		raw := c.link(platform)
		if raw == "" {
			continue
		}
		s.syncPlatform(ctx, log, c, platform, raw, stats)
	}

	if err := s.Store.TouchLastChecked(ctx, c.ID); err != nil {
		stats.Errors++
		telemetry.CreatorErrors.Inc()
		log.Warn("touch last_checked", slog.Int64("creator_id", c.ID), slog.Any("err", err))
	}
}

func (s *Scheduler) syncPlatform(ctx context.Context, log *slog.Logger, c Creator, platform resolver.Platform, raw string, stats *CycleStats) {
	ref, err := resolver.Resolve(platform, raw)
	if err != nil {
		stats.Errors++
		telemetry.CreatorErrors.Inc()
		log.Warn("unresolvable channel link",
			slog.Int64("creator_id", c.ID),
			slog.String("platform", string(platform)),
			slog.String("input", raw))
		return
	}

	res := s.Checker.Check(ctx, ref)
	telemetry.CreatorsChecked.Inc()
	if res.State == status.StateDegraded {
		stats.Degraded++
	}
	live := res.Bool()
	if live {
		switch platform {
		case resolver.PlatformYouTube:
			stats.LiveYouTube++
		case resolver.PlatformTwitch:
			stats.LiveTwitch++
		}
	}

	// Only changed flags hit the database.
	if live != c.liveFlag(platform) {
		if err := s.Store.SetCreatorLive(ctx, c.ID, string(platform), live); err != nil {
			stats.Errors++
			telemetry.CreatorErrors.Inc()
			log.Warn("persist live flag",
				slog.Int64("creator_id", c.ID),
				slog.String("platform", string(platform)),
				slog.Any("err", err))
		} else {
			log.Info("creator live state changed",
				slog.Int64("creator_id", c.ID),
				slog.String("creator", c.Name),
				slog.String("platform", string(platform)),
				slog.Bool("live", live))
		}
	}

	// Keeps the persistent profile cache warm; the fetcher's TTL makes this
	// a no-op most cycles.
	if s.Profiles != nil {
		s.Profiles.Fetch(ctx, platform, raw)
	}
}

func (s *Scheduler) finish(ctx context.Context, log *slog.Logger, stats *CycleStats) {
	stats.Duration = time.Since(stats.StartedAt)

	telemetry.SyncCycles.Inc()
	telemetry.CycleDuration.Observe(stats.Duration.Seconds())
	telemetry.LiveCreators.WithLabelValues("youtube").Set(float64(stats.LiveYouTube))
	telemetry.LiveCreators.WithLabelValues("twitch").Set(float64(stats.LiveTwitch))
	if s.Budget != nil {
		telemetry.QuotaUnitsUsed.Set(float64(s.Budget.Used()))
	}

	if err := s.Store.RecordCycleRun(ctx, stats.StartedAt); err != nil {
		log.Debug("record cycle breadcrumb", slog.Any("err", err))
	}

	s.mu.Lock()
	s.last = *stats
	s.hasRun = true
	s.mu.Unlock()

	log.Info("sync cycle finished",
		slog.Int("checked", stats.Checked),
		slog.Int("live_youtube", stats.LiveYouTube),
		slog.Int("live_twitch", stats.LiveTwitch),
		slog.Int("degraded", stats.Degraded),
		slog.Int("errors", stats.Errors),
		slog.Duration("took", stats.Duration))
}

// String implements fmt.Stringer for ad hoc logging.
func (st CycleStats) String() string {
	return fmt.Sprintf("checked=%d live_yt=%d live_tw=%d degraded=%d errors=%d took=%s",
		st.Checked, st.LiveYouTube, st.LiveTwitch, st.Degraded, st.Errors, st.Duration)
}
