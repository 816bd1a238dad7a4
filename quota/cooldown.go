package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wcarena/creator-sync/telemetry"
)

// DefaultCooldownWindow is how long a platform is skipped after a
// provider-side quota denial.
const DefaultCooldownWindow = time.Hour

// CooldownStore persists exhaustion timestamps so a restart inside the window
// does not re-burn quota. Implemented by the db package on the kv table.
type CooldownStore interface {
	GetCooldown(ctx context.Context, platform string) (time.Time, error)
	SetCooldown(ctx context.Context, platform string, exhaustedAt time.Time) error
}

// CooldownTracker records when a platform reported quota exhaustion and
// answers whether the cooldown window is still active. While active, no real
// network call for that platform is attempted.
type CooldownTracker struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	window time.Duration
	store  CooldownStore
	marks  map[string]time.Time
	loaded map[string]bool
}

// NewCooldownTracker returns a tracker with the given window (<= 0 uses the
// default). store may be nil for purely in-memory tracking.
func NewCooldownTracker(window time.Duration, clock clockwork.Clock, store CooldownStore) *CooldownTracker {
	if window <= 0 {
		window = DefaultCooldownWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CooldownTracker{
		clock:  clock,
		window: window,
		store:  store,
		marks:  make(map[string]time.Time),
		loaded: make(map[string]bool),
	}
}

// MarkExhausted records quota exhaustion for the platform as of now and
// persists it best-effort.
func (c *CooldownTracker) MarkExhausted(ctx context.Context, platform string) {
	now := c.clock.Now()
	c.mu.Lock()
	c.marks[platform] = now
	c.loaded[platform] = true
	c.mu.Unlock()
	telemetry.SetCooldown(platform, true)
	slog.Warn("platform quota exhausted, entering cooldown",
		slog.String("platform", platform),
		slog.Duration("window", c.window))
	if c.store != nil {
		if err := c.store.SetCooldown(ctx, platform, now); err != nil {
			slog.Warn("cooldown persist failed", slog.String("platform", platform), slog.Any("err", err))
		}
	}
}

// Active reports whether the platform is still inside its cooldown window.
func (c *CooldownTracker) Active(ctx context.Context, platform string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	mark, ok := c.marks[platform]
	if !ok && !c.loaded[platform] && c.store != nil {
		// First lookup after boot: hydrate from the persisted timestamp.
		if t, err := c.store.GetCooldown(ctx, platform); err == nil && !t.IsZero() {
			c.marks[platform] = t
			mark, ok = t, true
		}
		c.loaded[platform] = true
	}
	if !ok {
		return false
	}
	active := c.clock.Now().Sub(mark) < c.window
	if !active {
		telemetry.SetCooldown(platform, false)
	}
	return active
}

// Until returns when the platform's cooldown ends, or the zero time when no
// cooldown is active.
func (c *CooldownTracker) Until(ctx context.Context, platform string) time.Time {
	if !c.Active(ctx, platform) {
		return time.Time{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marks[platform].Add(c.window)
}
