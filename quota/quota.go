// Package quota tracks YouTube Data API unit spend against the daily cap and
// records per-platform cooldowns after provider-side quota denials. The
// counter resets when the calendar day changes in the provider's canonical
// timezone (Pacific time for YouTube).
package quota

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Documented YouTube Data API v3 unit weights.
const (
	CostSearch = 100
	CostLookup = 1
)

// DefaultDailyCap is the default per-project YouTube quota allotment.
const DefaultDailyCap = 10000

// resetLocation returns the timezone YouTube resets daily quota in.
// Falls back to a fixed PST offset when tzdata is unavailable in the image.
func resetLocation() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		slog.Warn("tzdata unavailable, using fixed PST offset for quota reset", slog.Any("err", err))
		return time.FixedZone("PST", -8*3600)
	}
	return loc
}

// Budget tracks units used within the current reset boundary.
// Safe for concurrent reads from the status endpoint while the sync cycle
// mutates it.
type Budget struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	loc         *time.Location
	cap         int
	used        int
	boundaryKey string
}

// NewBudget returns a budget with the given daily cap. A cap <= 0 falls back
// to DefaultDailyCap. A nil clock uses the real clock.
func NewBudget(dailyCap int, clock clockwork.Clock) *Budget {
	if dailyCap <= 0 {
		dailyCap = DefaultDailyCap
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	b := &Budget{clock: clock, loc: resetLocation(), cap: dailyCap}
	b.boundaryKey = b.currentKey()
	return b
}

func (b *Budget) currentKey() string {
	return b.clock.Now().In(b.loc).Format("2006-01-02")
}

// resetIfBoundaryCrossed zeroes the counter when the reset-boundary key has
// changed. Callers must hold b.mu.
func (b *Budget) resetIfBoundaryCrossed() {
	if key := b.currentKey(); key != b.boundaryKey {
		if b.used > 0 {
			slog.Info("quota boundary crossed, resetting counter",
				slog.String("previous_key", b.boundaryKey),
				slog.String("key", key),
				slog.Int("units_used", b.used))
		}
		b.used = 0
		b.boundaryKey = key
	}
}

// Check reports whether cost units can be spent without exceeding the cap,
// along with the remaining allotment. A false result is a hard pre-check:
// the caller must skip the network call entirely.
func (b *Budget) Check(cost int) (ok bool, remaining int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfBoundaryCrossed()
	remaining = b.cap - b.used
	return cost <= remaining, remaining
}

// Record charges cost units. The request consumes budget whether or not it
// succeeded, so callers record for failed attempts too.
func (b *Budget) Record(cost int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfBoundaryCrossed()
	b.used += cost
}

// Used returns units spent within the current boundary.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfBoundaryCrossed()
	return b.used
}

// Remaining returns the unspent allotment within the current boundary.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetIfBoundaryCrossed()
	return b.cap - b.used
}
