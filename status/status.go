// Package status determines whether a channel is currently live. Each check
// walks the same gates in order (credentials, quota, cooldown, network) and
// degrades to a typed not-live result at the first one that fails, so a
// single creator's failure can never abort a batch. The confirmed/degraded
// distinction is kept internally for logs and tests and collapsed to a bool
// at the public boundary.
package status

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wcarena/creator-sync/errclass"
	"github.com/wcarena/creator-sync/quota"
	"github.com/wcarena/creator-sync/resolver"
	"github.com/wcarena/creator-sync/retry"
	"github.com/wcarena/creator-sync/telemetry"
)

// State records whether the result came from the provider or from a degrade
// gate.
type State string

const (
	StateConfirmed State = "confirmed"
	StateDegraded  State = "degraded"
)

// Result is the outcome of one live-status check.
type Result struct {
	Live   bool
	State  State
	Reason string // degrade reason, empty when confirmed
}

// Bool collapses the result at the public boundary: degraded checks read as
// not live.
func (r Result) Bool() bool { return r.Live }

func confirmed(live bool) Result { return Result{Live: live, State: StateConfirmed} }

func degraded(reason string) Result { return Result{State: StateDegraded, Reason: reason} }

// TwitchLiveClient is implemented by twitchapi.HelixClient.
type TwitchLiveClient interface {
	IsLive(ctx context.Context, login string) (bool, error)
}

// YouTubeLiveClient is implemented by youtubeapi.Client.
type YouTubeLiveClient interface {
	IsLive(ctx context.Context, channelID string) (bool, error)
}

// Checker runs live-status checks for both platforms. Nil provider clients
// mean that platform's credentials are absent; its checks degrade instead of
// erroring, and other platforms proceed.
type Checker struct {
	Twitch    TwitchLiveClient
	YouTube   YouTubeLiveClient
	Budget    *quota.Budget
	Cooldowns *quota.CooldownTracker
	Resolver  *resolver.Resolver
	Retry     retry.Policy
	Logger    *slog.Logger
}

func (c *Checker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Check resolves the reference's platform and runs the matching state
// machine. It never returns an error: every failure mode collapses to a
// degraded not-live result.
func (c *Checker) Check(ctx context.Context, ref resolver.Ref) Result {
	var res Result
	switch ref.Platform {
	case resolver.PlatformTwitch:
		res = c.checkTwitch(ctx, ref)
	case resolver.PlatformYouTube:
		res = c.checkYouTube(ctx, ref)
	default:
		res = degraded(fmt.Sprintf("unknown platform %q", ref.Platform))
	}
	if res.State == StateDegraded {
		telemetry.ChecksDegraded.WithLabelValues(string(ref.Platform)).Inc()
		c.logger().Debug("live check degraded",
			slog.String("platform", string(ref.Platform)),
			slog.String("value", ref.Value),
			slog.String("reason", res.Reason))
	}
	return res
}

func (c *Checker) checkTwitch(ctx context.Context, ref resolver.Ref) Result {
	if c.Twitch == nil {
		return degraded("twitch credentials not configured")
	}
	if c.Cooldowns.Active(ctx, string(resolver.PlatformTwitch)) {
		return degraded("twitch cooldown active")
	}

	live, err := retry.Do(ctx, c.Retry, func() (bool, error) {
		telemetry.ProviderCalls.WithLabelValues("twitch", "streams").Inc()
		return c.Twitch.IsLive(ctx, ref.Value)
	})
	if err != nil {
		// A 401 already invalidated the cached token inside the Helix
		// client; this check stays false and the next cycle re-mints.
		if errclass.Is(err, errclass.ClassQuota) {
			c.Cooldowns.MarkExhausted(ctx, string(resolver.PlatformTwitch))
		}
		return degraded(fmt.Sprintf("twitch check failed: %v", err))
	}
	return confirmed(live)
}

func (c *Checker) checkYouTube(ctx context.Context, ref resolver.Ref) Result {
	if c.YouTube == nil {
		return degraded("youtube api key not configured")
	}
	if c.Cooldowns.Active(ctx, string(resolver.PlatformYouTube)) {
		return degraded("youtube cooldown active")
	}

	// Name resolution may itself spend quota; its failure degrades the
	// check rather than surfacing.
	channelID, err := c.Resolver.ChannelID(ctx, ref)
	if err != nil {
		if errclass.Is(err, errclass.ClassQuota) {
			c.Cooldowns.MarkExhausted(ctx, string(resolver.PlatformYouTube))
		}
		return degraded(fmt.Sprintf("youtube resolution failed: %v", err))
	}

	if ok, remaining := c.Budget.Check(quota.CostSearch); !ok {
		return degraded(fmt.Sprintf("youtube quota budget exhausted (remaining %d units)", remaining))
	}

	live, err := retry.Do(ctx, c.Retry, func() (bool, error) {
		telemetry.ProviderCalls.WithLabelValues("youtube", "search").Inc()
		live, callErr := c.YouTube.IsLive(ctx, channelID)
		// The request consumes budget whether or not it succeeded.
		c.Budget.Record(quota.CostSearch)
		return live, callErr
	})
	if err != nil {
		// Provider-side 403 outranks local bookkeeping: mark the cooldown
		// immediately even when the local counter shows headroom.
		if errclass.Is(err, errclass.ClassQuota) {
			c.Cooldowns.MarkExhausted(ctx, string(resolver.PlatformYouTube))
		}
		return degraded(fmt.Sprintf("youtube check failed: %v", err))
	}
	return confirmed(live)
}
