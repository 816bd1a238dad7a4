package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcarena/creator-sync/errclass"
	"github.com/wcarena/creator-sync/quota"
	"github.com/wcarena/creator-sync/resolver"
	"github.com/wcarena/creator-sync/retry"
)

type fakeTwitch struct {
	calls int
	live  bool
	err   error
}

func (f *fakeTwitch) IsLive(context.Context, string) (bool, error) {
	f.calls++
	return f.live, f.err
}

type fakeYouTube struct {
	calls int
	live  bool
	err   error
}

func (f *fakeYouTube) IsLive(context.Context, string) (bool, error) {
	f.calls++
	return f.live, f.err
}

type fakeSearch struct {
	calls int
	id    string
	err   error
}

func (f *fakeSearch) SearchChannelID(context.Context, string) (string, error) {
	f.calls++
	return f.id, f.err
}

func (f *fakeSearch) VideoChannelID(context.Context, string) (string, error) {
	f.calls++
	return f.id, f.err
}

func newFixture(t *testing.T, budgetCap int) (*Checker, *fakeTwitch, *fakeYouTube, *fakeSearch, *quota.Budget, *quota.CooldownTracker) {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.FixedZone("PST", -8*3600)
	}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 12, 0, 0, 0, loc))
	budget := quota.NewBudget(budgetCap, clock)
	cooldowns := quota.NewCooldownTracker(time.Hour, clock, nil)
	tw := &fakeTwitch{}
	ytc := &fakeYouTube{}
	search := &fakeSearch{id: "UCresolved000000000000"}
	c := &Checker{
		Twitch:    tw,
		YouTube:   ytc,
		Budget:    budget,
		Cooldowns: cooldowns,
		Resolver:  resolver.New(search, budget),
		Retry:     retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	}
	return c, tw, ytc, search, budget, cooldowns
}

func ytRef(kind resolver.Kind, value string) resolver.Ref {
	return resolver.Ref{Platform: resolver.PlatformYouTube, Kind: kind, Value: value}
}

func twRef(login string) resolver.Ref {
	return resolver.Ref{Platform: resolver.PlatformTwitch, Kind: resolver.KindUsername, Value: login}
}

func TestCheck_TwitchConfirmedLive(t *testing.T) {
	c, tw, _, _, _, _ := newFixture(t, 10000)
	tw.live = true
	res := c.Check(context.Background(), twRef("coolstreamer"))
	assert.Equal(t, StateConfirmed, res.State)
	assert.True(t, res.Bool())
}

func TestCheck_TwitchMissingCredentialsDegrades(t *testing.T) {
	c, _, _, _, _, _ := newFixture(t, 10000)
	c.Twitch = nil
	res := c.Check(context.Background(), twRef("coolstreamer"))
	assert.Equal(t, StateDegraded, res.State)
	assert.False(t, res.Bool())
	assert.Contains(t, res.Reason, "credentials")
}

func TestCheck_TwitchAuthErrorDegradesWithoutRetry(t *testing.T) {
	c, tw, _, _, _, _ := newFixture(t, 10000)
	tw.err = errclass.Auth(errors.New("helix /streams: 401 unauthorized"))
	res := c.Check(context.Background(), twRef("coolstreamer"))
	assert.Equal(t, StateDegraded, res.State)
	assert.False(t, res.Bool())
	assert.Equal(t, 1, tw.calls, "401 must not trigger an inline retry loop")
}

func TestCheck_TwitchCooldownSkipsNetwork(t *testing.T) {
	c, tw, _, _, _, cooldowns := newFixture(t, 10000)
	cooldowns.MarkExhausted(context.Background(), "twitch")
	res := c.Check(context.Background(), twRef("coolstreamer"))
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, 0, tw.calls)
}

func TestCheck_YouTubeConfirmedWithIDRef(t *testing.T) {
	c, _, ytc, search, budget, _ := newFixture(t, 10000)
	ytc.live = true
	res := c.Check(context.Background(), ytRef(resolver.KindID, "UCabc123XYZ"))
	assert.Equal(t, StateConfirmed, res.State)
	assert.True(t, res.Bool())
	assert.Equal(t, 0, search.calls, "id refs need no paid resolution")
	assert.Equal(t, quota.CostSearch, budget.Used(), "live probe costs one search")
}

func TestCheck_YouTubeUsernameResolvesThenProbes(t *testing.T) {
	c, _, ytc, search, budget, _ := newFixture(t, 10000)
	ytc.live = false
	res := c.Check(context.Background(), ytRef(resolver.KindUsername, "coolstreamer"))
	assert.Equal(t, StateConfirmed, res.State)
	assert.False(t, res.Bool())
	assert.Equal(t, 1, search.calls)
	assert.Equal(t, 2*quota.CostSearch, budget.Used(), "resolution plus live probe")
}

func TestCheck_YouTubeQuotaPreCheckBlocksCall(t *testing.T) {
	c, _, ytc, _, budget, _ := newFixture(t, 50)
	res := c.Check(context.Background(), ytRef(resolver.KindID, "UCabc123XYZ"))
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, 0, ytc.calls, "hard pre-check: zero outbound calls")
	assert.Equal(t, 0, budget.Used())
}

func TestCheck_YouTube403MarksCooldown(t *testing.T) {
	c, _, ytc, _, _, cooldowns := newFixture(t, 10000)
	ytc.err = errclass.Quota(errors.New("googleapi: Error 403: quotaExceeded"))
	ctx := context.Background()

	res := c.Check(ctx, ytRef(resolver.KindID, "UCabc123XYZ"))
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, 1, ytc.calls, "quota errors abort after the first attempt")
	assert.True(t, cooldowns.Active(ctx, "youtube"),
		"provider-side 403 marks the cooldown regardless of the local counter")

	// Next check skips the network entirely.
	res = c.Check(ctx, ytRef(resolver.KindID, "UCabc123XYZ"))
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, 1, ytc.calls)
}

func TestCheck_YouTubeTransientRetriesThenDegrades(t *testing.T) {
	c, _, ytc, _, budget, _ := newFixture(t, 10000)
	ytc.err = errclass.Transient(errors.New("503 backend error"))
	res := c.Check(context.Background(), ytRef(resolver.KindID, "UCabc123XYZ"))
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, 3, ytc.calls, "transient failures retry to the policy cap")
	assert.Equal(t, 3*quota.CostSearch, budget.Used(), "every attempt consumes budget")
}

func TestCheck_YouTubeResolutionQuotaFailureMarksCooldown(t *testing.T) {
	c, _, ytc, search, _, cooldowns := newFixture(t, 10000)
	search.err = errclass.Quota(errors.New("googleapi: Error 403: quotaExceeded"))
	ctx := context.Background()

	res := c.Check(ctx, ytRef(resolver.KindUsername, "coolstreamer"))
	assert.Equal(t, StateDegraded, res.State)
	assert.Equal(t, 0, ytc.calls, "live probe skipped when resolution fails")
	assert.True(t, cooldowns.Active(ctx, "youtube"))
}

func TestCheck_NeverPanicsOnUnknownPlatform(t *testing.T) {
	c, _, _, _, _, _ := newFixture(t, 10000)
	res := c.Check(context.Background(), resolver.Ref{Platform: "myspace", Value: "x"})
	require.Equal(t, StateDegraded, res.State)
	assert.False(t, res.Bool())
}
