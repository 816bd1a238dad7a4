// Package profile fetches and caches per-channel avatar, banner, and
// descriptive metadata. Lookup precedence: unexpired persistent cache entry,
// synthesized fallback while the platform cooldown is active, then a live
// fetch under the retry policy whose result (including not-found negatives)
// is cached. Fetch never fails: callers always receive usable profile data.
package profile

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/wcarena/creator-sync/errclass"
	"github.com/wcarena/creator-sync/quota"
	"github.com/wcarena/creator-sync/resolver"
	"github.com/wcarena/creator-sync/retry"
	"github.com/wcarena/creator-sync/telemetry"
	"github.com/wcarena/creator-sync/twitchapi"
	"github.com/wcarena/creator-sync/youtubeapi"
)

// DefaultTTL is how long a cached profile stays valid.
const DefaultTTL = 24 * time.Hour

// Data is the profile payload persisted in the cache and consumed by page
// renders elsewhere.
type Data struct {
	Platform    string `json:"platform"`
	Title       string `json:"title"`
	AvatarURL   string `json:"avatar_url"`
	BannerURL   string `json:"banner_url"`
	Description string `json:"description"`
	NotFound    bool   `json:"not_found,omitempty"`
	Fallback    bool   `json:"fallback,omitempty"`
}

// CacheStore persists profile payloads across restarts. Implemented by the
// db package.
type CacheStore interface {
	GetProfile(ctx context.Context, platform, key string) (payload []byte, fetchedAt time.Time, err error)
	PutProfile(ctx context.Context, platform, key string, payload []byte, fetchedAt time.Time) error
}

// TwitchProfileClient is implemented by twitchapi.HelixClient.
type TwitchProfileClient interface {
	GetUser(ctx context.Context, login string) (twitchapi.UserProfile, error)
}

// YouTubeProfileClient is implemented by youtubeapi.Client.
type YouTubeProfileClient interface {
	GetChannel(ctx context.Context, channelID string) (youtubeapi.ChannelProfile, error)
}

// Fetcher resolves channel profiles with caching and graceful degradation.
type Fetcher struct {
	Cache     CacheStore
	Clock     clockwork.Clock
	TTL       time.Duration
	Twitch    TwitchProfileClient
	YouTube   YouTubeProfileClient
	Budget    *quota.Budget
	Cooldowns *quota.CooldownTracker
	Resolver  *resolver.Resolver
	Retry     retry.Policy
	Logger    *slog.Logger

	DefaultAvatarURL string
	DefaultBannerURL string
}

func (f *Fetcher) clock() clockwork.Clock {
	if f.Clock != nil {
		return f.Clock
	}
	return clockwork.NewRealClock()
}

func (f *Fetcher) ttl() time.Duration {
	if f.TTL > 0 {
		return f.TTL
	}
	return DefaultTTL
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Fetch returns profile data for the raw channel input. Every failure mode
// resolves to a synthesized fallback, so the result is always renderable.
func (f *Fetcher) Fetch(ctx context.Context, platform resolver.Platform, raw string) Data {
	ref, err := resolver.Resolve(platform, raw)
	if err != nil {
		// Unparseable input is permanent for that value, no point caching.
		return f.fallback(platform, raw)
	}
	key := cacheKey(ref)

	if data, ok := f.cached(ctx, platform, key); ok {
		telemetry.ProfileCacheHits.WithLabelValues(string(platform)).Inc()
		return data
	}

	if f.Cooldowns.Active(ctx, string(platform)) {
		// Not cached: once the cooldown lifts, the next fetch goes live.
		return f.fallback(platform, ref.Value)
	}

	data, err := f.fetchLive(ctx, ref)
	if err != nil {
		fb := f.fallback(platform, ref.Value)
		if errclass.Is(err, errclass.ClassQuota) {
			// Quota died mid-flight (possibly mid-resolution): cache the
			// fallback so repeats within the TTL window don't re-attempt
			// the expensive resolution.
			f.Cooldowns.MarkExhausted(ctx, string(platform))
			f.put(ctx, platform, key, fb)
		}
		f.logger().Debug("profile fetch degraded",
			slog.String("platform", string(platform)),
			slog.String("key", key),
			slog.Any("err", err))
		return fb
	}

	f.put(ctx, platform, key, data)
	return data
}

func cacheKey(ref resolver.Ref) string {
	return strings.ToLower(ref.Value)
}

func (f *Fetcher) cached(ctx context.Context, platform resolver.Platform, key string) (Data, bool) {
	payload, fetchedAt, err := f.Cache.GetProfile(ctx, string(platform), key)
	if err != nil || len(payload) == 0 {
		return Data{}, false
	}
	if f.clock().Now().Sub(fetchedAt) >= f.ttl() {
		return Data{}, false
	}
	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return Data{}, false
	}
	return data, true
}

func (f *Fetcher) put(ctx context.Context, platform resolver.Platform, key string, data Data) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	if err := f.Cache.PutProfile(ctx, string(platform), key, payload, f.clock().Now()); err != nil {
		f.logger().Warn("profile cache write failed",
			slog.String("platform", string(platform)),
			slog.String("key", key),
			slog.Any("err", err))
	}
}

func (f *Fetcher) fetchLive(ctx context.Context, ref resolver.Ref) (Data, error) {
	switch ref.Platform {
	case resolver.PlatformTwitch:
		return f.fetchTwitch(ctx, ref)
	case resolver.PlatformYouTube:
		return f.fetchYouTube(ctx, ref)
	default:
		return Data{}, errclass.Newf(errclass.ClassMalformed, "unknown platform %q", ref.Platform)
	}
}

func (f *Fetcher) fetchTwitch(ctx context.Context, ref resolver.Ref) (Data, error) {
	if f.Twitch == nil {
		return Data{}, errclass.Newf(errclass.ClassAuth, "twitch credentials not configured")
	}
	user, err := retry.Do(ctx, f.Retry, func() (twitchapi.UserProfile, error) {
		telemetry.ProviderCalls.WithLabelValues("twitch", "users").Inc()
		return f.Twitch.GetUser(ctx, ref.Value)
	})
	if err != nil {
		if errclass.Is(err, errclass.ClassNotFound) {
			return f.notFound(ref), nil
		}
		return Data{}, err
	}
	return Data{
		Platform:    string(ref.Platform),
		Title:       user.DisplayName,
		AvatarURL:   user.AvatarURL,
		BannerURL:   user.BannerURL,
		Description: user.Description,
	}, nil
}

func (f *Fetcher) fetchYouTube(ctx context.Context, ref resolver.Ref) (Data, error) {
	if f.YouTube == nil {
		return Data{}, errclass.Newf(errclass.ClassAuth, "youtube api key not configured")
	}
	// Username/handle inputs need the paid search before the cheap
	// descriptive call.
	channelID, err := f.Resolver.ChannelID(ctx, ref)
	if err != nil {
		if errclass.Is(err, errclass.ClassNotFound) {
			return f.notFound(ref), nil
		}
		return Data{}, err
	}
	if ok, remaining := f.Budget.Check(quota.CostLookup); !ok {
		return Data{}, errclass.Newf(errclass.ClassQuota, "channel lookup would exceed daily quota (remaining %d units)", remaining)
	}
	ch, err := retry.Do(ctx, f.Retry, func() (youtubeapi.ChannelProfile, error) {
		telemetry.ProviderCalls.WithLabelValues("youtube", "channels").Inc()
		ch, callErr := f.YouTube.GetChannel(ctx, channelID)
		f.Budget.Record(quota.CostLookup)
		return ch, callErr
	})
	if err != nil {
		if errclass.Is(err, errclass.ClassNotFound) {
			return f.notFound(ref), nil
		}
		return Data{}, err
	}
	return Data{
		Platform:    string(ref.Platform),
		Title:       ch.Title,
		AvatarURL:   ch.AvatarURL,
		BannerURL:   ch.BannerURL,
		Description: ch.Description,
	}, nil
}

// notFound is the cached negative result for channels that do not resolve.
func (f *Fetcher) notFound(ref resolver.Ref) Data {
	d := f.fallback(ref.Platform, ref.Value)
	d.NotFound = true
	return d
}

// fallback synthesizes default art plus a best-effort title from the input.
func (f *Fetcher) fallback(platform resolver.Platform, raw string) Data {
	return Data{
		Platform:  string(platform),
		Title:     titleFromInput(raw),
		AvatarURL: f.DefaultAvatarURL,
		BannerURL: f.DefaultBannerURL,
		Fallback:  true,
	}
}

// titleFromInput derives a displayable name from whatever the creator typed:
// the last path segment of a URL, or the bare handle with decoration removed.
func titleFromInput(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimPrefix(s, "@")
	if s == "" {
		return "unknown channel"
	}
	return s
}
