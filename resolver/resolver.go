// Package resolver normalizes user-supplied channel URLs and handles into
// typed references, and maps YouTube usernames/handles to channel IDs via the
// Data API search call (charged against the quota budget, memoized for the
// process lifetime).
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/wcarena/creator-sync/errclass"
	"github.com/wcarena/creator-sync/quota"
)

// Platform identifies a provider.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformTwitch  Platform = "twitch"
)

// Kind distinguishes canonical channel IDs from names that still need a
// provider-side lookup.
type Kind string

const (
	KindID       Kind = "id"
	KindUsername Kind = "username"
	// KindVideo is a video ID taken from a watch URL; the owning channel is
	// looked up provider-side.
	KindVideo Kind = "video"
)

// Ref is a normalized (kind, value) channel reference. Derived on demand
// from a creator's stored URL or handle; never persisted.
type Ref struct {
	Platform Platform
	Kind     Kind
	Value    string
}

// rule pairs a pattern with the kind its capture group yields. Rules are
// evaluated in priority order so new URL shapes are additive.
type rule struct {
	re   *regexp.Regexp
	kind Kind
}

var youtubeRules = []rule{
	// Canonical channel-ID path.
	{regexp.MustCompile(`youtube\.com/channel/(UC[A-Za-z0-9_-]{5,})`), KindID},
	// Legacy custom and user paths.
	{regexp.MustCompile(`youtube\.com/c/([A-Za-z0-9._-]+)`), KindUsername},
	{regexp.MustCompile(`youtube\.com/user/([A-Za-z0-9._-]+)`), KindUsername},
	// Handle form, with or without a host.
	{regexp.MustCompile(`youtube\.com/@([A-Za-z0-9._-]+)`), KindUsername},
	{regexp.MustCompile(`^@([A-Za-z0-9._-]+)$`), KindUsername},
	// Watch URLs name a video; the channel comes from a video lookup.
	{regexp.MustCompile(`youtube\.com/watch\?(?:[^#\s]*&)?v=([A-Za-z0-9_-]{6,})`), KindVideo},
	{regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{6,})`), KindVideo},
	// Bare vanity path: youtube.com/somename.
	{regexp.MustCompile(`youtube\.com/([A-Za-z0-9._-]+)\s*$`), KindUsername},
}

var twitchRules = []rule{
	{regexp.MustCompile(`twitch\.tv/([A-Za-z0-9_]+)`), KindUsername},
}

// channelIDShape matches values already shaped like YouTube channel IDs, for
// which the paid search lookup is skipped.
var channelIDShape = regexp.MustCompile(`^UC[A-Za-z0-9_-]{20,}$`)

// bareName accepts protocol-less, slash-less input as a username fallback.
var bareName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// SearchClient performs the chargeable YouTube lookups that map a username,
// handle or video ID to a channel ID. Implemented by youtubeapi.Client.
type SearchClient interface {
	SearchChannelID(ctx context.Context, query string) (string, error)
	VideoChannelID(ctx context.Context, videoID string) (string, error)
}

// Resolver normalizes raw channel inputs and resolves YouTube names to IDs.
type Resolver struct {
	Search SearchClient
	Budget *quota.Budget

	mu    sync.Mutex
	cache map[string]string // username/handle -> channel ID, process lifetime
}

// New returns a resolver. search may be nil when the YouTube API is not
// configured; name resolution then degrades with an auth error.
func New(search SearchClient, budget *quota.Budget) *Resolver {
	return &Resolver{Search: search, Budget: budget, cache: make(map[string]string)}
}

// Resolve maps an arbitrary URL or handle to a typed channel reference.
// Unmatched junk yields a malformed-input error, permanent for that value.
func Resolve(platform Platform, raw string) (Ref, error) {
	in := strings.TrimSpace(raw)
	if in == "" {
		return Ref{}, errclass.Malformed(errors.New("empty channel input"))
	}

	var rules []rule
	switch platform {
	case PlatformYouTube:
		rules = youtubeRules
	case PlatformTwitch:
		rules = twitchRules
	default:
		return Ref{}, errclass.Malformed(fmt.Errorf("unknown platform %q", platform))
	}

	for _, r := range rules {
		if m := r.re.FindStringSubmatch(in); m != nil {
			return makeRef(platform, r.kind, m[1]), nil
		}
	}

	// Bare-username fallback only when the input carries no scheme or path.
	if !strings.Contains(in, "://") && !strings.Contains(in, "/") {
		name := strings.TrimPrefix(in, "@")
		if platform == PlatformYouTube && channelIDShape.MatchString(name) {
			return makeRef(platform, KindID, name), nil
		}
		if bareName.MatchString(name) {
			return makeRef(platform, KindUsername, name), nil
		}
	}

	return Ref{}, errclass.Malformed(fmt.Errorf("unparseable channel input %q", raw))
}

func makeRef(platform Platform, kind Kind, value string) Ref {
	if platform == PlatformTwitch {
		// Twitch logins are case-insensitive; normalize for cache keys.
		value = strings.ToLower(value)
	}
	return Ref{Platform: platform, Kind: kind, Value: value}
}

// ChannelID returns the YouTube channel ID for ref, issuing at most one paid
// lookup per distinct name or video per process. Name searches cost 100
// units, video lookups 1; both are charged whether or not they succeed.
func (r *Resolver) ChannelID(ctx context.Context, ref Ref) (string, error) {
	if ref.Platform != PlatformYouTube {
		return "", errclass.Malformed(fmt.Errorf("channel id resolution is youtube-only, got %q", ref.Platform))
	}
	if ref.Kind != KindVideo && (ref.Kind == KindID || channelIDShape.MatchString(ref.Value)) {
		return ref.Value, nil
	}

	key := string(ref.Kind) + ":" + strings.ToLower(ref.Value)
	r.mu.Lock()
	if id, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return id, nil
	}
	r.mu.Unlock()

	if r.Search == nil {
		return "", errclass.Auth(errors.New("youtube api not configured"))
	}

	// Video IDs resolve via the 1-unit video lookup; names need the 100-unit
	// search. Charged whether or not the call succeeds.
	cost := quota.CostSearch
	if ref.Kind == KindVideo {
		cost = quota.CostLookup
	}
	if ok, remaining := r.Budget.Check(cost); !ok {
		return "", errclass.Quota(fmt.Errorf("lookup would exceed daily quota (remaining %d units)", remaining))
	}

	var id string
	var err error
	if ref.Kind == KindVideo {
		id, err = r.Search.VideoChannelID(ctx, ref.Value)
	} else {
		id, err = r.Search.SearchChannelID(ctx, ref.Value)
	}
	r.Budget.Record(cost)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref.Value, err)
	}

	r.mu.Lock()
	r.cache[key] = id
	r.mu.Unlock()
	slog.Debug("resolved youtube channel id",
		slog.String("name", ref.Value), slog.String("channel_id", id))
	return id, nil
}
