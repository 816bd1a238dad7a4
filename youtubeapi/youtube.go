// Package youtubeapi wraps the YouTube Data API v3 for the calls the sync
// subsystem makes: channel search (name resolution and live probing, 100
// units each), channel lookup (descriptive metadata, 1 unit) and video lookup
// (watch-URL resolution, 1 unit). Auth is a plain API key; unit costs are
// charged by callers against the quota budget.
package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/wcarena/creator-sync/errclass"
)

// callTimeout bounds every Data API call. The generated service cannot take a
// custom HTTP client alongside an API key, so the deadline lives on the
// per-call context instead; a hung connection degrades that one check rather
// than stalling the whole batch.
const callTimeout = 10 * time.Second

// ChannelProfile carries the descriptive fields the profile fetcher persists.
type ChannelProfile struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
	BannerURL   string `json:"banner_url"`
}

// Client is a thin wrapper over the generated service.
type Client struct {
	svc *yt.Service

	// Timeout overrides the default per-call deadline when positive.
	// Tests shorten it; production code leaves it zero.
	Timeout time.Duration
}

func (c *Client) deadline() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return callTimeout
}

// New builds a client authenticated by API key.
func New(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, errclass.Auth(errors.New("missing youtube api key"))
	}
	return NewWithOptions(ctx, option.WithAPIKey(apiKey))
}

// NewWithOptions builds a client from raw client options (tests inject their
// own endpoint and HTTP client here).
func NewWithOptions(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// classify folds googleapi errors into the shared taxonomy. Any 403 counts as
// quota exhaustion: provider-side quota truth can lag local bookkeeping, so
// the caller marks the cooldown on every 403 regardless of the local counter.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return errclass.Transient(err)
	}
	switch {
	case ge.Code == 403:
		return errclass.Quota(err)
	case ge.Code == 400 || ge.Code == 401:
		return errclass.Auth(err)
	case ge.Code == 404:
		return errclass.NotFound(err)
	case ge.Code == 429:
		return errclass.Quota(err)
	case ge.Code >= 500:
		return errclass.Transient(err)
	default:
		return errclass.Transient(err)
	}
}

// SearchChannelID maps a username or handle to a channel ID via the search
// endpoint. Costs 100 units; charged by the caller.
func (c *Client) SearchChannelID(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline())
	defer cancel()
	res, err := c.svc.Search.List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err)
	}
	if len(res.Items) == 0 || res.Items[0].Snippet == nil || res.Items[0].Snippet.ChannelId == "" {
		return "", errclass.Newf(errclass.ClassNotFound, "no youtube channel matches %q", query)
	}
	return res.Items[0].Snippet.ChannelId, nil
}

// IsLive reports whether the channel currently has a live broadcast, via the
// search endpoint's live filter. Costs 100 units; charged by the caller.
func (c *Client) IsLive(ctx context.Context, channelID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline())
	defer cancel()
	res, err := c.svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return false, classify(err)
	}
	return len(res.Items) > 0, nil
}

// VideoChannelID returns the channel that published the given video. Used to
// resolve watch URLs, which name a video rather than a channel. Costs 1 unit;
// charged by the caller.
func (c *Client) VideoChannelID(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline())
	defer cancel()
	res, err := c.svc.Videos.List([]string{"snippet"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err)
	}
	if len(res.Items) == 0 || res.Items[0].Snippet == nil || res.Items[0].Snippet.ChannelId == "" {
		return "", errclass.Newf(errclass.ClassNotFound, "youtube video %q not found", videoID)
	}
	return res.Items[0].Snippet.ChannelId, nil
}

// GetChannel fetches descriptive metadata for a channel ID. Costs 1 unit;
// charged by the caller. An unknown ID yields a not-found error, which
// callers cache as a negative result.
func (c *Client) GetChannel(ctx context.Context, channelID string) (ChannelProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline())
	defer cancel()
	res, err := c.svc.Channels.List([]string{"snippet", "brandingSettings"}).
		Id(channelID).
		Context(ctx).
		Do()
	if err != nil {
		return ChannelProfile{}, classify(err)
	}
	if len(res.Items) == 0 {
		return ChannelProfile{}, errclass.Newf(errclass.ClassNotFound, "youtube channel %q not found", channelID)
	}
	item := res.Items[0]
	p := ChannelProfile{ID: item.Id}
	if item.Snippet != nil {
		p.Title = item.Snippet.Title
		p.Description = item.Snippet.Description
		if th := item.Snippet.Thumbnails; th != nil {
			switch {
			case th.High != nil:
				p.AvatarURL = th.High.Url
			case th.Medium != nil:
				p.AvatarURL = th.Medium.Url
			case th.Default != nil:
				p.AvatarURL = th.Default.Url
			}
		}
	}
	if item.BrandingSettings != nil && item.BrandingSettings.Image != nil {
		p.BannerURL = item.BrandingSettings.Image.BannerExternalUrl
	}
	return p, nil
}
