package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"who-is-live/internal/domain"
	"who-is-live/internal/history"
)

const (
	kickBaseURL = "https://kick.com"

	// KickDefaultImage is shown for banned channels and channels without an avatar
	KickDefaultImage = "https://i.imgur.com/WVBE8gY.png"
	// KickBanReason is the ban reason attached to channels Kick no longer serves
	KickBanReason = "Channel has been banned or deleted from Kick"

	kickDefaultTitle    = "No title"
	kickDefaultCategory = "Just Chatting"
)

// KickChannel is the subset of Kick's channel response used here
type KickChannel struct {
	Slug string `json:"slug"`
	User *struct {
		Username   string `json:"username"`
		ProfilePic string `json:"profile_pic"`
	} `json:"user"`
	Livestream *struct {
		SessionTitle string `json:"session_title"`
		ViewerCount  int    `json:"viewer_count"`
		Thumbnail    *struct {
			URL string `json:"url"`
		} `json:"thumbnail"`
		Categories []struct {
			Name string `json:"name"`
		} `json:"categories"`
	} `json:"livestream"`
}

// KickAdapter implements domain.PlatformAdapter for Kick.
// A 404 from the channel endpoint is treated as a ban: the channel is added
// to a durable banned set and polled every cycle until it reappears.
type KickAdapter struct {
	identities  []domain.Identity
	knownBanned []string
	state       *history.State
	settings
}

// NewKickAdapter creates a new Kick adapter
func NewKickAdapter(identities []domain.Identity, knownBanned []string, state *history.State, opts ...Option) *KickAdapter {
	return &KickAdapter{
		identities:  identities,
		knownBanned: knownBanned,
		state:       state,
		settings:    newSettings(kickBaseURL, opts),
	}
}

// Platform returns domain.PlatformKick
func (k *KickAdapter) Platform() domain.Platform {
	return domain.PlatformKick
}

// FetchAll queries the configured channels plus every channel in the durable
// banned set and the known-banned seeds
func (k *KickAdapter) FetchAll(ctx context.Context) ([]domain.StreamerStatus, error) {
	ids := append([]domain.Identity(nil), k.identities...)
	for _, name := range k.state.BannedSet(ctx, domain.PlatformKick) {
		ids = append(ids, domain.Identity{Name: name})
	}
	for _, name := range k.knownBanned {
		ids = append(ids, domain.Identity{Name: name})
	}

	return fetchEach(ctx, dedupe(ids), k.concurrency, k.fetchOne), nil
}

// FetchOne checks a single channel. A 404 is reported as a ban; the durable
// banned set is only updated for channels this adapter already tracks.
func (k *KickAdapter) FetchOne(ctx context.Context, name string) (domain.StreamerStatus, error) {
	id, tracked := resolve(k.identities, name)
	if !tracked {
		for _, n := range append(k.state.BannedSet(ctx, domain.PlatformKick), k.knownBanned...) {
			if strings.EqualFold(n, name) {
				id, tracked = domain.Identity{Name: n}, true
				break
			}
		}
	}
	return k.check(ctx, id, tracked), nil
}

func (k *KickAdapter) fetchOne(ctx context.Context, id domain.Identity) domain.StreamerStatus {
	return k.check(ctx, id, true)
}

func (k *KickAdapter) check(ctx context.Context, id domain.Identity, track bool) domain.StreamerStatus {
	link := fmt.Sprintf("https://kick.com/%s", id.Name)

	ch, err := k.GetChannel(ctx, id.LookupID())
	if errors.Is(err, domain.ErrChannelNotFound) && !track {
		return bannedKickRecord(id.Name, link)
	}
	if errors.Is(err, domain.ErrChannelNotFound) {
		added, serr := k.state.AddBanned(ctx, domain.PlatformKick, id.Name)
		if serr != nil {
			k.log.Warn("failed to persist kick banned set", map[string]interface{}{
				"streamer": id.Name,
				"error":    serr.Error(),
			})
		}
		if added {
			k.log.Info("new banned streamer detected", map[string]interface{}{
				"platform": "kick",
				"streamer": id.Name,
			})
		}
		return bannedKickRecord(id.Name, link)
	}

	// Any answer other than not-found means the channel exists again
	if track && (err == nil || isHTTPAnswer(err)) {
		removed, serr := k.state.RemoveBanned(ctx, domain.PlatformKick, id.Name)
		if serr != nil {
			k.log.Warn("failed to persist kick banned set", map[string]interface{}{
				"streamer": id.Name,
				"error":    serr.Error(),
			})
		}
		if removed {
			k.log.Info("streamer is no longer banned", map[string]interface{}{
				"platform": "kick",
				"streamer": id.Name,
			})
		}
	}

	if err != nil {
		logFetchError(k.log, domain.PlatformKick, id.Name, err)
		return errorRecord(domain.PlatformKick, id.Name, KickDefaultImage, link)
	}

	status := domain.StreamerStatus{
		Platform: domain.PlatformKick,
		Name:     id.Name,
		ImageURL: KickDefaultImage,
		Link:     link,
	}
	if ch.User != nil && ch.User.ProfilePic != "" {
		status.ImageURL = ch.User.ProfilePic
	}

	if ls := ch.Livestream; ls != nil {
		status.IsLive = true
		status.ViewerCount = max(ls.ViewerCount, 0)
		status.Title = ls.SessionTitle
		if status.Title == "" {
			status.Title = kickDefaultTitle
		}
		status.Category = kickDefaultCategory
		if len(ls.Categories) > 0 && ls.Categories[0].Name != "" {
			status.Category = ls.Categories[0].Name
		}
		if ls.Thumbnail != nil {
			status.ThumbnailURL = ls.Thumbnail.URL
		}
	}

	return status
}

func bannedKickRecord(name, link string) domain.StreamerStatus {
	return domain.StreamerStatus{
		Platform:  domain.PlatformKick,
		Name:      name,
		ImageURL:  KickDefaultImage,
		Link:      link,
		IsBanned:  true,
		BanReason: KickBanReason,
	}
}

// GetChannel fetches one channel. It returns domain.ErrChannelNotFound when
// Kick answers 404.
func (k *KickAdapter) GetChannel(ctx context.Context, slug string) (*KickChannel, error) {
	reqURL := fmt.Sprintf("%s/api/v1/channels/%s", k.baseURL, url.PathEscape(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)

	var ch KickChannel
	if err := doJSON(k.httpClient, req, &ch); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("kick channel %s: %w", slug, domain.ErrChannelNotFound)
		}
		return nil, fmt.Errorf("kick channel %s: %w", slug, err)
	}
	return &ch, nil
}

// isHTTPAnswer reports whether err came from a response Kick actually sent,
// as opposed to a transport failure
func isHTTPAnswer(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
