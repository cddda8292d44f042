package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"who-is-live/internal/cache"
)

const youTubeAPIBaseURL = "https://www.googleapis.com/youtube/v3"

// APIProbe implements YouTubeProbe with the YouTube Data API v3
type APIProbe struct {
	apiKey  string
	avatars *cache.Cache
	settings
}

// NewAPIProbe creates a Data API probe. Channel avatars are cached in
// avatars, for its default TTL, when it is non-nil.
func NewAPIProbe(apiKey string, avatars *cache.Cache, opts ...Option) *APIProbe {
	return &APIProbe{
		apiKey:   apiKey,
		avatars:  avatars,
		settings: newSettings(youTubeAPIBaseURL, opts),
	}
}

// Probe finds a live broadcast for the channel. It uses the search endpoint
// with eventType=live, then reads concurrent viewers from the videos endpoint.
func (p *APIProbe) Probe(ctx context.Context, channelID string) (*YouTubeProbeResult, error) {
	params := url.Values{}
	params.Add("part", "snippet")
	params.Add("channelId", channelID)
	params.Add("eventType", "live") // Only return live streams
	params.Add("type", "video")
	params.Add("key", p.apiKey)

	var search struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := p.get(ctx, "search", params, &search); err != nil {
		return nil, fmt.Errorf("youtube search for %s: %w", channelID, err)
	}

	result := &YouTubeProbeResult{ImageURL: p.avatar(ctx, channelID)}

	// Empty results means the channel is not currently streaming
	if len(search.Items) == 0 {
		return result, nil
	}

	item := search.Items[0]
	viewers, err := p.viewerCount(ctx, item.ID.VideoID)
	if err != nil {
		p.log.Warn("youtube viewer count unavailable", map[string]interface{}{
			"channel_id": channelID,
			"video_id":   item.ID.VideoID,
			"error":      err.Error(),
		})
	}

	result.IsLive = true
	result.Title = item.Snippet.Title
	result.Viewers = viewers
	return result, nil
}

// viewerCount retrieves the current viewer count for a live video
func (p *APIProbe) viewerCount(ctx context.Context, videoID string) (int, error) {
	params := url.Values{}
	params.Add("part", "liveStreamingDetails")
	params.Add("id", videoID)
	params.Add("key", p.apiKey)

	var result struct {
		Items []struct {
			LiveStreamingDetails struct {
				ConcurrentViewers string `json:"concurrentViewers"`
			} `json:"liveStreamingDetails"`
		} `json:"items"`
	}
	if err := p.get(ctx, "videos", params, &result); err != nil {
		return 0, err
	}
	if len(result.Items) == 0 || result.Items[0].LiveStreamingDetails.ConcurrentViewers == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(result.Items[0].LiveStreamingDetails.ConcurrentViewers)
	if err != nil {
		return 0, fmt.Errorf("invalid concurrentViewers: %w", err)
	}
	return n, nil
}

// avatar returns the channel's profile picture, or "" when unavailable
func (p *APIProbe) avatar(ctx context.Context, channelID string) string {
	key := "yt-avatar:" + channelID
	if p.avatars != nil {
		if v, ok := p.avatars.Get(key); ok {
			return v
		}
	}

	params := url.Values{}
	params.Add("part", "snippet")
	params.Add("id", channelID)
	params.Add("key", p.apiKey)

	var result struct {
		Items []struct {
			Snippet struct {
				Thumbnails map[string]struct {
					URL string `json:"url"`
				} `json:"thumbnails"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := p.get(ctx, "channels", params, &result); err != nil || len(result.Items) == 0 {
		return ""
	}

	thumbs := result.Items[0].Snippet.Thumbnails
	var u string
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			u = t.URL
			break
		}
	}
	if u != "" && p.avatars != nil {
		_ = p.avatars.Set(key, u)
	}
	return u
}

func (p *APIProbe) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return doJSON(p.httpClient, req, out)
}
