package adapter

import (
	"context"
	"fmt"

	"who-is-live/internal/domain"
)

// YouTubeProbeResult is what a probe extracts for one channel before the
// live heuristic is applied
type YouTubeProbeResult struct {
	IsLive   bool
	Title    string
	Viewers  int
	ImageURL string
}

// YouTubeProbe extracts the raw live state of a YouTube channel
type YouTubeProbe interface {
	Probe(ctx context.Context, channelID string) (*YouTubeProbeResult, error)
}

// YouTubeAdapter implements domain.PlatformAdapter for YouTube.
// The raw live flag from the probe is filtered through IsGenuinelyLive.
type YouTubeAdapter struct {
	identities []domain.Identity
	keywords   []string
	probe      YouTubeProbe
	settings
}

// NewYouTubeAdapter creates a new YouTube adapter
func NewYouTubeAdapter(identities []domain.Identity, keywords []string, probe YouTubeProbe, opts ...Option) *YouTubeAdapter {
	return &YouTubeAdapter{
		identities: identities,
		keywords:   keywords,
		probe:      probe,
		settings:   newSettings("", opts),
	}
}

// Platform returns domain.PlatformYouTube
func (y *YouTubeAdapter) Platform() domain.Platform {
	return domain.PlatformYouTube
}

// FetchAll probes every configured channel
func (y *YouTubeAdapter) FetchAll(ctx context.Context) ([]domain.StreamerStatus, error) {
	return fetchEach(ctx, dedupe(y.identities), y.concurrency, y.fetchOne), nil
}

// FetchOne probes a single channel. Names missing from the roster are taken
// as channel ids.
func (y *YouTubeAdapter) FetchOne(ctx context.Context, name string) (domain.StreamerStatus, error) {
	id, _ := resolve(y.identities, name)
	return y.fetchOne(ctx, id), nil
}

func (y *YouTubeAdapter) fetchOne(ctx context.Context, id domain.Identity) domain.StreamerStatus {
	channelID := id.LookupID()
	fallbackImage := fmt.Sprintf("https://yt3.ggpht.com/channel/%s", channelID)

	raw, err := y.probe.Probe(ctx, channelID)
	if err != nil {
		logFetchError(y.log, domain.PlatformYouTube, id.Name, err)
		return errorRecord(domain.PlatformYouTube, id.Name, fallbackImage, youTubeLink(channelID, false))
	}

	live := IsGenuinelyLive(raw.IsLive, raw.Viewers, raw.Title, y.keywords)
	if raw.IsLive && !live {
		y.log.Debug("youtube live flag suppressed by heuristic", map[string]interface{}{
			"streamer": id.Name,
			"title":    raw.Title,
			"viewers":  raw.Viewers,
		})
	}

	status := domain.StreamerStatus{
		Platform: domain.PlatformYouTube,
		Name:     id.Name,
		ImageURL: raw.ImageURL,
		Link:     youTubeLink(channelID, live),
		IsLive:   live,
	}
	if status.ImageURL == "" {
		status.ImageURL = fallbackImage
	}
	if live {
		status.Title = raw.Title
		status.ViewerCount = raw.Viewers
	}
	return status
}

func youTubeLink(channelID string, live bool) string {
	if live {
		return fmt.Sprintf("https://www.youtube.com/channel/%s/live", channelID)
	}
	return fmt.Sprintf("https://www.youtube.com/channel/%s", channelID)
}
