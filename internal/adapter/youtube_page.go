package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

const (
	youTubeBaseURL = "https://www.youtube.com"
	maxPageBytes   = 4 << 20
)

// Extraction table for the channel /live page. YouTube changes this markup
// without notice, so a miss degrades to offline rather than an error.
var (
	liveMarkers = []string{
		`"isLive":true`,
		`"status":"LIVE"`,
		`BADGE_STYLE_TYPE_LIVE`,
		`watching now`,
	}
	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`"title":\s*\{\s*"runs":\s*\[\{\s*"text":\s*"([^"]+)"`),
		regexp.MustCompile(`videoTitle":"([^"]+)"`),
		regexp.MustCompile(`<title>([^<]*)</title>`),
	}
	viewerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"concurrentViewers":"([\d,]+)"`),
		regexp.MustCompile(`"viewCount":\{"runs":\[\{"text":"([\d,]+)"`),
		regexp.MustCompile(`"watchingCount":"([\d,]+)"`),
		regexp.MustCompile(`(?i)([\d,]+)\s*watching`),
	}
	avatarPattern = regexp.MustCompile(`<meta property="og:image" content="([^"]+)"`)
)

// PageProbe implements YouTubeProbe by reading the channel's public /live
// page. It needs no API key.
type PageProbe struct {
	settings
}

// NewPageProbe creates a page-extraction probe
func NewPageProbe(opts ...Option) *PageProbe {
	return &PageProbe{settings: newSettings(youTubeBaseURL, opts)}
}

// Probe fetches /channel/{id}/live and extracts the live flag, title,
// viewer count and avatar
func (p *PageProbe) Probe(ctx context.Context, channelID string) (*YouTubeProbeResult, error) {
	reqURL := fmt.Sprintf("%s/channel/%s/live", p.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	return ExtractLivePage(string(body)), nil
}

// ExtractLivePage applies the extraction table to a /live page
func ExtractLivePage(html string) *YouTubeProbeResult {
	result := &YouTubeProbeResult{}
	if m := avatarPattern.FindStringSubmatch(html); m != nil {
		result.ImageURL = m[1]
	}

	for _, marker := range liveMarkers {
		if strings.Contains(html, marker) {
			result.IsLive = true
			break
		}
	}
	if !result.IsLive {
		return result
	}

	for _, re := range titlePatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			result.Title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m[1]), "- YouTube"))
			break
		}
	}

	for _, re := range viewerPatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
				result.Viewers = n
				break
			}
		}
	}

	return result
}
