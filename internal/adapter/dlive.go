package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"who-is-live/internal/domain"
)

const dliveBaseURL = "https://graphigo.prd.dlive.tv/"

const dliveUserQuery = `query UserByDisplayName($displayname: String!) {
	userByDisplayName(displayname: $displayname) {
		displayname
		avatar
		livestream {
			title
			watchingCount
			thumbnailUrl
			category {
				title
			}
		}
	}
}`

// DLiveAdapter implements domain.PlatformAdapter for DLive's GraphQL API
type DLiveAdapter struct {
	identities []domain.Identity
	settings
}

// NewDLiveAdapter creates a new DLive adapter
func NewDLiveAdapter(identities []domain.Identity, opts ...Option) *DLiveAdapter {
	return &DLiveAdapter{
		identities: identities,
		settings:   newSettings(dliveBaseURL, opts),
	}
}

// Platform returns domain.PlatformDLive
func (d *DLiveAdapter) Platform() domain.Platform {
	return domain.PlatformDLive
}

// FetchAll queries every configured display name
func (d *DLiveAdapter) FetchAll(ctx context.Context) ([]domain.StreamerStatus, error) {
	return fetchEach(ctx, dedupe(d.identities), d.concurrency, d.fetchOne), nil
}

// FetchOne queries a single display name
func (d *DLiveAdapter) FetchOne(ctx context.Context, name string) (domain.StreamerStatus, error) {
	id, _ := resolve(d.identities, name)
	return d.fetchOne(ctx, id), nil
}

// watchingCount is sent as either a number or a numeric string
type watchingCount int

func (w *watchingCount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*w = watchingCount(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*w = watchingCount(n)
	return nil
}

// DLiveUser is the subset of the userByDisplayName result used here
type DLiveUser struct {
	Displayname string `json:"displayname"`
	Avatar      string `json:"avatar"`
	Livestream  *struct {
		Title         string        `json:"title"`
		WatchingCount watchingCount `json:"watchingCount"`
		ThumbnailURL  string        `json:"thumbnailUrl"`
		Category      *struct {
			Title string `json:"title"`
		} `json:"category"`
	} `json:"livestream"`
}

func (d *DLiveAdapter) fetchOne(ctx context.Context, id domain.Identity) domain.StreamerStatus {
	name := id.LookupID()
	link := fmt.Sprintf("https://dlive.tv/%s", name)
	defaultImage := fmt.Sprintf("https://dlive.tv/avatar/%s", name)

	user, err := d.GetUser(ctx, name)
	if err != nil {
		logFetchError(d.log, domain.PlatformDLive, id.Name, err)
		return errorRecord(domain.PlatformDLive, id.Name, defaultImage, link)
	}

	status := domain.StreamerStatus{
		Platform: domain.PlatformDLive,
		Name:     id.Name,
		ImageURL: user.Avatar,
		Link:     link,
	}
	if status.ImageURL == "" {
		status.ImageURL = defaultImage
	}

	if ls := user.Livestream; ls != nil {
		status.IsLive = true
		status.Title = ls.Title
		status.ViewerCount = max(int(ls.WatchingCount), 0)
		status.ThumbnailURL = ls.ThumbnailURL
		if ls.Category != nil {
			status.Category = ls.Category.Title
		}
	}
	return status
}

// GetUser runs the userByDisplayName query. GraphQL errors and unknown users
// are returned as errors; DLive offers no ban signal.
func (d *DLiveAdapter) GetUser(ctx context.Context, displayName string) (*DLiveUser, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"operationName": "UserByDisplayName",
		"query":         dliveUserQuery,
		"variables":     map[string]string{"displayname": displayName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Origin", "https://dlive.tv")
	req.Header.Set("Referer", "https://dlive.tv/")

	var result struct {
		Data *struct {
			UserByDisplayName *DLiveUser `json:"userByDisplayName"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := doJSON(d.httpClient, req, &result); err != nil {
		return nil, fmt.Errorf("dlive user %s: %w", displayName, err)
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("dlive user %s: graphql error: %s", displayName, result.Errors[0].Message)
	}
	if result.Data == nil || result.Data.UserByDisplayName == nil {
		return nil, fmt.Errorf("dlive user %s: %w", displayName, domain.ErrChannelNotFound)
	}
	return result.Data.UserByDisplayName, nil
}
