package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"who-is-live/internal/domain"
)

const (
	twitchBaseURL  = "https://api.twitch.tv/helix"
	twitchTokenURL = "https://id.twitch.tv/oauth2/token"

	twitchDefaultImage = "https://static-cdn.jtvnw.net/jtv_user_pictures/xarth/404_user_70x70.png"
)

// TwitchAdapter implements domain.PlatformAdapter for Twitch (Helix API).
// Requests are authorized with an app access token obtained through the
// OAuth2 client credentials flow; tokens are cached and renewed on expiry.
type TwitchAdapter struct {
	identities []domain.Identity
	clientID   string
	tokens     oauth2.TokenSource
	client     *http.Client
	settings
}

// NewTwitchAdapter creates a new Twitch adapter
func NewTwitchAdapter(identities []domain.Identity, clientID, clientSecret string, opts ...Option) *TwitchAdapter {
	s := newSettings(twitchBaseURL, append([]Option{WithTokenURL(twitchTokenURL)}, opts...))

	cc := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     s.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, s.httpClient)
	tokens := cc.TokenSource(tokenCtx)

	return &TwitchAdapter{
		identities: identities,
		clientID:   clientID,
		tokens:     tokens,
		client: &http.Client{
			Timeout:   s.httpClient.Timeout,
			Transport: &oauth2.Transport{Source: tokens, Base: s.httpClient.Transport},
		},
		settings: s,
	}
}

// Platform returns domain.PlatformTwitch
func (t *TwitchAdapter) Platform() domain.Platform {
	return domain.PlatformTwitch
}

// FetchAll checks every configured login. Failing to obtain an app token
// fails the whole adapter for this cycle.
func (t *TwitchAdapter) FetchAll(ctx context.Context) ([]domain.StreamerStatus, error) {
	if err := t.authorize(); err != nil {
		return nil, err
	}
	return fetchEach(ctx, dedupe(t.identities), t.concurrency, t.fetchOne), nil
}

// FetchOne checks a single login
func (t *TwitchAdapter) FetchOne(ctx context.Context, name string) (domain.StreamerStatus, error) {
	if err := t.authorize(); err != nil {
		return domain.StreamerStatus{}, err
	}
	id, _ := resolve(t.identities, name)
	return t.fetchOne(ctx, id), nil
}

func (t *TwitchAdapter) authorize() error {
	if _, err := t.tokens.Token(); err != nil {
		return fmt.Errorf("%w: twitch app token: %v", domain.ErrPlatformUnavailable, err)
	}
	return nil
}

func (t *TwitchAdapter) fetchOne(ctx context.Context, id domain.Identity) domain.StreamerStatus {
	login := id.LookupID()
	link := fmt.Sprintf("https://twitch.tv/%s", login)

	status := domain.StreamerStatus{
		Platform: domain.PlatformTwitch,
		Name:     id.Name,
		ImageURL: twitchDefaultImage,
		Link:     link,
	}

	user, err := t.getUser(ctx, login)
	if err != nil {
		logFetchError(t.log, domain.PlatformTwitch, id.Name, err)
		return errorRecord(domain.PlatformTwitch, id.Name, twitchDefaultImage, link)
	}
	// Unknown logins are reported offline; Twitch offers no ban signal here
	if user == nil {
		t.log.Debug("twitch user not found", map[string]interface{}{"login": login})
		return status
	}
	if user.ProfileImageURL != "" {
		status.ImageURL = user.ProfileImageURL
	}

	params := url.Values{}
	params.Add("user_id", user.ID)

	var streams struct {
		Data []struct {
			Title        string `json:"title"`
			GameName     string `json:"game_name"`
			ThumbnailURL string `json:"thumbnail_url"`
			ViewerCount  int    `json:"viewer_count"`
		} `json:"data"`
	}
	if err := t.get(ctx, "streams", params, &streams); err != nil {
		logFetchError(t.log, domain.PlatformTwitch, id.Name, err)
		return errorRecord(domain.PlatformTwitch, id.Name, status.ImageURL, link)
	}

	// Empty data array means the channel is not currently streaming
	if len(streams.Data) == 0 {
		return status
	}

	stream := streams.Data[0]
	status.IsLive = true
	status.Title = stream.Title
	status.ViewerCount = max(stream.ViewerCount, 0)
	status.Category = stream.GameName
	status.ThumbnailURL = strings.NewReplacer("{width}", "440", "{height}", "248").Replace(stream.ThumbnailURL)
	return status
}

type twitchUser struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	ProfileImageURL string `json:"profile_image_url"`
}

// getUser resolves a login to a user. It returns nil without error when the
// login does not exist.
func (t *TwitchAdapter) getUser(ctx context.Context, login string) (*twitchUser, error) {
	params := url.Values{}
	params.Add("login", login)

	var users struct {
		Data []twitchUser `json:"data"`
	}
	if err := t.get(ctx, "users", params, &users); err != nil {
		return nil, err
	}
	if len(users.Data) == 0 {
		return nil, nil
	}
	return &users.Data[0], nil
}

func (t *TwitchAdapter) get(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s/%s?%s", t.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Client-Id", t.clientID)
	return doJSON(t.client, req, out)
}
