package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

func newTwitchServer(t *testing.T, tokenStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "cid", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "cid", r.Header.Get("Client-Id"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("login") {
		case "liveone":
			w.Write([]byte(`{"data":[{"id":"1","login":"liveone","profile_image_url":"https://example.com/1.png"}]}`))
		case "quietone":
			w.Write([]byte(`{"data":[{"id":"2","login":"quietone","profile_image_url":""}]}`))
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte(`{"data":[]}`))
		}
	})
	mux.HandleFunc("/helix/streams", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("user_id") == "1" {
			w.Write([]byte(`{"data":[{"title":"Just chatting","game_name":"IRL","viewer_count":77,"thumbnail_url":"https://example.com/t-{width}x{height}.jpg"}]}`))
			return
		}
		w.Write([]byte(`{"data":[]}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestTwitchAdapter_FetchAll(t *testing.T) {
	server := newTwitchServer(t, http.StatusOK)
	ids := []domain.Identity{{Name: "liveone"}, {Name: "quietone"}, {Name: "ghost"}, {Name: "broken"}}
	a := NewTwitchAdapter(ids, "cid", "secret",
		WithBaseURL(server.URL+"/helix"),
		WithTokenURL(server.URL+"/oauth2/token"),
		WithLogger(logger.Nop()),
	)

	records, err := a.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)

	live := records[0]
	assert.True(t, live.IsLive)
	assert.Equal(t, 77, live.ViewerCount)
	assert.Equal(t, "Just chatting", live.Title)
	assert.Equal(t, "IRL", live.Category)
	assert.Equal(t, "https://example.com/1.png", live.ImageURL)
	assert.Equal(t, "https://example.com/t-440x248.jpg", live.ThumbnailURL)
	assert.Equal(t, "https://twitch.tv/liveone", live.Link)

	quiet := records[1]
	assert.False(t, quiet.IsLive)
	assert.Equal(t, twitchDefaultImage, quiet.ImageURL)

	ghost := records[2]
	assert.False(t, ghost.IsLive)
	assert.False(t, ghost.IsBanned)
	assert.False(t, ghost.FetchError)

	assert.True(t, records[3].FetchError)
}

func TestTwitchAdapter_TokenFailureFailsAdapter(t *testing.T) {
	server := newTwitchServer(t, http.StatusUnauthorized)
	a := NewTwitchAdapter([]domain.Identity{{Name: "liveone"}}, "cid", "bad",
		WithBaseURL(server.URL+"/helix"),
		WithTokenURL(server.URL+"/oauth2/token"),
		WithLogger(logger.Nop()),
	)

	records, err := a.FetchAll(context.Background())
	require.Error(t, err)
	assert.Nil(t, records)
	assert.True(t, errors.Is(err, domain.ErrPlatformUnavailable))
}

func TestTwitchAdapter_FetchOne(t *testing.T) {
	server := newTwitchServer(t, http.StatusOK)
	a := NewTwitchAdapter(nil, "cid", "secret",
		WithBaseURL(server.URL+"/helix"),
		WithTokenURL(server.URL+"/oauth2/token"),
		WithLogger(logger.Nop()),
	)

	st, err := a.FetchOne(context.Background(), "liveone")
	require.NoError(t, err)
	assert.True(t, st.IsLive)
	assert.Equal(t, 77, st.ViewerCount)

	bad := NewTwitchAdapter(nil, "cid", "bad",
		WithBaseURL(server.URL+"/helix"),
		WithTokenURL(newTwitchServer(t, http.StatusUnauthorized).URL+"/oauth2/token"),
		WithLogger(logger.Nop()),
	)
	_, err = bad.FetchOne(context.Background(), "liveone")
	assert.True(t, errors.Is(err, domain.ErrPlatformUnavailable))
}
