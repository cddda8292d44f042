package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

func TestDLiveAdapter_FetchAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var body struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "userByDisplayName")

		w.Header().Set("Content-Type", "application/json")
		switch body.Variables["displayname"] {
		case "OnAir":
			w.Write([]byte(`{"data":{"userByDisplayName":{"displayname":"OnAir","avatar":"https://images.dlive.tv/a.png",
				"livestream":{"title":"Road trip","watchingCount":"31","thumbnailUrl":"https://images.dlive.tv/t.png","category":{"title":"IRL"}}}}}`))
		case "Resting":
			w.Write([]byte(`{"data":{"userByDisplayName":{"displayname":"Resting","avatar":"","livestream":null}}}`))
		case "Nobody":
			w.Write([]byte(`{"data":{"userByDisplayName":null}}`))
		default:
			w.Write([]byte(`{"errors":[{"message":"rate limited"}]}`))
		}
	}))
	defer server.Close()

	ids := []domain.Identity{{Name: "OnAir"}, {Name: "Resting"}, {Name: "Nobody"}, {Name: "Erroring"}}
	a := NewDLiveAdapter(ids, WithBaseURL(server.URL), WithLogger(logger.Nop()))

	records, err := a.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)

	onAir := records[0]
	assert.True(t, onAir.IsLive)
	assert.Equal(t, 31, onAir.ViewerCount)
	assert.Equal(t, "Road trip", onAir.Title)
	assert.Equal(t, "IRL", onAir.Category)
	assert.Equal(t, "https://images.dlive.tv/a.png", onAir.ImageURL)
	assert.Equal(t, "https://dlive.tv/OnAir", onAir.Link)

	resting := records[1]
	assert.False(t, resting.IsLive)
	assert.Equal(t, "https://dlive.tv/avatar/Resting", resting.ImageURL)

	for _, r := range records[2:] {
		assert.True(t, r.FetchError, r.Name)
		assert.False(t, r.IsBanned, r.Name)
		assert.False(t, r.IsLive, r.Name)
	}
}

func TestWatchingCount_Unmarshal(t *testing.T) {
	tests := map[string]int{
		`12`:   12,
		`"34"`: 34,
		`""`:   0,
		`null`: 0,
	}
	for in, want := range tests {
		var w watchingCount
		require.NoError(t, json.Unmarshal([]byte(in), &w), in)
		assert.Equal(t, want, int(w), in)
	}
}
