package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"who-is-live/internal/adapter"
	"who-is-live/internal/config"
	"who-is-live/internal/domain"
	"who-is-live/internal/history"
	"who-is-live/internal/logger"
	"who-is-live/internal/metrics"
	"who-is-live/internal/middleware"
	"who-is-live/internal/service"
)

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) domain.StreamerStatus {
	t.Helper()
	var st domain.StreamerStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("failed to decode status: %v; body=%s", err, w.Body.String())
	}
	return st
}

func TestHandleStreamer(t *testing.T) {
	lookup := &mockLookup{status: domain.StreamerStatus{Platform: domain.PlatformTwitch, Name: "grimoire", IsLive: true, ViewerCount: 40}}
	router := newTestRouter(&mockStatusService{}, lookup, metrics.Noop{}, logger.Nop())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/streamers/Twitch/grimoire", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if st := decodeStatus(t, w); !st.IsLive || st.ViewerCount != 40 {
		t.Errorf("Unexpected status %+v", st)
	}
	want := domain.IdentityKey{Platform: domain.PlatformTwitch, Name: "grimoire"}
	if len(lookup.calls) != 1 || lookup.calls[0] != want {
		t.Errorf("Expected one lookup of %v, got %v", want, lookup.calls)
	}
}

func TestHandleStreamer_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
	}{
		{"unknown platform", "/api/streamers/myspace/tom", nil, http.StatusBadRequest},
		{"platform not enabled", "/api/streamers/twitch/grimoire", fmt.Errorf("%w: platform twitch is not enabled", domain.ErrNotFound), http.StatusNotFound},
		{"platform unavailable", "/api/streamers/twitch/grimoire", fmt.Errorf("%w: twitch app token", domain.ErrPlatformUnavailable), http.StatusServiceUnavailable},
		{"unexpected failure", "/api/streamers/dlive/sam", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockStatusService{}, &mockLookup{err: tt.err}, metrics.Noop{}, logger.Nop())

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("Expected error body, got %s", w.Body.String())
			}
		})
	}
}

func TestWriteError_LogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.LevelError, &buf)
	lookup := &mockLookup{err: fmt.Errorf("%w: dlive down", domain.ErrPlatformUnavailable)}
	router := newTestRouter(&mockStatusService{}, lookup, metrics.Noop{}, log)

	req := httptest.NewRequest(http.MethodGet, "/api/streamers/dlive/sam", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("Expected request_id req-42 in error log, got %v", entry["request_id"])
	}
	if entry["path"] != "/api/streamers/dlive/sam" {
		t.Errorf("Expected path in error log, got %v", entry["path"])
	}
}

func TestHandleStreamer_ThroughAdapters(t *testing.T) {
	kickAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/murda") {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"slug":"murda","livestream":{"session_title":"Night walk","viewer_count":12}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer kickAPI.Close()

	state := history.New(history.NewMemoryStore(), logger.Nop())
	kick := adapter.NewKickAdapter([]domain.Identity{{Name: "murda"}}, nil, state,
		adapter.WithBaseURL(kickAPI.URL), adapter.WithLogger(logger.Nop()))
	youtube := adapter.NewYouTubeAdapter([]domain.Identity{{Name: "Scheduled", ID: "UCsched"}}, config.DefaultScheduledKeywords,
		youTubeResults{"UCsched": {IsLive: true, Title: "Live", Viewers: 300}}, adapter.WithLogger(logger.Nop()))

	lookup := service.NewLookupService([]domain.PlatformAdapter{kick, youtube}, time.Second, logger.Nop())
	router := newTestRouter(&mockStatusService{}, lookup, metrics.Noop{}, logger.Nop())

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/api/streamers/kick/murda")
	if st := decodeStatus(t, w); w.Code != http.StatusOK || !st.IsLive || st.ViewerCount != 12 {
		t.Errorf("Expected murda live with 12 viewers, got %d %+v", w.Code, st)
	}

	w = get("/api/streamers/kick/gone")
	if st := decodeStatus(t, w); w.Code != http.StatusOK || !st.IsBanned || st.BanReason != adapter.KickBanReason {
		t.Errorf("Expected a Kick 404 to report a ban, got %d %+v", w.Code, st)
	}

	w = get("/api/streamers/youtube/scheduled")
	if st := decodeStatus(t, w); w.Code != http.StatusOK || st.IsLive || st.Name != "Scheduled" {
		t.Errorf("Expected the heuristic to reject a title of just Live, got %d %+v", w.Code, st)
	}

	if w = get("/api/streamers/dlive/sam"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a platform without an adapter, got %d", w.Code)
	}
}

type youTubeResults map[string]*adapter.YouTubeProbeResult

func (y youTubeResults) Probe(_ context.Context, channelID string) (*adapter.YouTubeProbeResult, error) {
	if r, ok := y[channelID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("no channel %s", channelID)
}
