// Package adapter queries streaming platforms for the status of the
// configured streamers. Each adapter normalizes its platform's response into
// domain.StreamerStatus records and degrades per-streamer failures into
// error-flagged offline records.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4

	// browserUserAgent is sent to endpoints that reject non-browser clients
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Option configures an adapter
type Option func(*settings)

type settings struct {
	baseURL     string
	tokenURL    string
	httpClient  *http.Client
	concurrency int
	log         *logger.Logger
}

func newSettings(baseURL string, opts []Option) settings {
	s := settings{
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		concurrency: defaultConcurrency,
		log:         logger.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithBaseURL overrides the platform endpoint, mainly for tests
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithTokenURL overrides the OAuth2 token endpoint, mainly for tests
func WithTokenURL(u string) Option {
	return func(s *settings) { s.tokenURL = u }
}

// WithHTTPClient sets the HTTP client used for platform requests
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithRequestTimeout sets the per-request timeout of the default HTTP client
func WithRequestTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithConcurrency caps the number of in-flight per-streamer queries
func WithConcurrency(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the adapter logger
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// StatusError is returned when a platform answers with an unexpected status
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// doJSON executes req and decodes a 200 response body into out
func doJSON(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorRecord is the synthetic record produced when one streamer could not
// be queried. It is offline and never banned.
func errorRecord(platform domain.Platform, name, imageURL, link string) domain.StreamerStatus {
	return domain.StreamerStatus{
		Platform:   platform,
		Name:       name,
		ImageURL:   imageURL,
		Link:       link,
		FetchError: true,
	}
}

func logFetchError(log *logger.Logger, platform domain.Platform, name string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn("streamer query timed out", map[string]interface{}{
			"platform": string(platform),
			"streamer": name,
		})
		return
	}
	log.Warn("streamer query failed", map[string]interface{}{
		"platform": string(platform),
		"streamer": name,
		"error":    err.Error(),
	})
}
