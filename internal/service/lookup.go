package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

// LookupService checks a single streamer on demand through the adapter of
// its platform. Concurrent lookups of the same identity share one query.
type LookupService struct {
	checkers map[domain.Platform]domain.StreamerChecker
	timeout  time.Duration
	logger   *logger.Logger
	group    singleflight.Group
}

// NewLookupService indexes the adapters that support single lookups by
// platform. The first adapter registered for a platform wins.
func NewLookupService(adapters []domain.PlatformAdapter, timeout time.Duration, log *logger.Logger) *LookupService {
	if log == nil {
		log = logger.Default()
	}
	checkers := make(map[domain.Platform]domain.StreamerChecker, len(adapters))
	for _, a := range adapters {
		c, ok := a.(domain.StreamerChecker)
		if !ok {
			continue
		}
		if _, dup := checkers[c.Platform()]; !dup {
			checkers[c.Platform()] = c
		}
	}
	return &LookupService{checkers: checkers, timeout: timeout, logger: log}
}

// Lookup returns the current status of one streamer. It fails with
// domain.ErrNotFound when the platform is not enabled and with
// domain.ErrPlatformUnavailable when the platform could not answer.
func (s *LookupService) Lookup(ctx context.Context, platform domain.Platform, name string) (domain.StreamerStatus, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.StreamerStatus{}, fmt.Errorf("%w: streamer name is required", domain.ErrInvalidInput)
	}
	checker, ok := s.checkers[platform]
	if !ok {
		return domain.StreamerStatus{}, fmt.Errorf("%w: platform %s is not enabled", domain.ErrNotFound, platform)
	}

	key := domain.IdentityKey{Platform: platform, Name: strings.ToLower(name)}
	ch := s.group.DoChan(key.String(), func() (interface{}, error) {
		qctx := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(qctx, s.timeout)
			defer cancel()
		}
		return checker.FetchOne(qctx, name)
	})

	select {
	case <-ctx.Done():
		return domain.StreamerStatus{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.StreamerStatus{}, res.Err
		}
		status := res.Val.(domain.StreamerStatus)
		if status.FetchError {
			return domain.StreamerStatus{}, fmt.Errorf("%w: %s/%s could not be checked", domain.ErrPlatformUnavailable, platform, status.Name)
		}
		s.logger.Debug("streamer looked up", map[string]interface{}{
			"platform": string(platform),
			"streamer": status.Name,
			"live":     status.IsLive,
			"banned":   status.IsBanned,
		})
		return status, nil
	}
}
