package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"who-is-live/internal/domain"
	"who-is-live/internal/history"
	"who-is-live/internal/logger"
	"who-is-live/internal/metrics"
)

// RefreshService runs refresh cycles and holds the latest snapshot.
// At most one cycle runs at a time; concurrent callers share its result.
type RefreshService struct {
	aggregator   *Aggregator
	state        *history.State
	tracker      *Tracker
	metrics      metrics.Recorder
	logger       *logger.Logger
	cycleTimeout time.Duration

	group singleflight.Group

	mu       sync.RWMutex
	latest   *domain.Snapshot
	draining bool
	running  sync.WaitGroup

	newID func() string
	now   func() time.Time
}

// NewRefreshService creates a RefreshService. The last persisted snapshot,
// if any, is served as stale until the first cycle completes.
func NewRefreshService(
	aggregator *Aggregator,
	state *history.State,
	cycleTimeout time.Duration,
	rec metrics.Recorder,
	log *logger.Logger,
) *RefreshService {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Default()
	}

	s := &RefreshService{
		aggregator:   aggregator,
		state:        state,
		tracker:      NewTracker(state, log),
		metrics:      rec,
		logger:       log,
		cycleTimeout: cycleTimeout,
		newID:        func() string { return uuid.New().String() },
		now:          time.Now,
	}

	if snap, ok := state.LastSnapshot(context.Background()); ok {
		snap.Stale = true
		s.latest = snap
		log.Info("restored last snapshot", map[string]interface{}{
			"snapshot_id":  snap.ID,
			"completed_at": snap.CompletedAt.Format(time.RFC3339),
			"records":      snap.Partitions.Len(),
		})
	}

	return s
}

// Latest returns the most recent snapshot, or nil before any is available
func (s *RefreshService) Latest() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Refresh runs a cycle, or joins the one already running. If ctx is done
// before the cycle finishes the latest snapshot is returned and the cycle
// keeps running. After Drain it only returns the latest snapshot.
func (s *RefreshService) Refresh(ctx context.Context) *domain.Snapshot {
	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		s.mu.Lock()
		if s.draining {
			s.mu.Unlock()
			return s.Latest(), nil
		}
		s.running.Add(1)
		s.mu.Unlock()
		defer s.running.Done()

		return s.refresh(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		return res.Val.(*domain.Snapshot)
	case <-ctx.Done():
		return s.Latest()
	}
}

// Drain stops new cycles from starting and waits for the running one to
// finish persisting, or for ctx to be done
func (s *RefreshService) Drain(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for refresh cycle: %w", ctx.Err())
	}
}

func (s *RefreshService) refresh(ctx context.Context) *domain.Snapshot {
	start := s.now()
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	records, reports := s.aggregator.Aggregate(ctx)

	if allFailed(reports) {
		snap := s.markStale(reports)
		s.logger.Error("all platform adapters failed, serving previous snapshot", map[string]interface{}{
			"adapters":    len(reports),
			"snapshot_id": snap.ID,
		})
		s.metrics.ObserveRefresh(s.now().Sub(start), len(snap.Partitions.Live), len(snap.Partitions.Offline), len(snap.Partitions.Banned), true)
		return snap
	}

	s.tracker.RecordObservations(ctx, records)

	previous := s.state.PreviousBanned(ctx)
	parts, transitions := Classify(records, previous, s.tracker.LastSeen(ctx))
	s.tracker.Annotate(ctx, &parts)

	snap := &domain.Snapshot{
		ID:          s.newID(),
		CompletedAt: s.now(),
		Partitions:  parts,
		Transitions: transitions,
		Reports:     reports,
	}

	s.forgetDropped(ctx, transitions)
	if err := s.state.SetPreviousBanned(ctx, NextPreviousBanned(parts, transitions)); err != nil {
		s.logger.Warn("failed to persist banned identities", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := s.state.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Warn("failed to persist snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	s.logTransitions(transitions)
	s.logger.Info("refresh completed", map[string]interface{}{
		"snapshot_id": snap.ID,
		"live":        len(parts.Live),
		"offline":     len(parts.Offline),
		"banned":      len(parts.Banned),
		"duration":    s.now().Sub(start).String(),
	})
	s.metrics.ObserveRefresh(s.now().Sub(start), len(parts.Live), len(parts.Offline), len(parts.Banned), false)

	return snap
}

// markStale keeps the previous snapshot visible, flagged stale. History is
// left untouched.
func (s *RefreshService) markStale(reports []domain.AdapterReport) *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap domain.Snapshot
	if s.latest != nil {
		snap = *s.latest
	} else {
		snap = domain.Snapshot{
			ID: s.newID(),
			Partitions: domain.Partitions{
				Live:    []domain.StreamerStatus{},
				Offline: []domain.StreamerStatus{},
				Banned:  []domain.StreamerStatus{},
			},
		}
	}
	snap.Stale = true
	snap.Reports = reports
	s.latest = &snap
	return &snap
}

// forgetDropped deletes the history of banned identities that are no longer
// observed at all and are not kept in a durable banned set
func (s *RefreshService) forgetDropped(ctx context.Context, tr domain.BanTransitions) {
	unchecked := make(map[domain.IdentityKey]bool, len(tr.Unchecked))
	for _, k := range tr.Unchecked {
		unchecked[k] = true
	}

	for _, k := range tr.Dropped {
		if unchecked[k] || slices.Contains(s.state.BannedSet(ctx, k.Platform), k.Name) {
			continue
		}
		if err := s.state.Forget(ctx, k); err != nil {
			s.logger.Warn("failed to delete history", map[string]interface{}{
				"identity": k.String(),
				"error":    err.Error(),
			})
		}
	}
}

func (s *RefreshService) logTransitions(tr domain.BanTransitions) {
	for _, k := range tr.NewlyBanned {
		s.logger.Info("streamer banned", map[string]interface{}{
			"platform": string(k.Platform),
			"streamer": k.Name,
		})
	}
	for _, k := range tr.Unbanned {
		s.logger.Info("streamer unbanned", map[string]interface{}{
			"platform": string(k.Platform),
			"streamer": k.Name,
		})
	}
	for _, k := range tr.Unchecked {
		s.logger.Warn("banned streamer could not be checked", map[string]interface{}{
			"platform": string(k.Platform),
			"streamer": k.Name,
		})
	}
	for _, k := range tr.Dropped {
		if slices.Contains(tr.Unchecked, k) {
			continue
		}
		s.logger.Info("banned streamer no longer observed", map[string]interface{}{
			"platform": string(k.Platform),
			"streamer": k.Name,
		})
	}
}

func allFailed(reports []domain.AdapterReport) bool {
	if len(reports) == 0 {
		return false
	}
	for _, r := range reports {
		if !r.Failed() {
			return false
		}
	}
	return true
}
