package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"who-is-live/internal/domain"
	"who-is-live/internal/history"
	"who-is-live/internal/logger"
)

// NeverSeenLive is the last-seen text of identities never observed live
const NeverSeenLive = "Never seen live"

// Tracker maintains last-seen times and viewer trends across refresh cycles
type Tracker struct {
	state  *history.State
	now    func() time.Time
	logger *logger.Logger
}

// NewTracker creates a Tracker over state
func NewTracker(state *history.State, log *logger.Logger) *Tracker {
	if log == nil {
		log = logger.Default()
	}
	return &Tracker{state: state, now: time.Now, logger: log}
}

// RecordObservations stores now as the last-seen time of every live record.
// Each write is persisted immediately.
func (t *Tracker) RecordObservations(ctx context.Context, records []domain.StreamerStatus) {
	now := t.now()
	for _, r := range records {
		if !r.IsLive || r.IsBanned {
			continue
		}
		if err := t.state.SetLastSeen(ctx, r.Key(), now); err != nil {
			t.logger.Warn("failed to persist last-seen time", map[string]interface{}{
				"identity": r.Key().String(),
				"error":    err.Error(),
			})
		}
	}
}

// LastSeen returns a lookup over the stored last-seen times
func (t *Tracker) LastSeen(ctx context.Context) LastSeenLookup {
	return func(k domain.IdentityKey) (time.Time, bool) {
		return t.state.LastSeen(ctx, k)
	}
}

// Annotate fills viewer trends, last-seen fields and the top-streamer flag.
// Previous viewer counts are replaced with the current ones.
func (t *Tracker) Annotate(ctx context.Context, p *domain.Partitions) {
	now := t.now()

	for i := range p.Live {
		r := &p.Live[i]
		prev, ok := t.state.PreviousViewers(ctx, r.Key())
		r.ViewerTrend = ViewerTrend(r.ViewerCount, prev, ok)
		if err := t.state.SetPreviousViewers(ctx, r.Key(), r.ViewerCount); err != nil {
			t.logger.Warn("failed to persist viewer count", map[string]interface{}{
				"identity": r.Key().String(),
				"error":    err.Error(),
			})
		}
		if seen, ok := t.state.LastSeen(ctx, r.Key()); ok {
			r.LastSeenAt = &seen
		}
	}
	markTopStreamers(p.Live)

	for i := range p.Offline {
		r := &p.Offline[i]
		seen, ok := t.state.LastSeen(ctx, r.Key())
		if ok {
			r.LastSeenAt = &seen
		}
		r.LastSeenText = LastSeenText(now, seen, ok)
	}
}

// ViewerTrend is the percentage change from previous to current, rounded
// half up. A missing or zero previous count yields 0.
func ViewerTrend(current, previous int, hasPrevious bool) int {
	if !hasPrevious || previous == 0 {
		previous = current
	}
	if previous == 0 {
		return 0
	}
	pct := float64(current-previous) / float64(previous) * 100
	return int(math.Floor(pct + 0.5))
}

// LastSeenText renders the time since seen in coarse buckets
func LastSeenText(now, seen time.Time, ok bool) string {
	if !ok {
		return NeverSeenLive
	}

	secs := int64(now.Sub(seen) / time.Second)
	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	case secs < 604800:
		return fmt.Sprintf("%dd ago", secs/86400)
	case secs < 2592000:
		return fmt.Sprintf("%dw ago", secs/604800)
	default:
		return fmt.Sprintf("%dmo ago", secs/2592000)
	}
}

// markTopStreamers flags every live record sharing the highest viewer count
func markTopStreamers(live []domain.StreamerStatus) {
	if len(live) == 0 {
		return
	}
	top := live[0].ViewerCount
	for _, r := range live[1:] {
		top = max(top, r.ViewerCount)
	}
	for i := range live {
		live[i].IsTopStreamer = live[i].ViewerCount == top
	}
}
