package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
	"who-is-live/internal/metrics"
)

// fakeAdapter returns canned records. The records may be swapped between
// cycles with set.
type fakeAdapter struct {
	platform domain.Platform
	mu       sync.Mutex
	records  []domain.StreamerStatus
	err      error
	// sleep ignores the context to simulate a hung adapter
	sleep time.Duration
	// gate blocks FetchAll until closed
	gate  chan struct{}
	calls atomic.Int32
}

func (f *fakeAdapter) Platform() domain.Platform { return f.platform }

func (f *fakeAdapter) FetchAll(ctx context.Context) ([]domain.StreamerStatus, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.sleep > 0 {
		time.Sleep(f.sleep)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.StreamerStatus(nil), f.records...), nil
}

func (f *fakeAdapter) set(records []domain.StreamerStatus, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.err = err
}

type panicAdapter struct{}

func (panicAdapter) Platform() domain.Platform { return domain.PlatformDLive }

func (panicAdapter) FetchAll(context.Context) ([]domain.StreamerStatus, error) {
	panic("boom")
}

func newTestAggregator(timeout time.Duration, adapters ...domain.PlatformAdapter) *Aggregator {
	return NewAggregator(adapters, timeout, metrics.Noop{}, logger.Nop())
}

func TestAggregator_JoinsInRegistrationOrder(t *testing.T) {
	kick := &fakeAdapter{platform: domain.PlatformKick, records: []domain.StreamerStatus{
		live(domain.PlatformKick, "a", 1),
		offline(domain.PlatformKick, "b"),
	}}
	twitch := &fakeAdapter{platform: domain.PlatformTwitch, records: []domain.StreamerStatus{
		offline(domain.PlatformTwitch, "a"),
	}}

	records, reports := newTestAggregator(time.Second, kick, twitch).Aggregate(context.Background())

	require.Len(t, records, 3)
	assert.Equal(t, domain.PlatformKick, records[0].Platform)
	assert.Equal(t, domain.PlatformTwitch, records[2].Platform)
	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[0].Count)
	assert.Equal(t, 1, reports[1].Count)
	assert.False(t, reports[0].Failed())
}

func TestAggregator_DeduplicatesByKey(t *testing.T) {
	first := &fakeAdapter{platform: domain.PlatformKick, records: []domain.StreamerStatus{
		live(domain.PlatformKick, "dup", 10),
	}}
	second := &fakeAdapter{platform: domain.PlatformKick, records: []domain.StreamerStatus{
		offline(domain.PlatformKick, "dup"),
	}}

	records, _ := newTestAggregator(time.Second, first, second).Aggregate(context.Background())

	require.Len(t, records, 1)
	assert.True(t, records[0].IsLive, "first occurrence wins")
}

func TestAggregator_FailureIsIsolated(t *testing.T) {
	ok := &fakeAdapter{platform: domain.PlatformKick, records: []domain.StreamerStatus{
		live(domain.PlatformKick, "a", 1),
	}}
	bad := &fakeAdapter{platform: domain.PlatformTwitch, err: errors.New("credentials rejected")}

	records, reports := newTestAggregator(time.Second, ok, bad, panicAdapter{}).Aggregate(context.Background())

	assert.Len(t, records, 1)
	assert.False(t, reports[0].Failed())
	assert.Equal(t, "credentials rejected", reports[1].Err)
	assert.Contains(t, reports[2].Err, "panicked")
}

func TestAggregator_TimeoutBoundsHungAdapter(t *testing.T) {
	hung := &fakeAdapter{platform: domain.PlatformYouTube, sleep: 2 * time.Second}
	fast := &fakeAdapter{platform: domain.PlatformKick, records: []domain.StreamerStatus{
		offline(domain.PlatformKick, "a"),
	}}

	start := time.Now()
	records, reports := newTestAggregator(50*time.Millisecond, hung, fast).Aggregate(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	assert.Len(t, records, 1)
	assert.True(t, reports[0].Failed())
	assert.Contains(t, reports[0].Err, context.DeadlineExceeded.Error())
}
