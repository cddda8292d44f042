package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
	"who-is-live/internal/metrics"
)

// Aggregator runs every platform adapter concurrently and joins their output
type Aggregator struct {
	adapters []domain.PlatformAdapter
	timeout  time.Duration
	metrics  metrics.Recorder
	logger   *logger.Logger
}

// NewAggregator creates an Aggregator. Each adapter gets its own timeout.
func NewAggregator(adapters []domain.PlatformAdapter, timeout time.Duration, rec metrics.Recorder, log *logger.Logger) *Aggregator {
	if rec == nil {
		rec = metrics.Noop{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Aggregator{
		adapters: adapters,
		timeout:  timeout,
		metrics:  rec,
		logger:   log,
	}
}

// Aggregate fetches from all adapters and returns their records flattened
// in registration order, unique by identity key (first occurrence wins).
// A failed or timed-out adapter contributes nothing and is reported.
func (a *Aggregator) Aggregate(ctx context.Context) ([]domain.StreamerStatus, []domain.AdapterReport) {
	results := make([][]domain.StreamerStatus, len(a.adapters))
	reports := make([]domain.AdapterReport, len(a.adapters))

	// Adapter failures never cancel the others
	var g errgroup.Group
	for i, adapter := range a.adapters {
		g.Go(func() error {
			start := time.Now()
			records, err := a.fetch(ctx, adapter)
			elapsed := time.Since(start)

			report := domain.AdapterReport{
				Platform: adapter.Platform(),
				Count:    len(records),
				Duration: elapsed,
			}
			if err != nil {
				report.Err = err.Error()
				report.Count = 0
				records = nil
				a.logger.Error("platform adapter failed", map[string]interface{}{
					"platform": string(adapter.Platform()),
					"duration": elapsed.String(),
					"error":    err.Error(),
				})
			} else {
				a.logger.Debug("platform adapter completed", map[string]interface{}{
					"platform": string(adapter.Platform()),
					"records":  len(records),
					"duration": elapsed.String(),
				})
			}
			a.metrics.ObserveAdapter(string(adapter.Platform()), elapsed, report.Count, err != nil)

			results[i] = records
			reports[i] = report
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[domain.IdentityKey]struct{})
	var out []domain.StreamerStatus
	for _, records := range results {
		for _, r := range records {
			if _, dup := seen[r.Key()]; dup {
				continue
			}
			seen[r.Key()] = struct{}{}
			out = append(out, r)
		}
	}
	return out, reports
}

// fetch runs one adapter under the per-adapter timeout. The timeout is
// enforced even if the adapter ignores its context.
func (a *Aggregator) fetch(ctx context.Context, adapter domain.PlatformAdapter) ([]domain.StreamerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		records []domain.StreamerStatus
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("adapter panicked: %v", r)}
			}
		}()
		records, err := adapter.FetchAll(ctx)
		done <- result{records: records, err: err}
	}()

	select {
	case r := <-done:
		return r.records, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s adapter: %w", adapter.Platform(), ctx.Err())
	}
}
