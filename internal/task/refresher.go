package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"who-is-live/internal/domain"
	"who-is-live/internal/logger"
)

// Refresher runs a refresh cycle on a fixed interval. A tick that arrives
// while the previous cycle is still running is skipped.
type Refresher struct {
	svc      domain.StatusService
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher creates a new Refresher instance
func NewRefresher(svc domain.StatusService, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.Default()
	}
	return &Refresher{
		svc:      svc,
		interval: interval,
		logger:   log,
	}
}

// Start schedules the periodic refresh and runs one cycle immediately
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return fmt.Errorf("refresher already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{r.logger}
	c := cron.New(cron.WithLogger(cl))
	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		r.runOnce(ctx)
	}))
	c.Schedule(cron.Every(r.interval), job)

	r.cron = c
	r.cancel = cancel
	c.Start()

	// Run immediately on start
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		job.Run()
	}()

	r.logger.Info("refresher started", map[string]interface{}{
		"interval": r.interval.String(),
	})
	return nil
}

// Stop cancels pending work and waits for running cycles to return
func (r *Refresher) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	r.wg.Wait()
	r.logger.Info("refresher stopped", nil)
}

func (r *Refresher) runOnce(ctx context.Context) {
	snap := r.svc.Refresh(ctx)
	if snap == nil {
		return
	}
	if snap.Stale {
		r.logger.Warn("scheduled refresh produced a stale snapshot", map[string]interface{}{
			"snapshot_id": snap.ID,
		})
	}
}

// cronLogger routes cron's own logging through the application logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	l.log.Error("cron: "+msg, fields)
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2+1)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
