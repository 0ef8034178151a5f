package schedule

import (
	"context"
	"time"

	"PaperDigest/internal/ports"
)

// DailyRetry runs the job on a fixed interval. Attempts are counted per
// calendar day: after the job reports success, or maxAttempts failures, no
// further attempts happen until the day rolls over. The pipeline's own
// ledger makes repeated successful runs cheap, so the driver stays dumb.
type DailyRetry struct {
	interval    time.Duration
	maxAttempts int
	stop        chan struct{}
	now         func() time.Time
}

var _ ports.Scheduler = (*DailyRetry)(nil)

// NewDailyRetry builds a scheduler. interval below one minute is raised to
// one minute; maxAttempts below 1 becomes 1.
func NewDailyRetry(interval time.Duration, maxAttempts int) *DailyRetry {
	if interval < time.Minute {
		interval = time.Minute
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &DailyRetry{
		interval:    interval,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Start begins the attempt loop in a background goroutine. The first attempt
// fires immediately.
func (d *DailyRetry) Start(ctx context.Context, job func(time.Time) bool) error {
	if job == nil {
		return nil
	}
	if d.stop != nil {
		return nil
	}

	d.stop = make(chan struct{})
	go d.loop(ctx, job)
	return nil
}

// Stop halts the attempt loop.
func (d *DailyRetry) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil
	return nil
}

func (d *DailyRetry) loop(ctx context.Context, job func(time.Time) bool) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	var (
		day      string
		attempts int
		settled  bool
	)

	attempt := func(now time.Time) {
		key := now.Format("2006-01-02")
		if key != day {
			day = key
			attempts = 0
			settled = false
		}
		if settled || attempts >= d.maxAttempts {
			return
		}
		attempts++
		if job(now) {
			settled = true
		}
	}

	attempt(d.now())
	for {
		select {
		case now := <-ticker.C:
			attempt(now)
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		}
	}
}
