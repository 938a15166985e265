package scraper

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a minimum interval between requests to one source. Each
// source gets exactly one pacer per process; concurrent callers contend on a
// single last-request timestamp, which is reserved under the lock before the
// sleep so two waiters can never claim the same slot.
type pacer struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
}

func newPacer(minInterval time.Duration) *pacer {
	return &pacer{minInterval: minInterval}
}

// wait blocks until the caller may issue the next request, or until the
// context is done.
func (p *pacer) wait(ctx context.Context) error {
	if p.minInterval <= 0 {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	next := p.last.Add(p.minInterval)
	var sleep time.Duration
	if next.After(now) {
		sleep = next.Sub(now)
		p.last = next
	} else {
		p.last = now
	}
	p.mu.Unlock()

	if sleep <= 0 {
		return nil
	}

	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
