package pool

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

/*
Cleaner periodically sweeps the pool for clients that have been inactive
past the timeout.  Run it in its own goroutine; it stops when the context
is cancelled.
*/
type Cleaner struct {
	pool     *Pool
	interval time.Duration
	timeout  time.Duration
}

func NewCleaner(pool *Pool, interval, timeout time.Duration) *Cleaner {
	if interval <= 0 {
		interval = time.Hour
	}

	if timeout <= 0 {
		timeout = 4 * time.Hour
	}

	return &Cleaner{pool: pool, interval: interval, timeout: timeout}
}

func (cleaner *Cleaner) Run(ctx context.Context) {
	log.Info(
		"cleanup scheduler running",
		"interval", cleaner.interval,
		"inactive_timeout", cleaner.timeout,
	)

	ticker := time.NewTicker(cleaner.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("cleanup scheduler stopped")
			return
		case <-ticker.C:
			if evicted := cleaner.pool.EvictIdle(cleaner.timeout); evicted > 0 {
				log.Info(
					"cleanup pass finished",
					"evicted", evicted,
					"remaining", cleaner.pool.Size(),
				)
			}
		}
	}
}
