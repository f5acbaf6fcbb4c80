package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quizwrap/internal/logger"
)

// Purger drops idle client contexts and reports how many went away
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Cleaner periodically purges expired client contexts
type Cleaner struct {
	purger   Purger
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(purger Purger, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		purger:   purger,
		interval: interval,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	logger.Log.Info("cleanup worker started", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *Cleaner) cleanup(ctx context.Context) {
	n, err := c.purger.PurgeExpired(ctx)
	if err != nil {
		logger.Log.Error("failed to purge expired sessions", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Log.Info("expired sessions purged", zap.Int("count", n))
	}
}
