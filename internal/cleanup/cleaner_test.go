package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(ctx context.Context) (int, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestCleaner_RunsUntilCancelled(t *testing.T) {
	p := &countingPurger{}
	c := NewCleaner(p, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestCleaner_SurvivesErrors(t *testing.T) {
	p := &countingPurger{err: errors.New("redis down")}
	c := NewCleaner(p, time.Hour)

	c.cleanup(context.Background())
	c.cleanup(context.Background())
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestNewCleaner_DefaultInterval(t *testing.T) {
	c := NewCleaner(&countingPurger{}, 0)
	assert.Equal(t, 5*time.Minute, c.interval)
}
