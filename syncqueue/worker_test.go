package syncqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPasser struct {
	n atomic.Int32
}

func (c *countingPasser) RunPass(ctx context.Context) (PassResult, error) {
	c.n.Add(1)
	return PassResult{}, nil
}

func TestWorker_RunsOnStartAndAfterCommits(t *testing.T) {
	p := &countingPasser{}
	w := NewWorker(p)
	w.Interval = time.Hour
	w.Debounce = 20 * time.Millisecond

	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool { return p.n.Load() == 1 }, time.Second, 5*time.Millisecond)

	// a burst of commits coalesces into one pass
	for i := 0; i < 5; i++ {
		w.Notify()
	}
	assert.Eventually(t, func() bool { return p.n.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return p.n.Load() > 2 }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestWorker_SteadyCommitsDoNotPostponePass(t *testing.T) {
	// GIVEN: commits arriving faster than the debounce window, for longer than it
	// WHEN: the worker is running with a ticker far in the future
	// THEN: commit passes still run while the commits keep coming
	p := &countingPasser{}
	w := NewWorker(p)
	w.Interval = time.Hour
	w.Debounce = 30 * time.Millisecond

	w.Start(context.Background())
	defer w.Stop()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				w.Notify()
			}
		}
	}()

	assert.Eventually(t, func() bool { return p.n.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestWorker_RunsOnTimer(t *testing.T) {
	p := &countingPasser{}
	w := NewWorker(p)
	w.Interval = 20 * time.Millisecond

	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool { return p.n.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestWorker_DisabledNeverRuns(t *testing.T) {
	p := &countingPasser{}
	w := NewWorker(p)
	w.Enabled = false

	w.Start(context.Background())
	w.Notify()
	w.Stop()

	assert.Never(t, func() bool { return p.n.Load() > 0 }, 50*time.Millisecond, 10*time.Millisecond)
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	w := NewWorker(&countingPasser{})
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}
