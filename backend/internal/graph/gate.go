package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errGateTimeout = errors.New("graph write gate: acquisition timed out")

// gate orders graph writes against snapshot capture and restore. Ordinary
// writes hold it shared; snapshot operations hold it exclusively. Waiting is
// bounded by timeout and never blocks past ctx.
type gate struct {
	mu      sync.RWMutex
	timeout time.Duration

	// exclusiveWaiting stops new shared holders from starving an exclusive
	// acquirer.
	exclusiveWaiting atomic.Int32
}

func newGate(timeout time.Duration) *gate {
	return &gate{timeout: timeout}
}

func (g *gate) acquire(ctx context.Context, exclusive bool) (release func(), err error) {
	try := func() bool {
		if g.exclusiveWaiting.Load() > 0 {
			return false
		}
		return g.mu.TryRLock()
	}
	release = g.mu.RUnlock
	if exclusive {
		g.exclusiveWaiting.Add(1)
		defer g.exclusiveWaiting.Add(-1)
		try = g.mu.TryLock
		release = g.mu.Unlock
	}

	deadline := time.Now().Add(g.timeout)
	backoff := 500 * time.Microsecond
	for {
		if try() {
			return release, nil
		}
		if !time.Now().Before(deadline) {
			return nil, errGateTimeout
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		if backoff < 20*time.Millisecond {
			backoff *= 2
		}
	}
}
