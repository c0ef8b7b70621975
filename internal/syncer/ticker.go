package syncer

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is how often the reconciliation tick runs.
const DefaultTickInterval = 1 * time.Second

// Ticker drives the synchronizer's Tick on a fixed interval and
// publishes each resulting snapshot. The rendering layer subscribes to
// the channel; it never polls the backend itself.
type Ticker struct {
	syncer   *Synchronizer
	interval time.Duration

	snapshots chan Snapshot

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTicker creates a ticker for the given synchronizer. A zero
// interval means DefaultTickInterval.
func NewTicker(s *Synchronizer, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Ticker{
		syncer:    s,
		interval:  interval,
		snapshots: make(chan Snapshot, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Snapshots is the stream of reconciled view-models.
func (t *Ticker) Snapshots() <-chan Snapshot {
	return t.snapshots
}

// Start begins the tick loop.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.loop()
}

// Stop terminates the loop and waits for it to exit.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
}

func (t *Ticker) loop() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			snap := t.syncer.Tick(t.ctx)
			// Drop the stale snapshot if the consumer lags; the next
			// tick supersedes it anyway.
			select {
			case t.snapshots <- snap:
			default:
				select {
				case <-t.snapshots:
				default:
				}
				select {
				case t.snapshots <- snap:
				default:
				}
			}
		}
	}
}
