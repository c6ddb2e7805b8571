package passless

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/passless/passless/internal/broadcast"
)

// broadcastDispatcher decouples state transitions from observer delivery.
// Emitting never blocks a flow when DropIfFull is set; shed events are
// counted, not silently lost.
type broadcastDispatcher struct {
	cfg       BroadcastConfig
	sink      BroadcastSink
	ch        chan broadcast.Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newBroadcastDispatcher(cfg BroadcastConfig, sink BroadcastSink) *broadcastDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &broadcastDispatcher{
		cfg:  cfg,
		sink: sink,
		ch:   make(chan broadcast.Event, cfg.BufferSize),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *broadcastDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever is already buffered, then stop.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues one event for delivery. Safe to call on a nil dispatcher.
func (d *broadcastDispatcher) Emit(ctx context.Context, event broadcast.Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Dropped reports how many events were shed under backpressure.
func (d *broadcastDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops the dispatcher after draining buffered events.
func (d *broadcastDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}
