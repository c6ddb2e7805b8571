package passless

import (
	"context"
	"testing"
	"time"
)

// gateSink blocks deliveries until released, to force backpressure.
type gateSink struct {
	gate     chan struct{}
	received chan BroadcastEvent
}

func newGateSink() *gateSink {
	return &gateSink{
		gate:     make(chan struct{}),
		received: make(chan BroadcastEvent, 64),
	}
}

func (s *gateSink) Emit(_ context.Context, event BroadcastEvent) {
	<-s.gate
	s.received <- event
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(16)
	d := newBroadcastDispatcher(BroadcastConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), BroadcastEvent{Type: EventAuthStateChanged, FlowState: "PENDING_OTP"})
	d.Emit(context.Background(), BroadcastEvent{Type: EventAuthStateChanged, FlowState: "AUTHENTICATED"})

	first := <-sink.Events()
	second := <-sink.Events()
	if first.FlowState != "PENDING_OTP" || second.FlowState != "AUTHENTICATED" {
		t.Fatalf("delivery order broken: %s then %s", first.FlowState, second.FlowState)
	}
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	d := newBroadcastDispatcher(BroadcastConfig{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}

	// Nil receivers are safe on every method.
	d.Emit(context.Background(), BroadcastEvent{})
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
	d.Close()
}

func TestDispatcherCountsDropsUnderBackpressure(t *testing.T) {
	sink := newGateSink()
	d := newBroadcastDispatcher(BroadcastConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event is taken by the run loop and parks on the gate, one fills the
	// buffer, the rest must be shed.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), BroadcastEvent{Type: EventTokenRefreshed})
	}

	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected dropped events under backpressure")
		case <-time.After(10 * time.Millisecond):
		}
	}

	close(sink.gate)
	d.Close()

	delivered := len(sink.received)
	if uint64(delivered)+d.Dropped() != 10 {
		t.Fatalf("delivered %d + dropped %d != 10", delivered, d.Dropped())
	}
}

func TestDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := NewChannelSink(16)
	d := newBroadcastDispatcher(BroadcastConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), BroadcastEvent{Type: EventAuthStateChanged})
	}
	d.Close()

	if got := len(sink.Events()); got != 5 {
		t.Fatalf("expected 5 drained events, got %d", got)
	}

	// Emits after close are ignored.
	d.Emit(context.Background(), BroadcastEvent{Type: EventAuthStateChanged})
	if got := len(sink.Events()); got != 5 {
		t.Fatalf("emit after close leaked: %d", got)
	}
}
