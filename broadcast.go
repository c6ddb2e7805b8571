package passless

import (
	"io"

	"github.com/passless/passless/internal/broadcast"
)

// BroadcastEvent is the state-change notification fanned out to UI surfaces.
type BroadcastEvent = broadcast.Event

// BroadcastSink receives emitted events. Implementations must be safe for
// concurrent use; the dispatcher calls Emit from a single goroutine but
// sinks may be shared.
type BroadcastSink = broadcast.Sink

// Broadcast event types.
const (
	EventAuthStateChanged = broadcast.TypeAuthStateChanged
	EventTokenRefreshed   = broadcast.TypeTokenRefreshed
	EventSessionExpired   = broadcast.TypeSessionExpired
)

// NoOpSink drops every event.
type NoOpSink = broadcast.NoOpSink

// NewChannelSink buffers events in a channel, for tests and simple embeds.
func NewChannelSink(buffer int) *broadcast.ChannelSink {
	return broadcast.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event line.
func NewJSONWriterSink(w io.Writer) *broadcast.JSONWriterSink {
	return broadcast.NewJSONWriterSink(w)
}

// NewFanoutSink feeds a dynamic set of subscribers, used by the router's
// event stream.
func NewFanoutSink() *broadcast.FanoutSink {
	return broadcast.NewFanoutSink()
}
