package broadcast

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event types published by the auth machine. UI surfaces treat these as the
// sole truth-sync path and re-derive their view whenever one arrives.
const (
	TypeAuthStateChanged = "AUTH_STATE_CHANGED"
	TypeTokenRefreshed   = "TOKEN_REFRESHED"
	TypeSessionExpired   = "SESSION_EXPIRED"
)

// Event is the canonical state-change notification fanned out to observers.
type Event struct {
	Timestamp       time.Time `json:"timestamp"`
	Type            string    `json:"type"`
	FlowState       string    `json:"flowState"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	Email           string    `json:"email,omitempty"`
	ExpiresAt       int64     `json:"expiresAt,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}

// Sink receives emitted broadcast events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops broadcast events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes broadcast events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// FanoutSink forwards every event to a dynamic set of subscriber channels.
// The router uses it to feed concurrently connected UI surfaces; a slow
// subscriber loses events rather than blocking the dispatcher.
type FanoutSink struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func NewFanoutSink() *FanoutSink {
	return &FanoutSink{subs: make(map[int]chan Event)}
}

// Subscribe registers a new observer. The returned cancel function must be
// called when the observer disconnects.
func (s *FanoutSink) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *FanoutSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
