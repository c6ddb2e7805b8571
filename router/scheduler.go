package router

import (
	"context"
	"sync"
	"time"

	"github.com/passless/passless"
	"github.com/passless/passless/internal/flows"
	"github.com/passless/passless/internal/logging"
)

// Scheduler owns the single proactive-refresh timer. It wakes up a margin
// before the access token expires, refreshes silently, and re-arms itself
// from the new expiry. A refresh failure cancels the timer; the machine has
// already dropped to logged out by then.
type Scheduler struct {
	machine *passless.Machine
	margin  time.Duration
	minWait time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	// now is swapped in tests.
	now func() time.Time
}

// NewScheduler reads margin and minimum delay from the machine's config.
func NewScheduler(m *passless.Machine) *Scheduler {
	cfg := m.Config()
	return &Scheduler{
		machine: m,
		margin:  cfg.Session.RefreshMargin,
		minWait: cfg.Session.MinRefreshDelay,
		now:     time.Now,
	}
}

// Arm derives the next wake-up from the persisted access expiry. Called
// after login, after every successful refresh, and on process start. When
// the token is already inside the margin the refresh runs immediately.
func (s *Scheduler) Arm(ctx context.Context) {
	expiry, ok, err := s.machine.AccessExpiry(ctx)
	if err != nil {
		logging.Warn("scheduler", "arm skipped: %v", err)
		return
	}
	if !ok {
		s.Cancel()
		return
	}

	if flows.NeedsRefresh(expiry, s.now(), s.margin) {
		go s.fire()
		return
	}

	delay := expiry.Sub(s.now()) - s.margin
	if delay < s.minWait {
		delay = s.minWait
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, s.fire)
	logging.Debug("scheduler", "refresh armed in %s", delay)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}

	ctx := context.Background()
	if _, err := s.machine.RefreshNow(ctx); err != nil {
		logging.Warn("scheduler", "silent refresh failed: %v", err)
		s.Cancel()
		return
	}
	s.Arm(ctx)
}

// Cancel stops the pending wake-up, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Close cancels permanently.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
}
