package lightnode

import (
	"sync"
	"time"
)

const (
	// WakeLead is how far ahead of the next ping time the one-shot wake-up
	// fires. Waking early leaves room to poll, sign and respond within the
	// window without keeping the device awake on a short interval.
	WakeLead = 120 * time.Second
	// checkWindowBefore/After bound the span around the next ping time in
	// which a forced periodic check is allowed to touch the network at all.
	checkWindowBefore = 300 * time.Second
	checkWindowAfter  = 180 * time.Second
)

// WithinCheckWindow reports whether now is close enough to the expected ping
// time that a background check should perform remote calls. Outside the
// window the check must be a no-op.
func WithinCheckWindow(now, pingAt time.Time) bool {
	return !now.Before(pingAt.Add(-checkWindowBefore)) && !now.After(pingAt.Add(checkWindowAfter))
}

// WakeScheduler owns the single outstanding one-shot wake-up for a node.
// Scheduling is idempotent: any pending wake is cancelled before the new one
// is armed, so double-scheduling cannot occur.
type WakeScheduler struct {
	mu     sync.Mutex
	timer  *time.Timer
	pingAt time.Time
	armed  bool
	clock  func() time.Time
}

func NewWakeScheduler() *WakeScheduler {
	return &WakeScheduler{clock: time.Now}
}

// Schedule arms a wake-up WakeLead before pingAt and returns the wake time.
// A ping time already closer than the lead fires the wake immediately.
func (s *WakeScheduler) Schedule(pingAt time.Time, fire func()) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	wakeAt := pingAt.Add(-WakeLead)
	delay := wakeAt.Sub(s.clock())
	if delay < 0 {
		delay = 0
	}
	s.pingAt = pingAt
	s.armed = true
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.armed = false
		s.mu.Unlock()
		fire()
	})
	return wakeAt
}

// Cancel drops any pending wake-up. Safe to call when none is armed.
func (s *WakeScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

func (s *WakeScheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armed = false
}

// Pending returns the ping time the armed wake-up targets, if any.
func (s *WakeScheduler) Pending() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingAt, s.armed
}
