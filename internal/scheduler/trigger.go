package scheduler

import (
	"sync"
	"time"
)

// TimerTrigger is a re-armable one-shot timer standing in for a host's
// background task scheduler. Each firing must re-arm the next one.
type TimerTrigger struct {
	mu      sync.Mutex
	delay   time.Duration
	fire    func()
	timer   *time.Timer
	next    time.Time
	stopped bool
}

// NewTimerTrigger returns an unarmed trigger that calls fire no earlier than
// delay after each Rearm.
func NewTimerTrigger(delay time.Duration, fire func()) *TimerTrigger {
	return &TimerTrigger{delay: delay, fire: fire}
}

// Rearm replaces any pending firing with one delay from now.
func (t *TimerTrigger) Rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.next = time.Now().Add(t.delay)
	t.timer = time.AfterFunc(t.delay, t.fire)
}

// Next returns when the trigger will fire, if it is armed.
func (t *TimerTrigger) Next() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.timer == nil {
		return time.Time{}, false
	}
	return t.next, true
}

// Stop cancels the pending firing and ignores later Rearm calls.
func (t *TimerTrigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
