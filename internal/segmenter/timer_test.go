package segmenter

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestSentenceTimer(t *testing.T) {
	clock := newFakeClock()
	timer := NewSentenceTimer(time.Second)
	timer.now = clock.Now
	timer.Restart()

	if timer.Expired() {
		t.Fatal("Timer should not be expired right after restart")
	}

	clock.Advance(time.Second)
	if timer.Expired() {
		t.Error("Timer should expire only after the timeout has passed")
	}

	clock.Advance(time.Millisecond)
	if !timer.Expired() {
		t.Fatal("Timer should be expired after the timeout")
	}

	timer.Fire()
	clock.Advance(time.Hour)
	if timer.Expired() {
		t.Error("Fired timer should stay quiet until restarted")
	}

	timer.Restart()
	if timer.Expired() {
		t.Error("Restarted timer should not be expired")
	}
	clock.Advance(2 * time.Second)
	if !timer.Expired() {
		t.Error("Restarted timer should expire again")
	}
}

func TestSentenceTimerDisabled(t *testing.T) {
	clock := newFakeClock()
	timer := NewSentenceTimer(0)
	timer.now = clock.Now
	timer.Restart()

	clock.Advance(time.Hour)
	if timer.Expired() {
		t.Error("Timer without timeout should never expire")
	}
}
