package segmenter

import "time"

// SentenceTimer measures silence since the last speech activity. Once it has
// fired it stays quiet until restarted, so one idle period yields one timeout.
type SentenceTimer struct {
	timeout time.Duration
	now     func() time.Time

	start time.Time
	fired bool
}

// NewSentenceTimer creates a timer that starts counting immediately
func NewSentenceTimer(timeout time.Duration) *SentenceTimer {
	t := &SentenceTimer{timeout: timeout, now: time.Now}
	t.Restart()
	return t
}

// Restart begins a new idle period
func (t *SentenceTimer) Restart() {
	t.start = t.now()
	t.fired = false
}

// Expired reports whether the idle period is longer than the timeout and the
// timer has not fired yet
func (t *SentenceTimer) Expired() bool {
	if t.fired || t.timeout <= 0 {
		return false
	}
	return t.now().Sub(t.start) > t.timeout
}

// Fire latches the timer until the next Restart
func (t *SentenceTimer) Fire() {
	t.fired = true
}
