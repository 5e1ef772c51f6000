package data

import "time"

// TimeProvider is the clock the repositories read instead of calling
// time.Now directly. Lease expiry and schedule due-ness are comparisons
// against "now", so tests inject a fixed clock and move it explicitly.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider is the production clock.
type RealTimeProvider struct{}

func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// FixedTimeProvider is a clock that only moves when a test advances it.
type FixedTimeProvider struct {
	now time.Time
}

func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{now: t}
}

func (f *FixedTimeProvider) Now() time.Time {
	return f.now
}

// AddTime moves the clock forward, or backward with a negative duration.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.now = f.now.Add(d)
}
