package job

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// The store persists lease expiry as whole seconds, and a zero-second
// lease would expire the moment it was granted.
const minLeaseSeconds = 1

// LeaseSource identifies how a lease duration was resolved.
type LeaseSource string

const (
	LeaseSourceExplicit LeaseSource = "explicit"
	LeaseSourceDefault  LeaseSource = "default"
	LeaseSourceClamped  LeaseSource = "clamped"
)

// LeasePolicy normalizes the lease durations workers request when
// reserving or extending a job. Durations are truncated to whole
// seconds and clamped to at least one; a zero request means the
// configured default.
type LeasePolicy struct {
	defaultLease time.Duration
}

func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the configured default lease duration.
func (p *LeasePolicy) Default() time.Duration {
	return p.defaultLease
}

// LeaseDecision is the resolved lease alongside how it was arrived at,
// so callers can log adjusted requests.
type LeaseDecision struct {
	Seconds   int
	Source    LeaseSource
	Requested time.Duration
}

// Clamped reports whether the request was adjusted to fit the supported range.
func (d LeaseDecision) Clamped() bool {
	return d.Source == LeaseSourceClamped
}

// Resolve turns a requested duration into the seconds the store accepts.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	switch {
	case request < 0:
		return LeaseDecision{Seconds: minLeaseSeconds, Source: LeaseSourceClamped, Requested: request}
	case request == 0:
		seconds, _ := leaseSeconds(p.defaultLease)
		return LeaseDecision{Seconds: seconds, Source: LeaseSourceDefault, Requested: request}
	}

	seconds, clamped := leaseSeconds(request)
	source := LeaseSourceExplicit
	if clamped {
		source = LeaseSourceClamped
	}
	return LeaseDecision{Seconds: seconds, Source: source, Requested: request}
}

// leaseSeconds truncates to whole seconds and reports whether the value
// had to be clamped into the representable range.
func leaseSeconds(d time.Duration) (int, bool) {
	seconds := int64(d / time.Second)
	switch {
	case seconds < minLeaseSeconds:
		return minLeaseSeconds, true
	case seconds > math.MaxInt:
		return math.MaxInt, true
	}
	return int(seconds), false
}
