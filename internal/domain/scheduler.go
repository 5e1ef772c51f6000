// Package domain defines the scheduling vocabulary shared across the
// platform: the recurring task record, overrun policies for tasks whose
// previous firing is still in flight, and the parameter structs the
// scheduler repositories take.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ScheduledTask is one row of the recurring task table: what fires, how
// often, and what the last firing left behind.
type ScheduledTask struct {
	ID           string          `json:"id"`
	TaskName     string          `json:"task_name"`
	Payload      json.RawMessage `json:"payload"`
	Interval     time.Duration   `json:"interval"`
	LastQueuedAt *time.Time      `json:"last_queued_at,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
	// OverrunPolicy overrides the scheduler default when set.
	OverrunPolicy *OverrunPolicy `json:"overrun_policy,omitempty"`
	// OverrunStates defines which job states block a new firing.
	OverrunStates *OverrunStateMask `json:"overrun_states,omitempty"`
	// ActiveFireKey is the outstanding fire key, when a firing is in
	// flight.
	ActiveFireKey *string `json:"active_fire_key,omitempty"`
}

// OverrunPolicy decides what a due task does while its previous job is
// still outstanding.
type OverrunPolicy string

const (
	// OverrunPolicySkip drops the firing while blocking jobs exist. An
	// expired lease does not block, so a wedged worker cannot starve
	// the task forever.
	OverrunPolicySkip OverrunPolicy = "skip"

	// OverrunPolicyQueue always enqueues, letting firings pile up.
	OverrunPolicyQueue OverrunPolicy = "queue"

	// OverrunPolicyReschedule advances the schedule without enqueueing.
	OverrunPolicyReschedule OverrunPolicy = "reschedule"
)

// UnmarshalText parses an OverrunPolicy from env or JSON text.
func (p *OverrunPolicy) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch OverrunPolicy(v) {
	case OverrunPolicySkip, OverrunPolicyQueue, OverrunPolicyReschedule:
		*p = OverrunPolicy(v)
		return nil
	default:
		return fmt.Errorf("invalid overrun policy: %q", v)
	}
}

// OverrunStateMask selects which job states block a new firing under
// OverrunPolicySkip.
type OverrunStateMask uint8

const (
	// OverrunStateRunning blocks while a job holds a live lease.
	OverrunStateRunning OverrunStateMask = 1 << iota
	// OverrunStatePending blocks while a pending job exists.
	OverrunStatePending
	// OverrunStateRetrying blocks while a pending job has retries
	// behind it.
	OverrunStateRetrying
)

// OverrunStatesDefault blocks only on running jobs.
const OverrunStatesDefault = OverrunStateRunning

// overrunStateNames fixes the textual form and order of the mask, for
// both directions of the text codec.
var overrunStateNames = []struct {
	name string
	flag OverrunStateMask
}{
	{"running", OverrunStateRunning},
	{"pending", OverrunStatePending},
	{"retrying", OverrunStateRetrying},
}

// Has reports whether the mask includes the provided flag.
func (m *OverrunStateMask) Has(flag OverrunStateMask) bool {
	if m == nil {
		return false
	}
	return (*m)&flag != 0
}

// String returns a stable, comma-separated representation of the mask.
func (m *OverrunStateMask) String() string {
	if m == nil || *m == 0 {
		return ""
	}

	var parts []string
	for _, entry := range overrunStateNames {
		if (*m)&entry.flag != 0 {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseOverrunStateMask parses a comma-separated list of state names
// into a mask. An empty string is a zero mask.
func ParseOverrunStateMask(v string) (OverrunStateMask, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}

	var mask OverrunStateMask
	for _, part := range strings.Split(v, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		flag, err := parseOverrunStateName(name)
		if err != nil {
			return 0, err
		}
		mask |= flag
	}
	return mask, nil
}

// MarshalText implements encoding.TextMarshaler.
func (m *OverrunStateMask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *OverrunStateMask) UnmarshalText(text []byte) error {
	mask, err := ParseOverrunStateMask(string(text))
	if err != nil {
		return err
	}
	*m = mask
	return nil
}

func parseOverrunStateName(name string) (OverrunStateMask, error) {
	for _, entry := range overrunStateNames {
		if entry.name == name {
			return entry.flag, nil
		}
	}
	return 0, fmt.Errorf("invalid overrun state: %q", name)
}

// StrategyOptions is the scheduler-wide default overrun strategy.
type StrategyOptions struct {
	Overrun       OverrunPolicy    `json:"overrun"`
	OverrunStates OverrunStateMask `json:"overrun_states"`
}

// FindDueParams holds inputs for transactional FindDue.
type FindDueParams struct {
	Now   time.Time
	Limit int
}

// MarkQueuedParams holds inputs for transactional MarkQueued. A nil
// ActiveFireKey clears the stored key.
type MarkQueuedParams struct {
	ID                 string
	Now                time.Time
	ActiveFireKey      *string
	ActiveFireKeySetAt *time.Time
}

// UpdateActiveFireKeyParams sets or, with a nil FireKey, clears the
// outstanding fire key for a scheduled task.
type UpdateActiveFireKeyParams struct {
	ID      string
	FireKey *string
	SetAt   time.Time
}

// UpsertTaskParams registers or updates one recurring task definition.
type UpsertTaskParams struct {
	TaskName string
	Payload  json.RawMessage
	Interval time.Duration
	// Optional overrides. When nil the stored values are preserved and
	// the scheduler applies its defaults.
	OverrunPolicy *OverrunPolicy
	OverrunStates *OverrunStateMask
}
