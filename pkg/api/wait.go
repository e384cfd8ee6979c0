package api

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type (
	// WaitState is the externally visible state of a wait
	WaitState string

	// TimeUnit scales a numeric wait timeout
	TimeUnit string

	// WaitStatus reports the progress or outcome of a wait
	WaitStatus struct {
		CreatedAt   time.Time `json:"created_at"`
		CompletedAt time.Time `json:"completed_at,omitzero"`
		Deadline    time.Time `json:"deadline,omitzero"`
		ID          WaitID    `json:"id"`
		RunID       RunID     `json:"run_id"`
		State       WaitState `json:"state"`
		Error       string    `json:"error,omitempty"`
		Keys        []string  `json:"keys"`
		TimedOut    bool      `json:"timed_out,omitempty"`
	}
)

const (
	WaitPending   WaitState = "pending"
	WaitSucceeded WaitState = "succeeded"
	WaitFailed    WaitState = "failed"
)

const (
	Nanoseconds  TimeUnit = "NANOSECONDS"
	Microseconds TimeUnit = "MICROSECONDS"
	Milliseconds TimeUnit = "MILLISECONDS"
	Seconds      TimeUnit = "SECONDS"
	Minutes      TimeUnit = "MINUTES"
	Hours        TimeUnit = "HOURS"
	Days         TimeUnit = "DAYS"

	DefaultTimeUnit = Minutes
)

var ErrUnknownTimeUnit = errors.New("unknown time unit")

var timeUnits = map[TimeUnit]time.Duration{
	Nanoseconds:  time.Nanosecond,
	Microseconds: time.Microsecond,
	Milliseconds: time.Millisecond,
	Seconds:      time.Second,
	Minutes:      time.Minute,
	Hours:        time.Hour,
	Days:         24 * time.Hour,
}

// ParseTimeUnit resolves a unit name case-insensitively. An empty name
// resolves to DefaultTimeUnit
func ParseTimeUnit(name string) (TimeUnit, error) {
	if name == "" {
		return DefaultTimeUnit, nil
	}
	u := TimeUnit(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := timeUnits[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeUnit, name)
	}
	return u, nil
}

// Duration scales n by the unit. A zero or negative n yields zero, which
// means wait without a timeout. Results too large for a time.Duration
// saturate at the longest one
func (u TimeUnit) Duration(n int64) time.Duration {
	unit := timeUnits[u]
	if n <= 0 || unit == 0 {
		return 0
	}
	if n > math.MaxInt64/int64(unit) {
		return math.MaxInt64
	}
	return time.Duration(n) * unit
}

// IsDone reports whether the wait has reached a terminal state
func (s *WaitStatus) IsDone() bool {
	return s.State != WaitPending
}
