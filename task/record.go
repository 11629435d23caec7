// Package task carries the mutable lifecycle record of a single scheduled
// task and the rules that drive it through scheduling, attempts, backoff,
// retry, expiry, and final failure.
package task

import "time"

// Record is the persisted shape of a single task. All time fields are nil
// to represent the null/unset case described by the data model: a nil
// RunAt means the task is permanently shelved (finally failed), a nil
// ExpireAt means no expiry.
type Record struct {
	ID           int64
	Queue        string
	RunAt        *time.Time
	InitialRunAt *time.Time
	ExpireAt     *time.Time
	Attempts     int
	LastFailAt   *time.Time
	LastError    string
	Data         string
}

// Clone returns a deep copy so callers can mutate a Metadata built on top of
// it without aliasing a store's internal state.
func (r *Record) Clone() *Record {
	clone := *r
	clone.RunAt = clonePtr(r.RunAt)
	clone.InitialRunAt = clonePtr(r.InitialRunAt)
	clone.ExpireAt = clonePtr(r.ExpireAt)
	clone.LastFailAt = clonePtr(r.LastFailAt)
	return &clone
}

func clonePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// FormatTime renders a time field in the store's serialized representation:
// RFC3339Nano in UTC for a set value, empty string for null.
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a time field from its serialized representation. An
// empty string parses to a nil time (null), matching FormatTime.
func ParseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
