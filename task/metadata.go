package task

import (
	"fmt"
	"time"

	"oss.nandlabs.io/slumber/errs"
)

// Outcome is the result of Metadata.Failure: whether the task will be
// retried or has reached its terminal state.
type Outcome int

const (
	// Fail means the task was rescheduled with backoff and will be retried.
	Fail Outcome = iota
	// FinalFail means the task has run_at == nil and will not be retried.
	FinalFail
)

func (o Outcome) String() string {
	if o == FinalFail {
		return "final_fail"
	}
	return "fail"
}

// Metadata wraps a Record with the lifecycle operations described by the
// scheduler's task state machine. MaxAttempts is nil for an unbounded
// attempt budget, matching the queue's max_attempts = null case.
type Metadata struct {
	Record      *Record
	MaxAttempts *int
}

// NewMetadata wraps an existing record. The record is not cloned; callers
// that need isolation should Clone it first.
func NewMetadata(record *Record, maxAttempts *int) *Metadata {
	return &Metadata{Record: record, MaxAttempts: maxAttempts}
}

// AttemptsLeft reports whether another attempt may be made, ignoring
// expiry.
func (m *Metadata) AttemptsLeft() bool {
	return m.MaxAttempts == nil || m.Record.Attempts < *m.MaxAttempts
}

// AddAttempt increments Attempts. Callers call this once at the start of
// each execution attempt.
func (m *Metadata) AddAttempt() error {
	if !m.AttemptsLeft() {
		return errs.ErrAttemptsExhausted
	}
	m.Record.Attempts++
	return nil
}

// Runnable reports whether the task is eligible to run at the given
// instant: run_at set and not in the future, and (no expiry, or now has not
// passed it).
func (m *Metadata) Runnable(now time.Time) bool {
	r := m.Record
	if r.RunAt == nil || r.RunAt.After(now) {
		return false
	}
	if r.ExpireAt != nil && now.After(*r.ExpireAt) {
		return false
	}
	return true
}

// Expired reports whether now is strictly after expire_at. A task whose
// expire_at equals now is not expired.
func (m *Metadata) Expired(now time.Time) bool {
	return m.Record.ExpireAt != nil && now.After(*m.Record.ExpireAt)
}

// FinallyFailed reports whether the task has reached its terminal state
// (run_at == nil).
func (m *Metadata) FinallyFailed() bool {
	return m.Record.RunAt == nil
}

// ClearFails resets the failure-tracking fields.
func (m *Metadata) ClearFails() {
	m.Record.LastFailAt = nil
	m.Record.LastError = ""
}

// retryable reports whether a failing attempt at `now` should be retried
// rather than finally failed.
func (m *Metadata) retryable(now time.Time) bool {
	return m.AttemptsLeft() && !m.Expired(now)
}

// Failure records a failed attempt and drives the task to either a retry
// (with backoff applied) or a final failure, returning which outcome was
// taken.
func (m *Metadata) Failure(err error) (Outcome, error) {
	now := time.Now()
	m.Record.LastFailAt = &now
	m.Record.LastError = FormatError(err)

	if m.retryable(now) {
		if rerr := m.Reschedule(nil, nil); rerr != nil {
			return Fail, rerr
		}
		return Fail, nil
	}
	m.Record.RunAt = nil
	return FinalFail, nil
}

// Reschedule has three modes, matching which arguments are non-nil:
//   - both nil: apply backoff to the existing run_at.
//   - runAt set: replace run_at and initial_run_at, reset attempts and
//     clear failures; expireAt replaces expire_at too if also given.
//   - only expireAt set: replace expire_at, leaving everything else alone.
//
// It returns ErrInvalidSchedule if the resulting run_at would be after
// expire_at.
func (m *Metadata) Reschedule(runAt, expireAt *time.Time) error {
	switch {
	case runAt == nil && expireAt == nil:
		if m.Record.RunAt == nil {
			return errs.ErrInvalidSchedule
		}
		backoff := time.Duration(30+pow4(m.Record.Attempts)) * time.Second
		newRunAt := m.Record.RunAt.Add(backoff)
		m.Record.RunAt = &newRunAt
	case runAt != nil:
		m.Record.RunAt = runAt
		m.Record.InitialRunAt = runAt
		m.Record.Attempts = 0
		m.ClearFails()
		if expireAt != nil {
			m.Record.ExpireAt = expireAt
		}
	default:
		m.Record.ExpireAt = expireAt
	}

	if m.Record.RunAt != nil && m.Record.ExpireAt != nil && m.Record.RunAt.After(*m.Record.ExpireAt) {
		return errs.ErrInvalidSchedule
	}
	return nil
}

func pow4(n int) int64 {
	v := int64(n)
	return v * v * v * v
}

// FormatError renders an error into the record's last_error representation:
// its message, plus a one-line stack marker when the error carries one.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	if tracer, ok := err.(interface{ StackTrace() string }); ok {
		return fmt.Sprintf("%s\n%s", err.Error(), tracer.StackTrace())
	}
	return err.Error()
}
