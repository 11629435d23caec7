// Package errs collects the sentinel error kinds shared across the
// scheduler's components, so callers can use errors.Is regardless of which
// package actually raised the error.
package errs

import "errors"

var (
	// ErrMalformedTask is raised at queue construction when a handler or its
	// factory fails the handler contract check.
	ErrMalformedTask = errors.New("malformed task handler")
	// ErrMalformedStore is raised at queue construction when a store fails
	// the store contract check.
	ErrMalformedStore = errors.New("malformed task store")
	// ErrUnknownQueue is raised when a client operation names a queue that
	// does not exist, or omits a name while more than one queue is defined.
	ErrUnknownQueue = errors.New("unknown queue")
	// ErrNoMatch is raised when an identifier-based lookup matches zero
	// records.
	ErrNoMatch = errors.New("no matching task")
	// ErrAmbiguous is raised when an identifier-based lookup matches more
	// than one record.
	ErrAmbiguous = errors.New("ambiguous match: more than one task matched")
	// ErrInvalidSchedule is raised when a reschedule would leave run_at
	// after expire_at.
	ErrInvalidSchedule = errors.New("invalid schedule: run_at is after expire_at")
	// ErrAttemptsExhausted is raised by Metadata.AddAttempt when no attempts
	// remain.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrTaskExpired signals the executor's expiry shortcut: the handler was
	// never invoked because the task had already expired.
	ErrTaskExpired = errors.New("task expired")
	// ErrTimeout is recorded when a handler exceeds its queue's timeout.
	ErrTimeout = errors.New("handler execution timed out")
	// ErrProcessExists is raised by daemon start when the pid file names a
	// still-running process.
	ErrProcessExists = errors.New("a process already owns the pid file")
)
