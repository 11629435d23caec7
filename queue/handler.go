package queue

import (
	"time"

	"oss.nandlabs.io/slumber/l3"
	"oss.nandlabs.io/slumber/task"
)

// Handler is the contract a user task type must satisfy. A fresh handler is
// constructed for every attempt by the queue's HandlerFactory.
type Handler interface {
	// Run performs the unit of work. A returned error fails the attempt and
	// drives the task's retry/expiry state machine; anything else is handed
	// to SuccessHandler.Success, if implemented.
	Run(ctx *Context) (any, error)
}

// HandlerFactory constructs a fresh Handler for a single attempt.
type HandlerFactory func() Handler

// SuccessHandler is an optional capability: a handler implementing it is
// notified of its own successful result before the record is deleted from
// the store.
type SuccessHandler interface {
	Success(result any)
}

// FailHandler is an optional capability: a handler implementing it is
// notified when an attempt fails but the task will be retried.
type FailHandler interface {
	Fail(err error)
}

// FinalFailHandler is an optional capability: a handler implementing it is
// notified when an attempt fails and the task has reached its terminal
// state.
type FinalFailHandler interface {
	FinalFail(err error)
}

// DataCapable is a marker capability: a handler implementing it declares
// that it accepts a data payload. Queue.Create requires data for handlers
// that implement this and forbids it for handlers that don't.
type DataCapable interface {
	WantsData()
}

// SchedulerHandle is the subset of the client-facing Scheduler API that a
// running handler is allowed to call, so a handler can defer, reschedule,
// or cancel work without depending on the scheduler package (which depends
// on this one).
type SchedulerHandle interface {
	Defer(queueName, data string, runAt, expireAt *time.Time) (*task.Record, error)
	Reschedule(queueName, identifier string, runAt, expireAt *time.Time) error
	Cancel(queueName, identifier string) error
}

// Context is injected into every attempt in place of the dynamic attribute
// assignment described by the source: logger, container, and scheduler are
// always present; Data is populated only for handlers implementing
// DataCapable.
type Context struct {
	Logger    l3.Logger
	Container any
	Scheduler SchedulerHandle
	Data      string
}
