// Package executor runs a single task attempt: it instantiates a handler,
// enforces the queue's timeout, dispatches the success/fail/final_fail
// hooks, and writes the resulting state back through the store.
package executor

import (
	"time"

	"oss.nandlabs.io/slumber/errs"
	"oss.nandlabs.io/slumber/l3"
	"oss.nandlabs.io/slumber/queue"
	"oss.nandlabs.io/slumber/task"
)

// TaskExecutor owns one attempt of one task, selected by the queue's
// NextTask and handed here to keep the queue package free of a dependency
// on this one.
type TaskExecutor struct {
	queue     *queue.Queue
	metadata  *task.Metadata
	container any
	scheduler queue.SchedulerHandle
	logger    l3.Logger
}

// New builds an executor for the given queue, task, container, and
// scheduler handle. logger is the queue worker's own logger; if nil,
// l3.Get() is used.
func New(q *queue.Queue, metadata *task.Metadata, container any, scheduler queue.SchedulerHandle, logger l3.Logger) *TaskExecutor {
	if logger == nil {
		logger = l3.Get()
	}
	return &TaskExecutor{
		queue:     q,
		metadata:  metadata,
		container: container,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Run executes the attempt to completion: add_attempt, expiry shortcut,
// handler invocation under timeout, and the success/fail/final_fail
// dispatch against the store. It returns an error only for failures in the
// store operations themselves; handler failures are recorded on the task,
// never returned.
func (e *TaskExecutor) Run() error {
	rec := e.metadata.Record

	if err := e.metadata.AddAttempt(); err != nil {
		return e.recordFinalFailure(err)
	}

	now := time.Now()
	if e.metadata.Expired(now) {
		return e.recordFinalFailure(errs.ErrTaskExpired)
	}

	handler := e.queue.NewHandler()
	ctx := &queue.Context{
		Logger:    e.logger,
		Container: e.container,
		Scheduler: e.scheduler,
	}
	if e.queue.DataCapable() {
		ctx.Data = rec.Data
	}

	result, err := e.invokeWithTimeout(handler, ctx)
	if err == nil {
		return e.recordSuccess(handler, result)
	}
	return e.recordFailure(handler, err)
}

// invokeWithTimeout runs handler.Run(ctx) in its own goroutine and stops
// waiting once the queue's timeout elapses, returning ErrTimeout. The
// handler goroutine itself is not forcibly killed: preemption is
// best-effort, matching the executor's obligation to at minimum stop
// waiting and record a timeout failure.
func (e *TaskExecutor) invokeWithTimeout(handler queue.Handler, ctx *queue.Context) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := handler.Run(ctx)
		done <- outcome{result, err}
	}()

	timeout := e.queue.Timeout()
	if timeout <= 0 {
		o := <-done
		return o.result, o.err
	}
	select {
	case o := <-done:
		return o.result, o.err
	case <-time.After(timeout):
		return nil, errs.ErrTimeout
	}
}

func (e *TaskExecutor) recordSuccess(handler queue.Handler, result any) error {
	e.metadata.ClearFails()
	e.logger.InfoF("task %d on queue %s succeeded", e.metadata.Record.ID, e.queue.Name())
	e.dispatchSuccess(handler, result)
	return e.queue.Store().Delete(e.metadata.Record.ID)
}

func (e *TaskExecutor) recordFailure(handler queue.Handler, cause error) error {
	outcome, err := e.metadata.Failure(cause)
	if err != nil {
		return e.recordFinalFailure(cause)
	}

	rec := e.metadata.Record
	changes := map[string]any{
		"attempts":     rec.Attempts,
		"run_at":       rec.RunAt,
		"last_fail_at": rec.LastFailAt,
		"last_error":   rec.LastError,
	}

	switch outcome {
	case task.Fail:
		e.logger.ErrorF("task %d on queue %s failed, will retry at %s: %v", rec.ID, e.queue.Name(), task.FormatTime(rec.RunAt), cause)
		e.dispatchFail(handler, cause)
	case task.FinalFail:
		e.logger.ErrorF("task %d on queue %s failed permanently: %v", rec.ID, e.queue.Name(), cause)
		e.dispatchFinalFail(handler, cause)
	}
	return e.queue.Store().Update(rec.ID, changes)
}

// recordFinalFailure handles the cases that bypass the normal retry
// decision entirely: an expired task, an attempt budget that was somehow
// already exhausted when this attempt started, and a failure whose backoff
// reschedule itself returned an error.
func (e *TaskExecutor) recordFinalFailure(cause error) error {
	rec := e.metadata.Record
	now := time.Now()
	rec.LastFailAt = &now
	rec.LastError = task.FormatError(cause)
	rec.RunAt = nil

	e.logger.ErrorF("task %d on queue %s failed permanently: %v", rec.ID, e.queue.Name(), cause)
	e.dispatchFinalFail(e.queue.NewHandler(), cause)

	return e.queue.Store().Update(rec.ID, map[string]any{
		"attempts":     rec.Attempts,
		"run_at":       nil,
		"last_fail_at": now,
		"last_error":   rec.LastError,
	})
}

// dispatchSuccess, dispatchFail, and dispatchFinalFail call the handler's
// optional hooks, guarding against a panicking hook: it is caught, logged
// as a warning, and never alters the recorded task state.
func (e *TaskExecutor) dispatchSuccess(handler queue.Handler, result any) {
	h, ok := handler.(queue.SuccessHandler)
	if !ok {
		return
	}
	defer e.guardHook("success")
	h.Success(result)
}

func (e *TaskExecutor) dispatchFail(handler queue.Handler, cause error) {
	h, ok := handler.(queue.FailHandler)
	if !ok {
		return
	}
	defer e.guardHook("fail")
	h.Fail(cause)
}

func (e *TaskExecutor) dispatchFinalFail(handler queue.Handler, cause error) {
	h, ok := handler.(queue.FinalFailHandler)
	if !ok {
		return
	}
	defer e.guardHook("final_fail")
	h.FinalFail(cause)
}

func (e *TaskExecutor) guardHook(name string) {
	if r := recover(); r != nil {
		e.logger.WarnF("task %d on queue %s: %s hook panicked: %v", e.metadata.Record.ID, e.queue.Name(), name, r)
	}
}
