// Package worker runs one queue's poll loop as a lifecycle.Component:
// sleep, fetch the next runnable task, execute it, repeat.
package worker

import (
	"sync"
	"time"

	"oss.nandlabs.io/slumber/executor"
	"oss.nandlabs.io/slumber/l3"
	"oss.nandlabs.io/slumber/lifecycle"
	"oss.nandlabs.io/slumber/queue"
)

// QueueWorker is a dedicated worker for one queue. It is safe to Start and
// Stop repeatedly; it is not safe for concurrent work_one calls from
// outside its own loop.
type QueueWorker struct {
	queue     *queue.Queue
	container any
	scheduler queue.SchedulerHandle
	logger    l3.Logger

	mu      sync.Mutex
	state   lifecycle.ComponentState
	halt    chan struct{}
	stopped chan struct{}
}

var _ lifecycle.Component = (*QueueWorker)(nil)

// New returns a worker bound to q, logging through the worker package's
// l3 logger. It does not open a "{queue}-queue-worker.log" file itself; see
// LogFileName and WithLogger.
func New(q *queue.Queue, container any, scheduler queue.SchedulerHandle) *QueueWorker {
	return &QueueWorker{
		queue:     q,
		container: container,
		scheduler: scheduler,
		logger:    l3.Get(),
		state:     lifecycle.Stopped,
	}
}

// LogFileName is the per-queue log file name convention: "{queue}-queue-worker.log".
func (w *QueueWorker) LogFileName() string {
	return w.queue.Name() + "-queue-worker.log"
}

// WithLogger overrides the worker's logger, e.g. with one configured to
// write to LogFileName().
func (w *QueueWorker) WithLogger(logger l3.Logger) *QueueWorker {
	w.logger = logger
	return w
}

// Id identifies this component by its queue's name.
func (w *QueueWorker) Id() string { return w.queue.Name() }

// OnChange logs every state transition at INFO.
func (w *QueueWorker) OnChange(prev, next lifecycle.ComponentState) {
	w.logger.InfoF("queue %s worker state %v -> %v", w.queue.Name(), prev, next)
}

// State returns the worker's current lifecycle state.
func (w *QueueWorker) State() lifecycle.ComponentState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *QueueWorker) setState(s lifecycle.ComponentState) {
	w.mu.Lock()
	prev := w.state
	w.state = s
	w.mu.Unlock()
	w.OnChange(prev, s)
}

// Start launches the poll loop on its own goroutine and returns
// immediately once it is running.
func (w *QueueWorker) Start() error {
	w.mu.Lock()
	if w.state == lifecycle.Running || w.state == lifecycle.Starting {
		w.mu.Unlock()
		return lifecycle.ErrCompAlreadyStarted
	}
	w.halt = make(chan struct{})
	w.stopped = make(chan struct{})
	w.mu.Unlock()

	w.setState(lifecycle.Starting)
	go w.loop()
	w.setState(lifecycle.Running)
	return nil
}

// Stop requests the loop to terminate at the next iteration boundary and
// waits for it to exit.
func (w *QueueWorker) Stop() error {
	w.mu.Lock()
	if w.state != lifecycle.Running && w.state != lifecycle.Starting {
		w.mu.Unlock()
		return lifecycle.ErrCompAlreadyStopped
	}
	halt := w.halt
	stopped := w.stopped
	w.mu.Unlock()

	w.setState(lifecycle.Stopping)
	close(halt)
	<-stopped
	w.setState(lifecycle.Stopped)
	return nil
}

func (w *QueueWorker) loop() {
	defer close(w.stopped)
	for {
		select {
		case <-w.halt:
			return
		case <-time.After(w.queue.PollPeriod()):
		}
		w.workOneSafely()
		select {
		case <-w.halt:
			return
		default:
		}
	}
}

// workOneSafely calls WorkOne, catching any panic escaping it (e.g. from a
// misbehaving store) and logging it at ERROR, the most severe level l3 has,
// rather than letting it bring down the loop's goroutine.
func (w *QueueWorker) workOneSafely() {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorF("queue %s worker: fatal error in work_one: %v", w.queue.Name(), r)
		}
	}()
	if err := w.WorkOne(); err != nil {
		w.logger.ErrorF("queue %s worker: fatal error in work_one: %v", w.queue.Name(), err)
	}
}

// WorkOne fetches the queue's next runnable task, if any, and executes it.
// It is exported so WorkRuntime's stepwise mode can drive it directly
// without sleeping on the poll period.
func (w *QueueWorker) WorkOne() error {
	metadata, err := w.queue.NextTask(time.Now())
	if err != nil {
		return err
	}
	if metadata == nil {
		return nil
	}
	exec := executor.New(w.queue, metadata, w.container, w.scheduler, w.logger)
	return exec.Run()
}
