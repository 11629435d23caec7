package scheduler

import (
	"os"
	"time"

	"oss.nandlabs.io/slumber/l3"
	"oss.nandlabs.io/slumber/lifecycle"
	"oss.nandlabs.io/slumber/queue"
	"oss.nandlabs.io/slumber/worker"
)

// shutdownGrace bounds how long StopAll is given to converge before Halt
// and Threaded's own timeout path give up waiting on it and return
// lifecycle.ErrTimeout instead of blocking forever on a stuck worker.
const shutdownGrace = 30 * time.Second

// WorkRuntime is the execution surface bound to a fixed set of queues:
// stepwise for tests and deterministic advancement, threaded for a running
// server, and daemonized on top of threaded.
type WorkRuntime struct {
	queues    []*queue.Queue
	workers   []*worker.QueueWorker
	manager   lifecycle.ComponentManager
	logger    l3.Logger
	container any
	scheduler queue.SchedulerHandle
}

func newWorkRuntime(queues []*queue.Queue, container any, sched queue.SchedulerHandle) *WorkRuntime {
	workers := make([]*worker.QueueWorker, len(queues))
	manager := lifecycle.NewSimpleComponentManager()
	for i, q := range queues {
		w := worker.New(q, container, sched)
		workers[i] = w
		manager.Register(w)
	}
	return &WorkRuntime{
		queues:    queues,
		workers:   workers,
		manager:   manager,
		logger:    l3.Get(),
		container: container,
		scheduler: sched,
	}
}

// Serially executes up to steps tasks per queue, in queue declaration
// order, within the caller's own thread of control. It never sleeps on a
// poll period; it is meant for tests and deterministic advancement.
func (r *WorkRuntime) Serially(steps int) error {
	if steps < 1 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		for _, w := range r.workers {
			if err := w.WorkOne(); err != nil {
				r.logger.ErrorF("queue %s: %v", w.Id(), err)
			}
		}
	}
	return nil
}

// Threaded spawns one worker per queue, each on its own goroutine, and
// blocks until they all halt: on interrupt signal (wired in by the
// component manager), on timeout elapsing (if timeout > 0), or on an
// explicit Halt call.
func (r *WorkRuntime) Threaded(timeout time.Duration) error {
	if err := r.manager.StartAll(); err != nil {
		return err
	}

	if timeout <= 0 {
		r.manager.Wait()
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.manager.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return r.manager.StopAllWithTimeout(shutdownGrace)
	}
}

// Halt stops every worker, unblocking a Threaded caller. It gives up and
// returns lifecycle.ErrTimeout if a worker does not stop within
// shutdownGrace, rather than blocking indefinitely on a stuck handler.
func (r *WorkRuntime) Halt() error {
	return r.manager.StopAllWithTimeout(shutdownGrace)
}

// Daemonized detaches the process, writes a pid file, renames the process
// (best effort), and then runs Threaded with no timeout. See daemon_unix.go
// and daemon_windows.go.
func (r *WorkRuntime) Daemonized(pidPath string) error {
	resolved, err := daemonize(pidPath)
	if err != nil {
		return err
	}
	defer os.Remove(resolved)
	return r.Threaded(0)
}
