// Package scheduler is the client-facing façade: defer, reschedule, and
// cancel tasks, and hand off to a WorkRuntime to actually run them.
package scheduler

import (
	"strconv"
	"time"

	"oss.nandlabs.io/slumber/errs"
	"oss.nandlabs.io/slumber/queue"
	"oss.nandlabs.io/slumber/task"
)

// Scheduler owns a fixed set of queues, built once at construction and
// read from any goroutine thereafter.
type Scheduler struct {
	queues    []*queue.Queue
	byName    map[string]*queue.Queue
	container any
}

var _ queue.SchedulerHandle = (*Scheduler)(nil)

// New binds a scheduler to container (injected into every handler's
// Context) and the given queues. At least one queue is required.
func New(container any, queues ...*queue.Queue) (*Scheduler, error) {
	if len(queues) == 0 {
		return nil, errs.ErrUnknownQueue
	}
	byName := make(map[string]*queue.Queue, len(queues))
	for _, q := range queues {
		byName[q.Name()] = q
	}
	return &Scheduler{queues: queues, byName: byName, container: container}, nil
}

func (s *Scheduler) resolve(name string) (*queue.Queue, error) {
	if name == "" {
		if len(s.queues) == 1 {
			return s.queues[0], nil
		}
		return nil, errs.ErrUnknownQueue
	}
	q, ok := s.byName[queue.NormalizeName(name)]
	if !ok {
		return nil, errs.ErrUnknownQueue
	}
	return q, nil
}

// fetch resolves identifier to a single record within q. identifier is the
// task's decimal id; any other form fails with ErrNoMatch.
func (s *Scheduler) fetch(q *queue.Queue, identifier string) (*task.Record, error) {
	id, err := strconv.ParseInt(identifier, 10, 64)
	if err != nil {
		return nil, errs.ErrNoMatch
	}
	return q.FetchByID(id)
}

// Defer persists a new task. queueName may be empty only if exactly one
// queue is defined. runAt defaults to now if nil.
func (s *Scheduler) Defer(queueName, data string, runAt, expireAt *time.Time) (*task.Record, error) {
	q, err := s.resolve(queueName)
	if err != nil {
		return nil, err
	}
	if runAt == nil {
		now := time.Now()
		runAt = &now
	}
	return q.Create(runAt, expireAt, data)
}

// Reschedule finds exactly one matching task in queueName and updates its
// timing fields per task.Metadata.Reschedule's three modes.
func (s *Scheduler) Reschedule(queueName, identifier string, runAt, expireAt *time.Time) error {
	q, err := s.resolve(queueName)
	if err != nil {
		return err
	}
	rec, err := s.fetch(q, identifier)
	if err != nil {
		return err
	}
	m := task.NewMetadata(rec, q.MaxAttempts())
	if err := m.Reschedule(runAt, expireAt); err != nil {
		return err
	}
	return q.Store().Update(rec.ID, map[string]any{
		"run_at":         rec.RunAt,
		"initial_run_at": rec.InitialRunAt,
		"expire_at":      rec.ExpireAt,
		"attempts":       rec.Attempts,
		"last_fail_at":   rec.LastFailAt,
		"last_error":     rec.LastError,
	})
}

// Cancel finds exactly one matching task in queueName and deletes it.
func (s *Scheduler) Cancel(queueName, identifier string) error {
	q, err := s.resolve(queueName)
	if err != nil {
		return err
	}
	rec, err := s.fetch(q, identifier)
	if err != nil {
		return err
	}
	return q.Store().Delete(rec.ID)
}

// Work returns a runtime bound to the named queues, or every defined queue
// if none are named.
func (s *Scheduler) Work(queueNames ...string) (*WorkRuntime, error) {
	queues := s.queues
	if len(queueNames) > 0 {
		queues = make([]*queue.Queue, 0, len(queueNames))
		for _, n := range queueNames {
			q, err := s.resolve(n)
			if err != nil {
				return nil, err
			}
			queues = append(queues, q)
		}
	}
	return newWorkRuntime(queues, s.container, s), nil
}
