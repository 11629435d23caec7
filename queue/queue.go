// Package queue defines a queue's static configuration, the handler
// contract it enforces at construction, and the next-runnable-task
// selection used by the worker loop.
package queue

import (
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"oss.nandlabs.io/slumber/config"
	"oss.nandlabs.io/slumber/errs"
	"oss.nandlabs.io/slumber/store"
	"oss.nandlabs.io/slumber/task"
)

const (
	// DefaultTimeout is the per-attempt handler timeout applied when a
	// queue is constructed without WithTimeout.
	DefaultTimeout = time.Hour
	// DefaultMaxAttempts is the attempt budget applied when a queue is
	// constructed without WithMaxAttempts.
	DefaultMaxAttempts = 20
	// DefaultPollPeriod is the inter-poll sleep applied when a queue is
	// constructed without WithPollPeriod and without pollPeriodEnvVar set.
	DefaultPollPeriod = 10 * time.Second
	// pollPeriodEnvVar lets local testing/deployment override the default
	// poll period without touching every call site's WithPollPeriod.
	pollPeriodEnvVar = "SLUMBER_POLL_PERIOD"
)

var nameCollapse = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// NormalizeName trims and collapses runs of non-alphanumeric characters to
// a single underscore, matching the naming rule the data model requires of
// queue names.
func NormalizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	return nameCollapse.ReplaceAllString(trimmed, "_")
}

// Queue is a named, immutable-after-construction binding between a handler
// factory, a store, and the execution policy applied to every task run
// through it.
type Queue struct {
	name           string
	handlerFactory HandlerFactory
	store          store.TaskStore
	timeout        time.Duration
	maxAttempts    *int
	pollPeriod     time.Duration
	dataCapable    bool
}

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.timeout = d
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts. A nil value means
// unbounded attempts.
func WithMaxAttempts(n *int) Option {
	return func(q *Queue) {
		q.maxAttempts = n
	}
}

// WithPollPeriod overrides DefaultPollPeriod.
func WithPollPeriod(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.pollPeriod = d
		}
	}
}

// New validates the handler and store contracts and constructs a Queue.
// factory is invoked once, immediately, to determine whether the handler
// type is data-capable; a nil sample or nil store is rejected.
func New(name string, factory HandlerFactory, taskStore store.TaskStore, opts ...Option) (*Queue, error) {
	if taskStore == nil {
		return nil, errs.ErrMalformedStore
	}
	if factory == nil {
		return nil, errs.ErrMalformedTask
	}
	sample := factory()
	if sample == nil {
		return nil, errs.ErrMalformedTask
	}
	_, dataCapable := sample.(DataCapable)

	def := DefaultMaxAttempts
	q := &Queue{
		name:           NormalizeName(name),
		handlerFactory: factory,
		store:          taskStore,
		timeout:        DefaultTimeout,
		maxAttempts:    &def,
		pollPeriod:     config.GetEnvAsDuration(pollPeriodEnvVar, DefaultPollPeriod),
		dataCapable:    dataCapable,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Name returns the queue's normalized name.
func (q *Queue) Name() string { return q.name }

// Timeout returns the per-attempt handler timeout.
func (q *Queue) Timeout() time.Duration { return q.timeout }

// MaxAttempts returns the attempt budget, or nil for unbounded.
func (q *Queue) MaxAttempts() *int { return q.maxAttempts }

// PollPeriod returns the worker's inter-poll sleep.
func (q *Queue) PollPeriod() time.Duration { return q.pollPeriod }

// Store returns the queue's task store.
func (q *Queue) Store() store.TaskStore { return q.store }

// NewHandler constructs a fresh handler instance for one attempt.
func (q *Queue) NewHandler() Handler { return q.handlerFactory() }

// DataCapable reports whether this queue's handler type declares the data
// capability.
func (q *Queue) DataCapable() bool { return q.dataCapable }

// NextTask reads the queue's own records, discards non-runnable ones,
// randomizes order and stably sorts the remainder by run_at ascending (so
// ties keep their shuffled relative order instead of the store's), and
// returns the earliest as a Metadata. Returns nil, nil if none are
// runnable.
func (q *Queue) NextTask(now time.Time) (*task.Metadata, error) {
	records, err := q.store.Read(store.Filter{"queue": q.name})
	if err != nil {
		return nil, err
	}

	runnable := make([]*task.Record, 0, len(records))
	for _, r := range records {
		m := task.NewMetadata(r, q.maxAttempts)
		if m.Runnable(now) {
			runnable = append(runnable, r)
		}
	}
	if len(runnable) == 0 {
		return nil, nil
	}

	rand.Shuffle(len(runnable), func(i, j int) {
		runnable[i], runnable[j] = runnable[j], runnable[i]
	})
	sort.SliceStable(runnable, func(i, j int) bool {
		return runnable[i].RunAt.Before(*runnable[j].RunAt)
	})

	return task.NewMetadata(runnable[0], q.maxAttempts), nil
}

// FetchTask returns the single record matching filter, scoped to this
// queue. Fails with ErrNoMatch or ErrAmbiguous if zero or more than one
// record matches.
func (q *Queue) FetchTask(filter store.Filter) (*task.Record, error) {
	scoped := store.Filter{"queue": q.name}
	for k, v := range filter {
		scoped[k] = v
	}
	records, err := q.store.Read(scoped)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, errs.ErrNoMatch
	case 1:
		return records[0], nil
	default:
		return nil, errs.ErrAmbiguous
	}
}

// FetchByID is a convenience wrapper around FetchTask filtering on id.
func (q *Queue) FetchByID(id int64) (*task.Record, error) {
	return q.FetchTask(store.Filter{"id": strconv.FormatInt(id, 10)})
}

// Create validates data's presence against the handler's data capability
// and persists a new record: run_at and initial_run_at both start at
// runAt.
func (q *Queue) Create(runAt, expireAt *time.Time, data string) (*task.Record, error) {
	if q.dataCapable && data == "" {
		return nil, errs.ErrMalformedTask
	}
	if !q.dataCapable && data != "" {
		return nil, errs.ErrMalformedTask
	}
	if runAt != nil && expireAt != nil && runAt.After(*expireAt) {
		return nil, errs.ErrInvalidSchedule
	}
	return q.store.Create(q.name, runAt, runAt, expireAt, data)
}
