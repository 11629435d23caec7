package store

import (
	"sync"
	"time"

	"oss.nandlabs.io/slumber/task"
)

// InMemoryStore is a TaskStore backed by a plain slice guarded by a mutex.
// It is intended for tests and for queues that don't need durability across
// process restarts.
type InMemoryStore struct {
	mu      sync.Mutex
	records []*task.Record
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

var _ TaskStore = (*InMemoryStore)(nil)

// Read returns every record matching filter.
func (s *InMemoryStore) Read(filter Filter) ([]*task.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := ApplyFilter(s.records, filter)
	out := make([]*task.Record, len(matched))
	for i, r := range matched {
		out[i] = r.Clone()
	}
	return out, nil
}

// Create allocates the next id and appends a new record.
func (s *InMemoryStore) Create(queue string, runAt, initialRunAt, expireAt *time.Time, data string) (*task.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &task.Record{
		ID:           NextID(s.records),
		Queue:        queue,
		RunAt:        runAt,
		InitialRunAt: initialRunAt,
		ExpireAt:     expireAt,
		Data:         data,
	}
	s.records = append(s.records, r)
	return r.Clone(), nil
}

// Update merges changes into the record with the given id. No-op if absent.
func (s *InMemoryStore) Update(id int64, changes map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == id {
			return ApplyChanges(r, changes)
		}
	}
	return nil
}

// Delete removes the record with the given id. No-op if absent.
func (s *InMemoryStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}
