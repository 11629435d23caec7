// Package store defines the task-store contract and the bundled file-backed
// implementation, plus an in-memory implementation used in tests and for
// ephemeral queues.
package store

import (
	"strconv"
	"time"

	"oss.nandlabs.io/slumber/task"
)

// Filter matches task records by equality on their stored (serialized)
// representation: every entry must match the record's corresponding field
// exactly. An empty filter matches every record. Known keys are "id",
// "queue", "run_at", "initial_run_at", "expire_at", "attempts",
// "last_fail_at", "last_error", and "data".
type Filter map[string]string

// TaskStore is the contract a task store must satisfy. Implementations must
// be safe for concurrent use by multiple callers.
type TaskStore interface {
	// Read returns every record matching filter.
	Read(filter Filter) ([]*task.Record, error)
	// Create allocates the next id and persists a new record.
	Create(queue string, runAt, initialRunAt, expireAt *time.Time, data string) (*task.Record, error)
	// Update merges changes into the record with the given id. It is a
	// no-op if the id is absent. Recognized keys mirror Filter's, except
	// "id", which cannot be changed.
	Update(id int64, changes map[string]any) error
	// Delete removes the record with the given id. It is a no-op if the id
	// is absent.
	Delete(id int64) error
}

// fieldString renders a record's field for filter comparison, mirroring the
// store's on-disk serialization so Filter's equality check is consistent
// across FileStore and InMemoryStore.
func fieldString(r *task.Record, key string) (string, bool) {
	switch key {
	case "id":
		return strconv.FormatInt(r.ID, 10), true
	case "queue":
		return r.Queue, true
	case "run_at":
		return task.FormatTime(r.RunAt), true
	case "initial_run_at":
		return task.FormatTime(r.InitialRunAt), true
	case "expire_at":
		return task.FormatTime(r.ExpireAt), true
	case "attempts":
		return strconv.Itoa(r.Attempts), true
	case "last_fail_at":
		return task.FormatTime(r.LastFailAt), true
	case "last_error":
		return r.LastError, true
	case "data":
		return r.Data, true
	default:
		return "", false
	}
}

// MatchesFilter reports whether a record satisfies every entry in filter.
func MatchesFilter(r *task.Record, filter Filter) bool {
	for key, want := range filter {
		got, known := fieldString(r, key)
		if !known || got != want {
			return false
		}
	}
	return true
}

// ApplyFilter returns the subset of records matching filter.
func ApplyFilter(records []*task.Record, filter Filter) []*task.Record {
	if len(filter) == 0 {
		out := make([]*task.Record, len(records))
		copy(out, records)
		return out
	}
	var out []*task.Record
	for _, r := range records {
		if MatchesFilter(r, filter) {
			out = append(out, r)
		}
	}
	return out
}

// NextID returns max(existing ids) + 1, or 1 if records is empty.
func NextID(records []*task.Record) int64 {
	var max int64
	for _, r := range records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// ApplyChanges merges a generic changes map onto a record in place,
// recognizing the same keys as Filter except "id". Unknown keys, and "id",
// are ignored.
func ApplyChanges(r *task.Record, changes map[string]any) error {
	for key, val := range changes {
		if err := applyChange(r, key, val); err != nil {
			return err
		}
	}
	return nil
}

func applyChange(r *task.Record, key string, val any) error {
	switch key {
	case "queue":
		if s, ok := val.(string); ok {
			r.Queue = s
		}
	case "run_at":
		return applyTimeChange(&r.RunAt, val)
	case "initial_run_at":
		return applyTimeChange(&r.InitialRunAt, val)
	case "expire_at":
		return applyTimeChange(&r.ExpireAt, val)
	case "attempts":
		switch v := val.(type) {
		case int:
			r.Attempts = v
		case int64:
			r.Attempts = int(v)
		}
	case "last_fail_at":
		return applyTimeChange(&r.LastFailAt, val)
	case "last_error":
		if s, ok := val.(string); ok {
			r.LastError = s
		}
	case "data":
		if s, ok := val.(string); ok {
			r.Data = s
		}
	}
	return nil
}

func applyTimeChange(field **time.Time, val any) error {
	switch v := val.(type) {
	case nil:
		*field = nil
	case *time.Time:
		*field = v
	case time.Time:
		*field = &v
	}
	return nil
}
