package executor

import (
	"errors"
	"testing"
	"time"

	"oss.nandlabs.io/slumber/errs"
	"oss.nandlabs.io/slumber/queue"
	"oss.nandlabs.io/slumber/store"
	"oss.nandlabs.io/slumber/task"
)

type recordingHandler struct {
	run         func(ctx *queue.Context) (any, error)
	successArgs []any
	failArgs    []error
	finalArgs   []error
	panicOnFail bool
}

func (h *recordingHandler) Run(ctx *queue.Context) (any, error) {
	if h.run != nil {
		return h.run(ctx)
	}
	return nil, nil
}

func (h *recordingHandler) Success(result any) { h.successArgs = append(h.successArgs, result) }

func (h *recordingHandler) Fail(err error) {
	if h.panicOnFail {
		panic("boom in hook")
	}
	h.failArgs = append(h.failArgs, err)
}

func (h *recordingHandler) FinalFail(err error) { h.finalArgs = append(h.finalArgs, err) }

func newTestQueue(t *testing.T, maxAttempts *int, handler *recordingHandler) (*queue.Queue, *store.InMemoryStore) {
	t.Helper()
	s := store.NewInMemoryStore()
	q, err := queue.New("q", func() queue.Handler { return handler }, s, queue.WithTimeout(time.Second), queue.WithMaxAttempts(maxAttempts))
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}
	return q, s
}

func intPtr(i int) *int { return &i }

func TestExecutor_SuccessDeletesRecord(t *testing.T) {
	handler := &recordingHandler{run: func(ctx *queue.Context) (any, error) { return 42, nil }}
	q, s := newTestQueue(t, intPtr(3), handler)

	now := time.Now()
	rec, err := q.Create(&now, nil, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exec := New(q, task.NewMetadata(rec, q.MaxAttempts()), nil, nil, nil)
	if err := exec.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(handler.successArgs) != 1 || handler.successArgs[0] != 42 {
		t.Fatalf("successArgs = %v, want [42]", handler.successArgs)
	}
	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("Read() after success = %+v, want empty", records)
	}
}

func TestExecutor_FailureReschedulesWithBackoff(t *testing.T) {
	handler := &recordingHandler{run: func(ctx *queue.Context) (any, error) { return nil, errors.New("boom") }}
	q, s := newTestQueue(t, intPtr(3), handler)

	t0 := time.Now().Add(-time.Hour)
	rec, err := q.Create(&t0, nil, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exec := New(q, task.NewMetadata(rec, q.MaxAttempts()), nil, nil, nil)
	if err := exec.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(handler.failArgs) != 1 {
		t.Fatalf("failArgs = %v, want one entry", handler.failArgs)
	}
	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Read() = %+v, want one surviving record", records)
	}
	got := records[0]
	if got.Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1", got.Attempts)
	}
	want := t0.Add(31 * time.Second)
	if !got.RunAt.Equal(want) {
		t.Fatalf("RunAt = %v, want %v", got.RunAt, want)
	}
	if got.LastError == "" {
		t.Fatalf("LastError not recorded")
	}
}

func TestExecutor_FinalFailureAfterMaxAttempts(t *testing.T) {
	handler := &recordingHandler{run: func(ctx *queue.Context) (any, error) { return nil, errors.New("boom") }}
	q, s := newTestQueue(t, intPtr(1), handler)

	t0 := time.Now()
	rec, err := q.Create(&t0, nil, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exec := New(q, task.NewMetadata(rec, q.MaxAttempts()), nil, nil, nil)
	if err := exec.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(handler.finalArgs) != 1 {
		t.Fatalf("finalArgs = %v, want one entry", handler.finalArgs)
	}
	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if records[0].RunAt != nil {
		t.Fatalf("RunAt = %v, want nil (finally failed)", records[0].RunAt)
	}
}

func TestExecutor_ExpiredTaskSkipsHandlerButFinalFails(t *testing.T) {
	ran := false
	handler := &recordingHandler{run: func(ctx *queue.Context) (any, error) { ran = true; return nil, nil }}
	q, s := newTestQueue(t, intPtr(3), handler)

	t0 := time.Now().Add(-time.Hour)
	expire := t0.Add(time.Minute)
	rec, err := q.Create(&t0, &expire, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exec := New(q, task.NewMetadata(rec, q.MaxAttempts()), nil, nil, nil)
	if err := exec.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if ran {
		t.Fatalf("handler.Run was invoked for an expired task")
	}
	if len(handler.finalArgs) != 1 || !errors.Is(handler.finalArgs[0], errs.ErrTaskExpired) {
		t.Fatalf("finalArgs = %v, want [ErrTaskExpired]", handler.finalArgs)
	}
	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if records[0].RunAt != nil {
		t.Fatalf("RunAt = %v, want nil", records[0].RunAt)
	}
}

func TestExecutor_TimeoutRecordsFailure(t *testing.T) {
	handler := &recordingHandler{run: func(ctx *queue.Context) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	}}
	s := store.NewInMemoryStore()
	q, err := queue.New("slow", func() queue.Handler { return handler }, s, queue.WithTimeout(5*time.Millisecond), queue.WithMaxAttempts(intPtr(3)))
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}

	t0 := time.Now()
	rec, err := q.Create(&t0, nil, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exec := New(q, task.NewMetadata(rec, q.MaxAttempts()), nil, nil, nil)
	if err := exec.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if records[0].LastError == "" {
		t.Fatalf("LastError not recorded for timeout")
	}
}

func TestExecutor_PanickingHookIsCaughtAndDoesNotAlterState(t *testing.T) {
	handler := &recordingHandler{
		run:         func(ctx *queue.Context) (any, error) { return nil, errors.New("boom") },
		panicOnFail: true,
	}
	q, s := newTestQueue(t, intPtr(3), handler)

	t0 := time.Now()
	rec, err := q.Create(&t0, nil, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	exec := New(q, task.NewMetadata(rec, q.MaxAttempts()), nil, nil, nil)
	if err := exec.Run(); err != nil {
		t.Fatalf("Run() error = %v, want no error even though the hook panicked", err)
	}

	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if records[0].Attempts != 1 {
		t.Fatalf("Attempts = %d, want 1 despite the panicking hook", records[0].Attempts)
	}
}
