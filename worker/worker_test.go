package worker

import (
	"testing"
	"time"

	"oss.nandlabs.io/slumber/lifecycle"
	"oss.nandlabs.io/slumber/queue"
	"oss.nandlabs.io/slumber/store"
)

type successHandler struct{ ran chan struct{} }

func (h *successHandler) Run(ctx *queue.Context) (any, error) {
	close(h.ran)
	return nil, nil
}

func TestQueueWorker_WorkOneExecutesDueTask(t *testing.T) {
	ran := make(chan struct{})
	s := store.NewInMemoryStore()
	q, err := queue.New("emails", func() queue.Handler { return &successHandler{ran: ran} }, s)
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}
	now := time.Now()
	if _, err := q.Create(&now, nil, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := New(q, nil, nil)
	if err := w.WorkOne(); err != nil {
		t.Fatalf("WorkOne() error = %v", err)
	}

	select {
	case <-ran:
	default:
		t.Fatalf("handler was not run")
	}
	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("Read() after success = %+v, want empty", records)
	}
}

func TestQueueWorker_WorkOneNoTaskIsNoOp(t *testing.T) {
	s := store.NewInMemoryStore()
	q, err := queue.New("emails", func() queue.Handler { return &successHandler{ran: make(chan struct{})} }, s)
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}
	w := New(q, nil, nil)
	if err := w.WorkOne(); err != nil {
		t.Fatalf("WorkOne() error = %v", err)
	}
}

func TestQueueWorker_StartStopLifecycle(t *testing.T) {
	s := store.NewInMemoryStore()
	q, err := queue.New("emails", func() queue.Handler { return &successHandler{ran: make(chan struct{})} }, s, queue.WithPollPeriod(5*time.Millisecond))
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}
	w := New(q, nil, nil)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if w.State() != lifecycle.Running {
		t.Fatalf("State() = %v, want Running", w.State())
	}
	if err := w.Start(); err != lifecycle.ErrCompAlreadyStarted {
		t.Fatalf("Start() again error = %v, want ErrCompAlreadyStarted", err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.State() != lifecycle.Stopped {
		t.Fatalf("State() = %v, want Stopped", w.State())
	}
	if err := w.Stop(); err != lifecycle.ErrCompAlreadyStopped {
		t.Fatalf("Stop() again error = %v, want ErrCompAlreadyStopped", err)
	}
}
