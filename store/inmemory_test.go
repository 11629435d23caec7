package store

import (
	"testing"
	"time"
)

func TestInMemoryStore_CreateAssignsIncrementingIDs(t *testing.T) {
	s := NewInMemoryStore()

	a, err := s.Create("q", nil, nil, nil, "a")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b, err := s.Create("q", nil, nil, nil, "b")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("IDs = %d, %d, want 1, 2", a.ID, b.ID)
	}
}

func TestInMemoryStore_ReadFilter(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Create("emails", nil, nil, nil, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Create("sms", nil, nil, nil, ""); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	records, err := s.Read(Filter{"queue": "sms"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 || records[0].Queue != "sms" {
		t.Fatalf("Read(queue=sms) = %+v, want one sms record", records)
	}
}

func TestInMemoryStore_UpdateMutatesAndIsIsolatedFromReadClones(t *testing.T) {
	s := NewInMemoryStore()
	created, err := s.Create("q", nil, nil, nil, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	now := time.Now()
	if err := s.Update(created.ID, map[string]any{"last_fail_at": now, "last_error": "x"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if records[0].LastError != "x" || records[0].LastFailAt == nil {
		t.Fatalf("after update = %+v", records[0])
	}

	records[0].LastError = "mutated by caller"
	records2, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if records2[0].LastError != "x" {
		t.Fatalf("store was mutated through a Read() clone: %+v", records2[0])
	}
}

func TestInMemoryStore_DeleteRemovesRecord(t *testing.T) {
	s := NewInMemoryStore()
	created, err := s.Create("q", nil, nil, nil, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Delete(created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	records, err := s.Read(nil)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("Read() after delete = %+v, want empty", records)
	}
}

func TestInMemoryStore_DeleteMissingIsNoOp(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.Delete(42); err != nil {
		t.Fatalf("Delete(missing) error = %v", err)
	}
}
