package relaysync

import (
	"fmt"
	"testing"
)

func TestFailureLogAppendAndList(t *testing.T) {
	log := NewFailureLog(NewInMemoryStore(), 0)

	if err := log.Append("t1", "First", "NETWORK_ERROR: connection reset"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := log.Append("t2", "Second", "DATA_ERROR: not found"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	records, err := log.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "t1" || records[1].ID != "t2" {
		t.Fatalf("records out of order: %+v", records)
	}
	if records[0].Timestamp.IsZero() {
		t.Fatalf("append should stamp the record")
	}
}

func TestFailureLogRejectsEmptyID(t *testing.T) {
	log := NewFailureLog(NewInMemoryStore(), 0)
	if err := log.Append("  ", "", "reason"); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFailureLogEvictsOldestAtCapacity(t *testing.T) {
	log := NewFailureLog(NewInMemoryStore(), 3)

	for i := 1; i <= 5; i++ {
		if err := log.Append(fmt.Sprintf("t%d", i), "", "reason"); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	records, err := log.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(records))
	}
	if records[0].ID != "t3" || records[2].ID != "t5" {
		t.Fatalf("expected oldest entries evicted, got %+v", records)
	}
}

func TestFailureLogDrop(t *testing.T) {
	log := NewFailureLog(NewInMemoryStore(), 0)

	if err := log.Append("t1", "", "first failure"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := log.Append("t1", "", "second failure"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := log.Append("t2", "", "other"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := log.Drop("t1"); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	records, err := log.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "t2" {
		t.Fatalf("expected only t2 to remain, got %+v", records)
	}

	if err := log.Drop("t2"); err != nil {
		t.Fatalf("drop failed: %v", err)
	}
	records, err = log.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty log, got %+v", records)
	}
}

func TestFailureLogClear(t *testing.T) {
	log := NewFailureLog(NewInMemoryStore(), 0)
	if err := log.Append("t1", "", "reason"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := log.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	records, err := log.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty log after clear, got %+v", records)
	}
}
