package relaysync

import (
	"database/sql"
	"errors"
	"testing"
)

func TestNewPostgresStoreRejectsEmptyDSN(t *testing.T) {
	if _, err := NewPostgresStore("  "); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPostgresStoreOpensLazily(t *testing.T) {
	opened := 0
	store, err := NewPostgresStore("postgres://localhost/relaysync")
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	openErr := errors.New("refused")
	store.openDB = func(driverName, dsn string) (*sql.DB, error) {
		opened++
		if driverName != "postgres" {
			t.Errorf("unexpected driver: %s", driverName)
		}
		if dsn != "postgres://localhost/relaysync" {
			t.Errorf("unexpected dsn: %s", dsn)
		}
		return nil, openErr
	}

	if opened != 0 {
		t.Fatalf("constructor must not open the database")
	}
	if _, _, err := store.Get("k1"); !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
	if err := store.Set("k1", []byte(`1`)); !errors.Is(err, openErr) {
		t.Fatalf("expected cached open error, got %v", err)
	}
	if opened != 1 {
		t.Fatalf("open should run once, ran %d times", opened)
	}
}

func TestPostgresStoreSetRejectsEmptyKey(t *testing.T) {
	store, err := NewPostgresStore("postgres://localhost/relaysync")
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	if err := store.Set("  ", []byte(`1`)); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPostgresQuoteIdentifier(t *testing.T) {
	if got := postgresQuoteIdentifier("relaysync_state"); got != `"relaysync_state"` {
		t.Fatalf("unexpected quoting: %s", got)
	}
	if got := postgresQuoteIdentifier(`weird"name`); got != `"weird""name"` {
		t.Fatalf("embedded quotes should double: %s", got)
	}
}

func TestPostgresStoreCloseWithoutOpen(t *testing.T) {
	store, err := NewPostgresStore("postgres://localhost/relaysync")
	if err != nil {
		t.Fatalf("new store failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close before open should be a no-op: %v", err)
	}
}
