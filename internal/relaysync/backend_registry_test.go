package relaysync

import (
	"path/filepath"
	"testing"
)

func TestBuildStoreFromDSNMemory(t *testing.T) {
	for _, dsn := range []string{"", "memory://", "mem://", "inmem://"} {
		store, err := BuildStoreFromDSN(dsn)
		if err != nil {
			t.Fatalf("dsn %q: %v", dsn, err)
		}
		if _, ok := store.(*InMemoryStore); !ok {
			t.Fatalf("dsn %q: expected in-memory store, got %T", dsn, store)
		}
	}
}

func TestBuildStoreFromDSNFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := BuildStoreFromDSN("file://" + path)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	fileStore, ok := store.(*JSONFileStore)
	if !ok {
		t.Fatalf("expected file store, got %T", store)
	}
	if err := fileStore.Set("k1", []byte(`1`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
}

func TestBuildStoreFromDSNBarePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := BuildStoreFromDSN(path)
	if err != nil {
		t.Fatalf("bare path should select the file backend: %v", err)
	}
	if _, ok := store.(*JSONFileStore); !ok {
		t.Fatalf("expected file store, got %T", store)
	}
}

func TestBuildStoreFromDSNUnknownScheme(t *testing.T) {
	if _, err := BuildStoreFromDSN("carrier-pigeon://x"); err == nil {
		t.Fatalf("expected error for unknown scheme")
	}
}

func TestRegisteredStoreFactoryWins(t *testing.T) {
	marker := NewInMemoryStore()
	RegisterStoreFactory("teststore", func(dsn string) (Store, error) {
		return marker, nil
	})
	store, err := BuildStoreFromDSN("teststore://anything")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if store != Store(marker) {
		t.Fatalf("expected registered factory result, got %T", store)
	}
}

func TestRegisterStoreFactoryIgnoresInvalid(t *testing.T) {
	RegisterStoreFactory("  ", func(dsn string) (Store, error) { return nil, nil })
	RegisterStoreFactory("nilstorefactory", nil)
	if _, ok := lookupStoreFactory("nilstorefactory"); ok {
		t.Fatalf("nil factory should not register")
	}
}
