package source

import (
	"context"
	"testing"

	"github.com/agentworkforce/relaysync/internal/relaysync"
)

type stubSource struct {
	platform string
}

func (s *stubSource) Platform() string { return s.platform }

func (s *stubSource) ListThreads(ctx context.Context, page, limit int) (relaysync.ThreadPage, error) {
	return relaysync.ThreadPage{}, nil
}

func (s *stubSource) GetThreadDetail(ctx context.Context, id string) (map[string]any, error) {
	return nil, relaysync.ErrNotFound
}

func (s *stubSource) ExtractID(url string) string { return "" }

func TestBuildDefaultsToREST(t *testing.T) {
	adapter, err := Build(Config{Platform: "perplexity", BaseURL: "http://example.invalid"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, ok := adapter.(*RESTAdapter); !ok {
		t.Fatalf("expected REST adapter, got %T", adapter)
	}
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	if _, err := Build(Config{Kind: "carrier-pigeon", Platform: "perplexity"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestRegisteredFactoryWinsOverBuiltin(t *testing.T) {
	Register("Test-Kind", func(cfg Config) (relaysync.Source, error) {
		return &stubSource{platform: cfg.Platform}, nil
	})

	adapter, err := Build(Config{Kind: "test-kind", Platform: "custom"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	stub, ok := adapter.(*stubSource)
	if !ok {
		t.Fatalf("expected registered factory result, got %T", adapter)
	}
	if stub.platform != "custom" {
		t.Fatalf("config should flow to the factory, got %q", stub.platform)
	}
}

func TestRegisterIgnoresInvalidEntries(t *testing.T) {
	Register("  ", func(cfg Config) (relaysync.Source, error) { return nil, nil })
	Register("nilfactory", nil)
	if _, ok := lookup("nilfactory"); ok {
		t.Fatalf("nil factory should not register")
	}
}
