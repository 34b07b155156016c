package source

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentworkforce/relaysync/internal/relaysync"
)

// Config selects and parameterizes one platform adapter. Kind picks the
// transport ("rest" or "bridge"); Platform names the upstream service.
type Config struct {
	Kind           string
	Platform       string
	BaseURL        string
	SessionToken   string
	SessionCookie  string
	URLPattern     string
	RequestTimeout time.Duration
}

type Factory func(cfg Config) (relaysync.Source, error)

var adapterRegistry = struct {
	mu        sync.RWMutex
	factories map[string]Factory
}{
	factories: map[string]Factory{},
}

func Register(kind string, factory Factory) {
	kind = normalizeKind(kind)
	if kind == "" || factory == nil {
		return
	}
	adapterRegistry.mu.Lock()
	defer adapterRegistry.mu.Unlock()
	adapterRegistry.factories[kind] = factory
}

func lookup(kind string) (Factory, bool) {
	kind = normalizeKind(kind)
	adapterRegistry.mu.RLock()
	defer adapterRegistry.mu.RUnlock()
	factory, ok := adapterRegistry.factories[kind]
	return factory, ok
}

// Build constructs the adapter for the config, consulting registered
// factories before the built-in transports.
func Build(cfg Config) (relaysync.Source, error) {
	kind := normalizeKind(cfg.Kind)
	if factory, ok := lookup(kind); ok {
		return factory(cfg)
	}
	switch kind {
	case "", "rest":
		return NewRESTAdapter(RESTOptions{
			Platform:      cfg.Platform,
			BaseURL:       cfg.BaseURL,
			SessionToken:  cfg.SessionToken,
			SessionCookie: cfg.SessionCookie,
			URLPattern:    cfg.URLPattern,
			Timeout:       cfg.RequestTimeout,
		})
	case "bridge":
		return NewBridgeAdapter(BridgeOptions{
			Platform:       cfg.Platform,
			URL:            cfg.BaseURL,
			URLPattern:     cfg.URLPattern,
			RequestTimeout: cfg.RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported source adapter kind: %s", kind)
	}
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
