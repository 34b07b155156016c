package relaysync

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the namespaced durable key-value contract the sync core persists
// through. Backends are selected by DSN scheme via the backend registry.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Remove(keys ...string) error
	Close() error
}

type namespacedStore struct {
	prefix string
	inner  Store
}

func NamespaceStore(inner Store, namespace string) Store {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return inner
	}
	return &namespacedStore{prefix: namespace + ":", inner: inner}
}

func (s *namespacedStore) Get(key string) ([]byte, bool, error) {
	return s.inner.Get(s.prefix + key)
}

func (s *namespacedStore) Set(key string, value []byte) error {
	return s.inner.Set(s.prefix+key, value)
}

func (s *namespacedStore) Remove(keys ...string) error {
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, s.prefix+key)
	}
	return s.inner.Remove(prefixed...)
}

func (s *namespacedStore) Close() error {
	return nil
}

type InMemoryStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: map[string][]byte{}}
}

func (s *InMemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *InMemoryStore) Set(key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *InMemoryStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

type JSONFileStore struct {
	path   string
	mu     sync.Mutex
	values map[string]json.RawMessage
	loaded bool
}

func NewJSONFileStore(path string) (*JSONFileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrInvalidInput
	}
	s := &JSONFileStore{path: path, values: map[string]json.RawMessage{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONFileStore) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *JSONFileStore) Set(key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidInput
	}
	if !json.Valid(value) {
		encoded, err := json.Marshal(string(value))
		if err != nil {
			return err
		}
		value = encoded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.values[key]
	s.values[key] = append(json.RawMessage(nil), value...)
	if err := s.saveLocked(); err != nil {
		if existed {
			s.values[key] = previous
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *JSONFileStore) Remove(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveLocked()
}

func (s *JSONFileStore) Close() error {
	return nil
}

func (s *JSONFileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return err
	}
	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if snapshot != nil {
		s.values = snapshot
	}
	s.loaded = true
	return nil
}

func (s *JSONFileStore) saveLocked() error {
	data, err := json.Marshal(s.values)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
