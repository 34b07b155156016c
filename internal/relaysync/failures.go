package relaysync

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	failureLogKey          = "failures:log"
	DefaultFailureLogLimit = 50
)

// FailureLog is an append-only ring of recent per-item failures, capped so
// the durable store never grows unbounded. Oldest entries are evicted first.
type FailureLog struct {
	store Store
	limit int
}

func NewFailureLog(store Store, limit int) *FailureLog {
	if limit <= 0 {
		limit = DefaultFailureLogLimit
	}
	return &FailureLog{store: store, limit: limit}
}

func (f *FailureLog) Append(id, title, reason string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	records, err := f.List()
	if err != nil {
		return err
	}
	records = append(records, FailureRecord{
		ID:        id,
		Title:     title,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	if len(records) > f.limit {
		records = records[len(records)-f.limit:]
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return f.store.Set(failureLogKey, data)
}

func (f *FailureLog) List() ([]FailureRecord, error) {
	data, ok, err := f.store.Get(failureLogKey)
	if err != nil || !ok {
		return nil, err
	}
	var records []FailureRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (f *FailureLog) Clear() error {
	return f.store.Remove(failureLogKey)
}

// Drop removes entries for the given thread id, used after a manual retry
// succeeds.
func (f *FailureLog) Drop(id string) error {
	records, err := f.List()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, record := range records {
		if record.ID != id {
			kept = append(kept, record)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	if len(kept) == 0 {
		return f.store.Remove(failureLogKey)
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return f.store.Set(failureLogKey, data)
}
