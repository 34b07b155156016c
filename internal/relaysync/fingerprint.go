package relaysync

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"
)

const exportRecordKeyPrefix = "export:"

// ComputeFingerprint derives a cheap content hash over the thread's identity
// fields. It only needs to detect most content drift between exports;
// collisions are an accepted tradeoff, not a correctness hazard.
func ComputeFingerprint(detail ThreadDetail) string {
	firstQuery := ""
	lastQuery := ""
	if len(detail.Entries) > 0 {
		firstQuery = detail.Entries[0].Query
		lastQuery = detail.Entries[len(detail.Entries)-1].Query
	}
	material := strings.Join([]string{
		detail.ID,
		detail.Title,
		strconv.Itoa(len(detail.Entries)),
		firstQuery,
		lastQuery,
	}, "|")
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(material))
	return fmt.Sprintf("%08x", hasher.Sum32())
}

// FingerprintStore owns ExportRecord persistence: one record per thread id,
// overwritten on each successful re-export, removed only by explicit clear.
type FingerprintStore struct {
	store Store
}

func NewFingerprintStore(store Store) *FingerprintStore {
	return &FingerprintStore{store: store}
}

func (f *FingerprintStore) HasChanged(id, fingerprint string) (bool, error) {
	record, ok, err := f.Lookup(id)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return record.Fingerprint != fingerprint, nil
}

func (f *FingerprintStore) Lookup(id string) (ExportRecord, bool, error) {
	data, ok, err := f.store.Get(exportRecordKeyPrefix + id)
	if err != nil || !ok {
		return ExportRecord{}, false, err
	}
	var record ExportRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return ExportRecord{}, false, err
	}
	return record, true, nil
}

func (f *FingerprintStore) Save(id, fingerprint string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(ExportRecord{
		ID:          id,
		Fingerprint: fingerprint,
		ExportedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return f.store.Set(exportRecordKeyPrefix+id, data)
}

func (f *FingerprintStore) Clear(ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, exportRecordKeyPrefix+id)
	}
	return f.store.Remove(keys...)
}
