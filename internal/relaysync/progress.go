package relaysync

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

const (
	jobKeyPrefix        = "job:"
	jobIndexKey         = "jobs:index"
	DefaultJobFreshness = time.Hour
)

// JobProgressStore checkpoints in-flight bulk jobs so a crash mid-run can be
// resumed instead of restarted. The KV contract has no scan, so a separate
// index key tracks the known job ids.
type JobProgressStore struct {
	store     Store
	freshness time.Duration
}

func NewJobProgressStore(store Store, freshness time.Duration) *JobProgressStore {
	if freshness <= 0 {
		freshness = DefaultJobFreshness
	}
	return &JobProgressStore{store: store, freshness: freshness}
}

func (p *JobProgressStore) Save(job SyncJob) error {
	if strings.TrimSpace(job.JobID) == "" {
		return ErrInvalidInput
	}
	job.LastUpdate = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := p.store.Set(jobKeyPrefix+job.JobID, data); err != nil {
		return err
	}
	return p.indexAdd(job.JobID)
}

func (p *JobProgressStore) Load(jobID string) (SyncJob, bool, error) {
	data, ok, err := p.store.Get(jobKeyPrefix + jobID)
	if err != nil || !ok {
		return SyncJob{}, false, err
	}
	var job SyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		return SyncJob{}, false, err
	}
	return job, true, nil
}

func (p *JobProgressStore) Clear(jobID string) error {
	if err := p.store.Remove(jobKeyPrefix + jobID); err != nil {
		return err
	}
	return p.indexRemove(jobID)
}

// FindResumable returns the most recently updated job that is still fresh
// and not yet finished, or false if none qualifies. Stale entries found
// along the way are dropped from the index.
func (p *JobProgressStore) FindResumable() (SyncJob, bool, error) {
	ids, err := p.indexLoad()
	if err != nil {
		return SyncJob{}, false, err
	}
	var best SyncJob
	found := false
	var stale []string
	for _, jobID := range ids {
		job, ok, loadErr := p.Load(jobID)
		if loadErr != nil {
			return SyncJob{}, false, loadErr
		}
		if !ok {
			stale = append(stale, jobID)
			continue
		}
		if time.Since(job.LastUpdate) > p.freshness || job.Cursor >= len(job.SelectedIDs) {
			stale = append(stale, jobID)
			continue
		}
		if !found || job.LastUpdate.After(best.LastUpdate) {
			best = job
			found = true
		}
	}
	for _, jobID := range stale {
		_ = p.Clear(jobID)
	}
	if !found {
		return SyncJob{}, false, nil
	}
	return best, true, nil
}

func (p *JobProgressStore) indexLoad() ([]string, error) {
	data, ok, err := p.store.Get(jobIndexKey)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *JobProgressStore) indexSave(ids []string) error {
	if len(ids) == 0 {
		return p.store.Remove(jobIndexKey)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return p.store.Set(jobIndexKey, data)
}

func (p *JobProgressStore) indexAdd(jobID string) error {
	ids, err := p.indexLoad()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == jobID {
			return nil
		}
	}
	return p.indexSave(append(ids, jobID))
}

func (p *JobProgressStore) indexRemove(jobID string) error {
	ids, err := p.indexLoad()
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, existing := range ids {
		if existing != jobID {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(ids) {
		return nil
	}
	return p.indexSave(kept)
}
