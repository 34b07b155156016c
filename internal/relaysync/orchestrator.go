package relaysync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const bulkSyncOperation = "bulk_sync"

type OrchestratorOptions struct {
	CheckpointEvery       int
	CompletenessThreshold int
	SourceTimeout         time.Duration
	SourceRetryAttempts   int
	SourceRetryBaseDelay  time.Duration
	ItemTimeout           time.Duration
	Logger                zerolog.Logger
}

// Orchestrator drives the per-thread export pipeline across a selected set:
// fetch, normalize, validate, dedupe-check, upload, record. Progress is
// checkpointed so an interrupted job resumes from its cursor, and one
// orchestrator run is active per process at a time.
type Orchestrator struct {
	source       Source
	uploader     *ChunkedUploader
	fingerprints *FingerprintStore
	progress     *JobProgressStore
	failures     *FailureLog
	opts         OrchestratorOptions
	logger       zerolog.Logger

	mu        sync.Mutex
	activeOps map[string]struct{}
}

func NewOrchestrator(source Source, uploader *ChunkedUploader, fingerprints *FingerprintStore, progress *JobProgressStore, failures *FailureLog, opts OrchestratorOptions) (*Orchestrator, error) {
	if uploader == nil || fingerprints == nil || progress == nil || failures == nil {
		return nil, ErrInvalidInput
	}
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = 5
	}
	if opts.CompletenessThreshold <= 0 {
		opts.CompletenessThreshold = DefaultCompletenessThreshold
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 20 * time.Second
	}
	if opts.SourceRetryAttempts <= 0 {
		opts.SourceRetryAttempts = DefaultMaxAttempts
	}
	if opts.SourceRetryBaseDelay <= 0 {
		opts.SourceRetryBaseDelay = 2 * time.Second
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		source:       source,
		uploader:     uploader,
		fingerprints: fingerprints,
		progress:     progress,
		failures:     failures,
		opts:         opts,
		logger:       opts.Logger,
		activeOps:    map[string]struct{}{},
	}, nil
}

// RunBulkSync exports the selected threads in order and returns the
// aggregate summary. A second overlapping invocation of the same named
// operation is rejected with ErrSyncInProgress rather than interleaved.
func (o *Orchestrator) RunBulkSync(ctx context.Context, selectedIDs []string, force bool) (SyncSummary, error) {
	ids := dedupeIDs(selectedIDs)
	if len(ids) == 0 {
		return SyncSummary{}, ErrInvalidInput
	}
	job := SyncJob{
		JobID:       uuid.NewString(),
		SelectedIDs: ids,
	}
	return o.runJob(ctx, job, force)
}

// ResumeJob continues a checkpointed job from its cursor.
func (o *Orchestrator) ResumeJob(ctx context.Context, job SyncJob, force bool) (SyncSummary, error) {
	if strings.TrimSpace(job.JobID) == "" || job.Cursor >= len(job.SelectedIDs) {
		return SyncSummary{}, ErrInvalidInput
	}
	return o.runJob(ctx, job, force)
}

func (o *Orchestrator) runJob(ctx context.Context, job SyncJob, force bool) (SyncSummary, error) {
	if err := o.begin(bulkSyncOperation); err != nil {
		return SyncSummary{}, err
	}
	defer o.end(bulkSyncOperation)

	summary := SyncSummary{JobID: job.JobID, Total: len(job.SelectedIDs)}
	if err := o.progress.Save(job); err != nil {
		return summary, err
	}
	o.logger.Info().
		Str("job", job.JobID).
		Int("total", len(job.SelectedIDs)).
		Int("cursor", job.Cursor).
		Msg("bulk sync started")

	sinceCheckpoint := 0
	for job.Cursor < len(job.SelectedIDs) {
		if ctx.Err() != nil {
			_ = o.progress.Save(job)
			summary.Success = job.Success
			summary.Failed = job.Failed
			return summary, ctx.Err()
		}
		id := job.SelectedIDs[job.Cursor]
		// Cancellation is honored between items only. The in-flight item runs
		// detached from the job's cancel signal under its own timeout, so a
		// shutdown never leaves a half-written destination record.
		itemCtx, cancelItem := context.WithTimeout(context.WithoutCancel(ctx), o.opts.ItemTimeout)
		result := o.syncOne(itemCtx, id, force, false)
		cancelItem()
		summary.Items = append(summary.Items, result)
		switch result.Status {
		case StatusSynced:
			job.Success++
		case StatusSkipped:
			summary.Skipped++
		case StatusFailed:
			job.Failed++
			if err := o.failures.Append(result.ID, result.Title, result.Reason); err != nil {
				o.logger.Warn().Err(err).Str("thread", result.ID).Msg("failed to record failure")
			}
		}
		job.Cursor++
		sinceCheckpoint++
		if sinceCheckpoint >= o.opts.CheckpointEvery {
			if err := o.progress.Save(job); err != nil {
				o.logger.Warn().Err(err).Str("job", job.JobID).Msg("checkpoint save failed")
			}
			sinceCheckpoint = 0
		}
	}

	if err := o.progress.Clear(job.JobID); err != nil {
		o.logger.Warn().Err(err).Str("job", job.JobID).Msg("failed to clear completed job")
	}
	summary.Success = job.Success
	summary.Failed = job.Failed
	o.logger.Info().
		Str("job", job.JobID).
		Int("success", summary.Success).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Msg("bulk sync completed")
	return summary, nil
}

// RetryOne re-runs the single-item pipeline for a previously failed thread
// and drops its failure records on success.
func (o *Orchestrator) RetryOne(ctx context.Context, id string) (ItemResult, error) {
	if strings.TrimSpace(id) == "" {
		return ItemResult{}, ErrInvalidInput
	}
	result := o.syncOne(ctx, id, true, false)
	if result.Status == StatusSynced {
		if err := o.failures.Drop(id); err != nil {
			o.logger.Warn().Err(err).Str("thread", id).Msg("failed to drop failure records")
		}
	}
	return result, nil
}

func (o *Orchestrator) syncOne(ctx context.Context, id string, force, retried bool) ItemResult {
	result := ItemResult{ID: id, Status: StatusSyncing}
	if o.source == nil {
		return failedResult(id, "", ErrNoSourceSession.Error())
	}

	var raw map[string]any
	err := WithRetry(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
		defer cancel()
		var fetchErr error
		raw, fetchErr = o.source.GetThreadDetail(callCtx, id)
		return fetchErr
	}, o.opts.SourceRetryAttempts, o.opts.SourceRetryBaseDelay)
	if err != nil {
		return o.failOrRetry(ctx, id, "", err, force, retried)
	}

	detail := Normalize(raw)
	if detail.ID == "" {
		detail.ID = id
	}
	result.Title = detail.Title

	validation := Validate(detail, o.opts.CompletenessThreshold)
	for _, warning := range validation.Warnings {
		o.logger.Warn().Str("thread", id).Msg(warning)
	}
	if !validation.Valid {
		return failedResult(id, detail.Title, strings.Join(validation.Errors, "; "))
	}

	fingerprint := ComputeFingerprint(detail)
	changed, err := o.fingerprints.HasChanged(detail.ID, fingerprint)
	if err != nil {
		return failedResult(id, detail.Title, err.Error())
	}
	if !changed && !force {
		o.logger.Debug().Str("thread", id).Msg("fingerprint unchanged, skipping")
		return ItemResult{ID: id, Title: detail.Title, Status: StatusSkipped, Reason: "unchanged"}
	}

	platform := ""
	if o.source != nil {
		platform = o.source.Platform()
	}
	ref, err := o.uploader.Upload(ctx, platform, detail)
	if err != nil {
		if errors.Is(err, ErrUploadPartial) {
			return failedResult(id, detail.Title, err.Error())
		}
		return o.failOrRetry(ctx, id, detail.Title, err, force, retried)
	}

	if err := o.fingerprints.Save(detail.ID, fingerprint); err != nil {
		o.logger.Warn().Err(err).Str("thread", id).Msg("failed to persist fingerprint")
	}
	result.Status = StatusSynced
	result.URL = ref.URL
	return result
}

// failOrRetry applies the recovery directive: retryable classes get one
// recursive attempt on the same item after the directed delay, everything
// else fails the item with its classified reason.
func (o *Orchestrator) failOrRetry(ctx context.Context, id, title string, err error, force, retried bool) ItemResult {
	recovery := RecoveryFor(err)
	retryable := recovery.Action == RecoverRetryAfterCooldown || recovery.Action == RecoverRetryShortDelay
	if retryable && !retried {
		o.logger.Info().
			Str("thread", id).
			Str("class", string(recovery.Class)).
			Dur("delay", recovery.Delay).
			Msg("recovering item after delay")
		if waitErr := sleepContext(ctx, recovery.Delay); waitErr != nil {
			return failedResult(id, title, waitErr.Error())
		}
		return o.syncOne(ctx, id, force, true)
	}
	reason := fmt.Sprintf("%s: %s", recovery.Class, err.Error())
	switch recovery.Action {
	case RecoverSkip:
		return ItemResult{ID: id, Title: title, Status: StatusSkipped, Reason: reason}
	case RecoverReauthenticate:
		reason = fmt.Sprintf("%s: re-authenticate and retry: %s", recovery.Class, err.Error())
	}
	return failedResult(id, title, reason)
}

func (o *Orchestrator) begin(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, active := o.activeOps[name]; active {
		return ErrSyncInProgress
	}
	o.activeOps[name] = struct{}{}
	return nil
}

func (o *Orchestrator) end(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeOps, name)
}

func failedResult(id, title, reason string) ItemResult {
	return ItemResult{ID: id, Title: title, Status: StatusFailed, Reason: reason}
}

func dedupeIDs(ids []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
