package relaysync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type UploaderOptions struct {
	MaxTextLength    int
	MaxBlocksPerCall int
	AppendDelay      time.Duration
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	Logger           zerolog.Logger
}

// ChunkedUploader writes one thread as a destination record: the first
// batch of blocks rides on the create call, the remainder is appended in
// paginated batches. Every destination call goes through the rate limiter
// and the retry policy.
type ChunkedUploader struct {
	client  DestinationClient
	limiter *RateLimiter
	opts    UploaderOptions
	logger  zerolog.Logger
}

func NewChunkedUploader(client DestinationClient, limiter *RateLimiter, opts UploaderOptions) (*ChunkedUploader, error) {
	if client == nil || limiter == nil {
		return nil, ErrInvalidInput
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = DefaultMaxTextLength
	}
	if opts.MaxBlocksPerCall <= 0 {
		opts.MaxBlocksPerCall = DefaultMaxBlocksPerCall
	}
	if opts.AppendDelay <= 0 {
		opts.AppendDelay = 350 * time.Millisecond
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultMaxAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultBaseDelay
	}
	return &ChunkedUploader{
		client:  client,
		limiter: limiter,
		opts:    opts,
		logger:  opts.Logger,
	}, nil
}

// Upload creates the destination record and appends any overflow blocks.
// A create failure aborts the item with nothing committed; an append
// failure leaves the created record in place and reports ErrUploadPartial.
func (u *ChunkedUploader) Upload(ctx context.Context, platform string, detail ThreadDetail) (RecordRef, error) {
	blocks := BuildBlocks(detail, u.opts.MaxTextLength)
	first := blocks
	if len(first) > u.opts.MaxBlocksPerCall {
		first = blocks[:u.opts.MaxBlocksPerCall]
	}

	props := RecordProperties{Title: detail.Title, Platform: platform}
	var ref RecordRef
	err := u.call(ctx, func(ctx context.Context) error {
		created, createErr := u.client.CreateRecord(ctx, props, first)
		if createErr != nil {
			return createErr
		}
		ref = created
		return nil
	})
	if err != nil {
		return RecordRef{}, err
	}

	remaining := blocks[len(first):]
	appended := 0
	for len(remaining) > 0 {
		batch := remaining
		if len(batch) > u.opts.MaxBlocksPerCall {
			batch = remaining[:u.opts.MaxBlocksPerCall]
		}
		if err := sleepContext(ctx, u.opts.AppendDelay); err != nil {
			return ref, fmt.Errorf("%w: appended %d of %d overflow blocks: %s",
				ErrUploadPartial, appended, len(blocks)-len(first), err)
		}
		if err := u.call(ctx, func(ctx context.Context) error {
			return u.client.AppendBlocks(ctx, ref.ID, batch)
		}); err != nil {
			return ref, fmt.Errorf("%w: appended %d of %d overflow blocks: %s",
				ErrUploadPartial, appended, len(blocks)-len(first), err)
		}
		appended += len(batch)
		remaining = remaining[len(batch):]
	}
	u.logger.Debug().
		Str("thread", detail.ID).
		Int("blocks", len(blocks)).
		Str("record", ref.ID).
		Msg("uploaded thread")
	return ref, nil
}

func (u *ChunkedUploader) call(ctx context.Context, op func(ctx context.Context) error) error {
	return u.limiter.Do(ctx, func(ctx context.Context) error {
		return WithRetry(ctx, op, u.opts.RetryAttempts, u.opts.RetryBaseDelay)
	})
}
