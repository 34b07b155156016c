package relaysync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeDestination struct {
	mu          sync.Mutex
	createCalls []int
	appendCalls []int
	createErr   error
	appendErr   error
	appendErrAt int
	onAppend    func(call int)
}

func (f *fakeDestination) CreateRecord(ctx context.Context, props RecordProperties, blocks []Block) (RecordRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return RecordRef{}, f.createErr
	}
	f.createCalls = append(f.createCalls, len(blocks))
	return RecordRef{ID: "rec_1", URL: "https://notion.example/rec_1"}, nil
}

func (f *fakeDestination) AppendBlocks(ctx context.Context, recordID string, blocks []Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onAppend != nil {
		f.onAppend(len(f.appendCalls))
	}
	if f.appendErr != nil && len(f.appendCalls) == f.appendErrAt {
		return f.appendErr
	}
	f.appendCalls = append(f.appendCalls, len(blocks))
	return nil
}

func newTestUploader(t *testing.T, dest DestinationClient) (*ChunkedUploader, *RateLimiter) {
	t.Helper()
	limiter := newTestLimiter(1000, time.Minute, time.Minute)
	uploader, err := NewChunkedUploader(dest, limiter, UploaderOptions{
		AppendDelay:    time.Millisecond,
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new uploader failed: %v", err)
	}
	return uploader, limiter
}

func detailWithEntries(count int) ThreadDetail {
	detail := ThreadDetail{ID: "t1", Title: "Paginated"}
	for i := 0; i < count; i++ {
		detail.Entries = append(detail.Entries, Entry{Answer: "block content"})
	}
	return detail
}

func TestUploaderSingleCreateCall(t *testing.T) {
	dest := &fakeDestination{}
	uploader, limiter := newTestUploader(t, dest)
	defer limiter.Close()

	ref, err := uploader.Upload(context.Background(), "perplexity", detailWithEntries(3))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if ref.ID != "rec_1" {
		t.Fatalf("expected record ref, got %+v", ref)
	}
	if len(dest.createCalls) != 1 || dest.createCalls[0] != 3 {
		t.Fatalf("expected one create with 3 blocks, got %v", dest.createCalls)
	}
	if len(dest.appendCalls) != 0 {
		t.Fatalf("expected no appends, got %v", dest.appendCalls)
	}
}

func TestUploaderPaginatesOverflowBlocks(t *testing.T) {
	dest := &fakeDestination{}
	uploader, limiter := newTestUploader(t, dest)
	defer limiter.Close()

	// 250 one-block entries: create carries 100, two appends carry 100+50.
	_, err := uploader.Upload(context.Background(), "perplexity", detailWithEntries(250))
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if len(dest.createCalls) != 1 || dest.createCalls[0] != 100 {
		t.Fatalf("expected one create with 100 blocks, got %v", dest.createCalls)
	}
	if len(dest.appendCalls) != 2 || dest.appendCalls[0] != 100 || dest.appendCalls[1] != 50 {
		t.Fatalf("expected appends of 100 and 50, got %v", dest.appendCalls)
	}
}

func TestUploaderCreateFailureAbortsItem(t *testing.T) {
	dest := &fakeDestination{createErr: &DataError{Message: "parent page missing"}}
	uploader, limiter := newTestUploader(t, dest)
	defer limiter.Close()

	_, err := uploader.Upload(context.Background(), "perplexity", detailWithEntries(150))
	if err == nil {
		t.Fatalf("expected create failure to propagate")
	}
	if errors.Is(err, ErrUploadPartial) {
		t.Fatalf("create failure must not be reported as partial: %v", err)
	}
	if len(dest.appendCalls) != 0 {
		t.Fatalf("no appends should run after create failure, got %v", dest.appendCalls)
	}
}

func TestUploaderAppendFailureReportsPartial(t *testing.T) {
	dest := &fakeDestination{
		appendErr:   &NetworkError{Message: "append failed"},
		appendErrAt: 1,
	}
	uploader, limiter := newTestUploader(t, dest)
	defer limiter.Close()

	ref, err := uploader.Upload(context.Background(), "perplexity", detailWithEntries(250))
	if !errors.Is(err, ErrUploadPartial) {
		t.Fatalf("expected partial upload error, got %v", err)
	}
	if ref.ID != "rec_1" {
		t.Fatalf("partial failure must keep the created record ref, got %+v", ref)
	}
	if !strings.Contains(err.Error(), "appended 100 of 150") {
		t.Fatalf("expected progress detail in error, got %v", err)
	}
}
