package relaysync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type RateLimiterOptions struct {
	MaxPerWindow     int
	Window           time.Duration
	QueueTimeout     time.Duration
	ShortSpacing     time.Duration
	LongSpacing      time.Duration
	BacklogThreshold int
	Capacity         int
	Logger           zerolog.Logger
}

type rateLimiterItem struct {
	ctx        context.Context
	call       func(ctx context.Context) error
	enqueuedAt time.Time
	done       chan error
}

// RateLimiter is a single-flight FIFO dispatch queue for destination calls.
// No more than MaxPerWindow calls leave within any trailing window, items
// waiting past QueueTimeout are rejected instead of dispatched, and the
// inter-call spacing stretches once the backlog passes BacklogThreshold.
type RateLimiter struct {
	opts   RateLimiterOptions
	logger zerolog.Logger

	mu         sync.Mutex
	queue      []*rateLimiterItem
	dispatches []time.Time
	lastCall   time.Time

	pollInterval time.Duration
	closed       chan struct{}
	closeOnce    sync.Once
	drained      chan struct{}
}

func NewRateLimiter(opts RateLimiterOptions) *RateLimiter {
	if opts.MaxPerWindow <= 0 {
		opts.MaxPerWindow = 30
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = 5 * time.Minute
	}
	if opts.ShortSpacing <= 0 {
		opts.ShortSpacing = 500 * time.Millisecond
	}
	if opts.LongSpacing <= 0 {
		opts.LongSpacing = 2 * time.Second
	}
	if opts.BacklogThreshold <= 0 {
		opts.BacklogThreshold = 5
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 1024
	}
	l := &RateLimiter{
		opts:         opts,
		logger:       opts.Logger,
		pollInterval: 10 * time.Millisecond,
		closed:       make(chan struct{}),
		drained:      make(chan struct{}),
	}
	go l.run()
	return l
}

// Do enqueues the call and blocks until it has been dispatched and returned,
// its queue wait expired, or ctx was cancelled.
func (l *RateLimiter) Do(ctx context.Context, call func(ctx context.Context) error) error {
	if call == nil {
		return ErrInvalidInput
	}
	item := &rateLimiterItem{
		ctx:        ctx,
		call:       call,
		enqueuedAt: time.Now(),
		done:       make(chan error, 1),
	}
	l.mu.Lock()
	select {
	case <-l.closed:
		l.mu.Unlock()
		return ErrLimiterClosed
	default:
	}
	if len(l.queue) >= l.opts.Capacity {
		l.mu.Unlock()
		return ErrQueueFull
	}
	l.queue = append(l.queue, item)
	l.mu.Unlock()

	select {
	case err := <-item.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *RateLimiter) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *RateLimiter) Close() {
	l.closeOnce.Do(func() {
		close(l.closed)
	})
	<-l.drained
}

func (l *RateLimiter) run() {
	defer close(l.drained)
	for {
		item, depth, ok := l.pop()
		if !ok {
			select {
			case <-l.closed:
				l.rejectPending()
				return
			case <-time.After(l.pollInterval):
				continue
			}
		}
		if waited := time.Since(item.enqueuedAt); waited > l.opts.QueueTimeout {
			l.logger.Warn().Dur("waited", waited).Int("backlog", depth).Msg("queued call timed out before dispatch")
			item.done <- ErrQueueTimeout
			continue
		}
		if item.ctx.Err() != nil {
			item.done <- item.ctx.Err()
			continue
		}
		if err := l.waitForSlot(item, depth); err != nil {
			item.done <- err
			continue
		}
		l.recordDispatch()
		item.done <- item.call(item.ctx)
	}
}

func (l *RateLimiter) pop() (*rateLimiterItem, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, 0, false
	}
	item := l.queue[0]
	l.queue = l.queue[1:]
	return item, len(l.queue), true
}

func (l *RateLimiter) rejectPending() {
	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, item := range pending {
		item.done <- ErrLimiterClosed
	}
}

// waitForSlot blocks until both the window ceiling and the adaptive spacing
// admit the next dispatch.
func (l *RateLimiter) waitForSlot(item *rateLimiterItem, depth int) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.pruneWindowLocked(now)
		var wait time.Duration
		if len(l.dispatches) >= l.opts.MaxPerWindow {
			wait = l.dispatches[0].Add(l.opts.Window).Sub(now)
		} else if !l.lastCall.IsZero() {
			spacing := l.opts.ShortSpacing
			if depth > l.opts.BacklogThreshold {
				spacing = l.opts.LongSpacing
			}
			if since := now.Sub(l.lastCall); since < spacing {
				wait = spacing - since
			}
		}
		l.mu.Unlock()
		if wait <= 0 {
			return nil
		}
		if waited := time.Since(item.enqueuedAt); waited+wait > l.opts.QueueTimeout {
			l.logger.Warn().Dur("waited", waited).Dur("pending", wait).Msg("queued call cannot dispatch before its deadline")
			return ErrQueueTimeout
		}
		if err := sleepContext(item.ctx, wait); err != nil {
			return err
		}
	}
}

func (l *RateLimiter) recordDispatch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.pruneWindowLocked(now)
	l.dispatches = append(l.dispatches, now)
	l.lastCall = now
}

func (l *RateLimiter) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-l.opts.Window)
	kept := l.dispatches[:0]
	for _, at := range l.dispatches {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	l.dispatches = kept
}
