// Package cleanup runs deferred object-store operations on a retrying
// worker pool: object deletes and multipart aborts triggered by entity
// deletion, decoupled from the HTTP request path. Transient store failures
// are re-enqueued with exponential backoff up to a capped attempt count;
// exhausting the retries is an operational alert in the log, never a
// user-facing failure.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clipstream/simple-upload/pkg/simpleupload"
)

// Pool consumes cleanup tasks from a buffered queue with a fixed number of
// workers. It implements simpleupload.CleanupQueue.
type Pool struct {
	store simpleupload.ObjectStore
	cache simpleupload.URLCache

	tasks       chan simpleupload.CleanupTask
	workers     int
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkers sets the number of consuming goroutines.
func WithWorkers(n int) PoolOption {
	return func(p *Pool) { p.workers = n }
}

// WithMaxAttempts caps deliveries per task, retries included.
func WithMaxAttempts(n int) PoolOption {
	return func(p *Pool) { p.maxAttempts = n }
}

// WithBaseDelay sets the first retry delay; subsequent delays double up to
// the cap.
func WithBaseDelay(d time.Duration) PoolOption {
	return func(p *Pool) { p.baseDelay = d }
}

// WithMaxDelay caps the retry delay.
func WithMaxDelay(d time.Duration) PoolOption {
	return func(p *Pool) { p.maxDelay = d }
}

// WithQueueDepth sets the task channel buffer.
func WithQueueDepth(n int) PoolOption {
	return func(p *Pool) { p.tasks = make(chan simpleupload.CleanupTask, n) }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = logger }
}

// NewPool creates a worker pool over the given store and cache.
func NewPool(store simpleupload.ObjectStore, cache simpleupload.URLCache, options ...PoolOption) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		store:       store,
		cache:       cache,
		tasks:       make(chan simpleupload.CleanupTask, 1024),
		workers:     4,
		maxAttempts: 10,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    30 * time.Second,
		logger:      slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
	}

	for _, option := range options {
		option(p)
	}
	if p.cache == nil {
		p.cache = simpleupload.NoopURLCache()
	}

	return p
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run()
		}()
	}
}

// Enqueue submits a task. After shutdown begins, tasks are dropped with a
// log entry.
func (p *Pool) Enqueue(task simpleupload.CleanupTask) {
	select {
	case p.tasks <- task:
	case <-p.ctx.Done():
		p.logger.Warn("cleanup task dropped during shutdown", "kind", task.Kind, "key", task.Key)
	}
}

// Shutdown stops intake and waits for in-flight tasks to finish their
// store calls, bounded by ctx. Tasks still sitting in the queue and retries
// firing after this point are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) run() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			p.handle(task)
		}
	}
}

func (p *Pool) handle(task simpleupload.CleanupTask) {
	// Detached from p.ctx: shutdown stops intake but must not cut off a
	// store call already in flight.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := p.execute(ctx, task)
	if err == nil || errors.Is(err, simpleupload.ErrObjectMissing) {
		// Already-gone counts as done. Either way the object no longer
		// exists, so any cached presigned URL for it must go too.
		p.evict(task)
		return
	}

	p.retry(task, err)
}

func (p *Pool) execute(ctx context.Context, task simpleupload.CleanupTask) error {
	switch task.Kind {
	case simpleupload.TaskDeleteObject:
		return p.store.Delete(ctx, task.Key)
	case simpleupload.TaskDeleteObjects:
		return p.store.DeleteBatch(ctx, task.Keys)
	case simpleupload.TaskAbortMultipart:
		return p.store.AbortMultipartUpload(ctx, task.Key, task.UploadID)
	default:
		return fmt.Errorf("unknown cleanup task kind %q", task.Kind)
	}
}

func (p *Pool) evict(task simpleupload.CleanupTask) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if task.CacheKey != "" {
		p.cache.Delete(ctx, task.CacheKey)
	}
	for _, key := range task.Keys {
		p.cache.Delete(ctx, simpleupload.DownloadURLCacheKey(key))
	}
}

func (p *Pool) retry(task simpleupload.CleanupTask, err error) {
	task.Attempt++
	if task.Attempt >= p.maxAttempts {
		p.logger.Error("cleanup task abandoned after max attempts",
			"kind", task.Kind, "key", task.Key, "upload_id", task.UploadID,
			"attempts", task.Attempt, "error", err)
		return
	}

	delay := p.backoff(task.Attempt)
	p.logger.Warn("cleanup task failed, retrying",
		"kind", task.Kind, "key", task.Key, "upload_id", task.UploadID,
		"attempt", task.Attempt, "delay", delay, "error", err)

	// Re-enqueue on a timer rather than sleeping, so the worker stays free.
	time.AfterFunc(delay, func() { p.Enqueue(task) })
}

func (p *Pool) backoff(attempt int) time.Duration {
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	return delay
}
