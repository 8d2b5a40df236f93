package mirror

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// task is one resource to copy.
type task struct {
	URL  string
	Key  string
	Kind Kind
}

// handlerFunc copies one resource and returns the number of bytes stored.
type handlerFunc func(ctx context.Context, t *task) (int64, error)

// storeError marks a destination failure. Unlike fetch failures it stops
// the whole run.
type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// workerPool runs copy tasks concurrently.
type workerPool struct {
	workers    int
	handle     handlerFunc
	progressCh chan<- ProgressUpdate

	taskQueue chan *task
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	// Stats
	completed  atomic.Int64
	totalBytes atomic.Int64
	failed     atomic.Int64
	startTime  time.Time
	skipped    []string
	skippedMu  sync.Mutex

	fatal   error
	fatalMu sync.Mutex
}

func newWorkerPool(workers int, handle handlerFunc, progressCh chan<- ProgressUpdate) *workerPool {
	if workers < 1 {
		workers = 1
	}
	return &workerPool{
		workers:    workers,
		handle:     handle,
		progressCh: progressCh,
		taskQueue:  make(chan *task, workers*4),
	}
}

// Start launches the worker goroutines.
func (p *workerPool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.startTime = time.Now()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *workerPool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(t)
		}
	}
}

func (p *workerPool) run(t *task) {
	n, err := p.handle(p.ctx, t)
	if err == nil {
		p.completed.Add(1)
		p.totalBytes.Add(n)
		p.send(ProgressUpdate{URL: t.URL, Kind: t.Kind, Bytes: n, Completed: true})
		return
	}

	var se *storeError
	if errors.As(err, &se) {
		p.setFatal(se.err)
	}

	p.failed.Add(1)
	p.skippedMu.Lock()
	p.skipped = append(p.skipped, t.URL)
	p.skippedMu.Unlock()
	p.send(ProgressUpdate{URL: t.URL, Kind: t.Kind, Error: err})
}

func (p *workerPool) send(u ProgressUpdate) {
	if p.progressCh == nil {
		return
	}
	select {
	case p.progressCh <- u:
	case <-p.ctx.Done():
	}
}

// Submit queues t. It fails once the pool has been stopped.
func (p *workerPool) Submit(t *task) error {
	if p.ctx.Err() != nil {
		return p.stopErr()
	}
	select {
	case p.taskQueue <- t:
		return nil
	case <-p.ctx.Done():
		return p.stopErr()
	}
}

func (p *workerPool) stopErr() error {
	if err := p.fatalErr(); err != nil {
		return err
	}
	return p.ctx.Err()
}

// setFatal records the first destination error and stops the pool.
func (p *workerPool) setFatal(err error) {
	p.fatalMu.Lock()
	first := p.fatal == nil
	if first {
		p.fatal = err
	}
	p.fatalMu.Unlock()
	if first {
		p.cancel()
	}
}

func (p *workerPool) fatalErr() error {
	p.fatalMu.Lock()
	defer p.fatalMu.Unlock()
	return p.fatal
}

// Wait closes the queue, blocks until every worker exits and returns the
// first destination error, if any.
func (p *workerPool) Wait() error {
	close(p.taskQueue)
	p.wg.Wait()
	p.cancel()
	return p.fatalErr()
}

// Skipped returns the URLs that could not be copied.
func (p *workerPool) Skipped() []string {
	p.skippedMu.Lock()
	defer p.skippedMu.Unlock()
	return append([]string(nil), p.skipped...)
}

// Stats returns current copy statistics.
func (p *workerPool) Stats() (completed int64, totalBytes int64, elapsed time.Duration) {
	return p.completed.Load(), p.totalBytes.Load(), time.Since(p.startTime)
}
