package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/waysome/waysome/action"
	"github.com/waysome/waysome/message"
)

var (
	// ErrStopped is returned for work submitted to a stopped worker.
	ErrStopped = errors.New("server: worker stopped")
	// ErrPanic wraps a panic recovered while running a job.
	ErrPanic = errors.New("server: job panicked")
)

// Job is a unit of work run against the manager.
type Job func(ctx context.Context, m *action.Manager) message.Reply

// workRequest represents a job waiting for a worker goroutine.
type workRequest struct {
	ctx  context.Context
	job  Job
	done chan workResult
}

// workResult holds the outcome of a job.
type workResult struct {
	reply message.Reply
	err   error
}

// Worker bounds the number of transactions running at once. Jobs are
// queued on a channel and picked up by a fixed set of goroutines; a panic
// in a job is recovered and reported to its submitter.
type Worker struct {
	manager  *action.Manager
	requests chan workRequest
	quit     chan struct{}
	stopped  chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewWorker creates a Worker running n goroutines with a queue of the
// given length, and starts it.
func NewWorker(m *action.Manager, n, queue int) *Worker {
	if n <= 0 {
		n = 1
	}
	if queue < 0 {
		queue = 0
	}
	w := &Worker{
		manager:  m,
		requests: make(chan workRequest, queue),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	w.wg.Add(n)
	for range n {
		go w.loop()
	}
	return w
}

// loop processes requests until the worker stops.
func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.ctx, req.job)
		case <-w.quit:
			return
		}
	}
}

// execute runs a job, recovering from panics.
func (w *Worker) execute(ctx context.Context, job Job) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			result = workResult{err: fmt.Errorf("%w: %v", ErrPanic, r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return workResult{err: err}
	}
	return workResult{reply: job(ctx, w.manager)}
}

// Do submits a job and blocks until it completes. It fails with ErrStopped
// after Stop, with the context error if ctx ends before a goroutine picks
// the job up, and with an error wrapping ErrPanic if the job panicked.
func (w *Worker) Do(ctx context.Context, job Job) (message.Reply, error) {
	req := workRequest{
		ctx:  ctx,
		job:  job,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-req.done:
		return result.reply, result.err
	case <-w.quit:
	}
	// A job picked up before the stop still completes.
	<-w.stopped
	select {
	case result := <-req.done:
		return result.reply, result.err
	default:
		return nil, ErrStopped
	}
}

// Stop shuts down the worker goroutines and waits for running jobs.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
		w.wg.Wait()
		close(w.stopped)
	})
}

// Manager returns the manager jobs run against.
func (w *Worker) Manager() *action.Manager {
	return w.manager
}
