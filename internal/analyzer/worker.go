package analyzer

import (
	"context"
	"errors"
	"time"
)

// ErrFileTimeout marks a per-file analysis that exceeded its deadline.
var ErrFileTimeout = errors.New("file analysis timed out")

type job struct {
	ctx context.Context
	run func(ctx context.Context) (string, error)
	out chan jobResult
}

type jobResult struct {
	fragment string
	err      error
}

// workerPool isolates each file's engine invocation on a long-lived worker
// goroutine so the orchestrator can enforce a deadline and walk away from a
// hung invocation. The pool is created once per run and reused across all
// files. A job abandoned on timeout has its context cancelled so the engine
// process is killed, and a replacement worker takes over the queue in case
// the abandoned one is slow to observe the cancellation.
type workerPool struct {
	jobs chan job
}

func newWorkerPool() *workerPool {
	p := &workerPool{jobs: make(chan job)}
	p.spawn()
	return p
}

func (p *workerPool) spawn() {
	go func() {
		for j := range p.jobs {
			fragment, err := j.run(j.ctx)
			j.out <- jobResult{fragment: fragment, err: err}
		}
	}()
}

// submit runs fn on the pool with the given deadline. On timeout it cancels
// the job's context, spawns a replacement so the next file still has a live
// worker, and returns ErrFileTimeout.
func (p *workerPool) submit(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	out := make(chan jobResult, 1) // buffered: an abandoned worker must not block on delivery

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	select {
	case p.jobs <- job{ctx: jobCtx, run: fn, out: out}:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-out:
		return res.fragment, res.err
	case <-timer.C:
		p.spawn()
		return "", ErrFileTimeout
	case <-ctx.Done():
		p.spawn()
		return "", ctx.Err()
	}
}

// close tears the pool down. Live workers exit once the queue drains;
// abandoned workers exit when their in-flight invocation finally returns.
func (p *workerPool) close() {
	close(p.jobs)
}
