// Package scheduler's Runner presents the Scheduler Core with a uniform
// submit/await interface over two worker-pool flavors. The scheduler itself
// never distinguishes between them: both satisfy Runner.
package scheduler

import (
	"context"
	"fmt"

	"github.com/mlgit-dev/mlgit"
	"github.com/mlgit-dev/mlgit/internal/graph"
	"github.com/mlgit-dev/mlgit/internal/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"
)

// TaskResult is what a task function hands back for one dispatched
// component: the per-file result blobs it produced.
type TaskResult struct {
	Blobs []Blob
}

// Blob is one result blob for a single file, prior to digesting and storage.
// Module must equal the FileHandle it describes.
type Blob struct {
	Module mlgit.FileHandle
	Value  map[string]interface{}
}

// TaskFunc processes every file in one component and returns its result
// blobs, or an error if the component as a whole failed. On error the
// entire component is considered failed, not just the file that triggered it.
type TaskFunc func(ctx context.Context, files []mlgit.FileHandle) (TaskResult, error)

// Completion is delivered once per dispatched component.
type Completion struct {
	ID     graph.ComponentID
	Result TaskResult
	Err    error
}

// Runner is the uniform interface the Scheduler Core consumes: submit work,
// drain completions. Implementations never touch scheduler state directly.
type Runner interface {
	// Submit dispatches files for component id. It may block until a worker
	// slot is available; it returns an error only if ctx is done first.
	Submit(ctx context.Context, id graph.ComponentID, files []mlgit.FileHandle) error
	// Completions yields one Completion per Submit call, in completion order
	// (not submission order).
	Completions() <-chan Completion
	// Close waits for in-flight tasks to finish and releases resources. It
	// must be called exactly once, after every Submit call has returned.
	Close() error
}

// parallelRunner is the Parallel-workers flavor: true parallel execution
// across a fixed pool of goroutines ranging over a shared work channel.
type parallelRunner struct {
	work        chan parallelJob
	completions chan Completion
	eg          *errgroup.Group
}

type parallelJob struct {
	id    graph.ComponentID
	files []mlgit.FileHandle
}

// NewParallel starts maxWorkers goroutines backing a CPU-bound task pool.
func NewParallel(ctx context.Context, maxWorkers int, fn TaskFunc) *parallelRunner {
	eg, egCtx := errgroup.WithContext(ctx)
	r := &parallelRunner{
		work:        make(chan parallelJob),
		completions: make(chan Completion, maxWorkers),
		eg:          eg,
	}
	for i := 0; i < maxWorkers; i++ {
		i := i // copy for the goroutine's closure
		eg.Go(func() error {
			for job := range r.work {
				ev := trace.Event(fmt.Sprintf("index component %d", job.id), i)
				result, err := fn(egCtx, job.files)
				ev.Done()
				// completions holds maxWorkers entries, one per in-flight job,
				// so this send never blocks for good.
				r.completions <- Completion{ID: job.id, Result: result, Err: err}
			}
			return nil
		})
	}
	return r
}

func (r *parallelRunner) Submit(ctx context.Context, id graph.ComponentID, files []mlgit.FileHandle) error {
	select {
	case r.work <- parallelJob{id: id, files: files}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *parallelRunner) Completions() <-chan Completion { return r.completions }

func (r *parallelRunner) Close() error {
	close(r.work)
	err := r.eg.Wait()
	close(r.completions)
	if err != nil {
		return xerrors.Errorf("scheduler: parallel runner: %w", err)
	}
	return nil
}

// cooperativeIORunner is the Cooperative-I/O flavor: one
// goroutine per submitted component, concurrency capped by a weighted
// semaphore rather than a fixed goroutine count, since these tasks suspend
// at network I/O await points and benefit from higher fan-out than CPU
// parallelism would allow.
type cooperativeIORunner struct {
	sem         *semaphore.Weighted
	completions chan Completion
	eg          *errgroup.Group
	fn          TaskFunc
	ctx         context.Context
}

// NewCooperativeIO starts a runner that admits up to maxInflight concurrent
// tasks at once, each running in its own goroutine.
func NewCooperativeIO(ctx context.Context, maxInflight int64, fn TaskFunc) *cooperativeIORunner {
	eg, egCtx := errgroup.WithContext(ctx)
	return &cooperativeIORunner{
		sem:         semaphore.NewWeighted(maxInflight),
		completions: make(chan Completion, maxInflight),
		eg:          eg,
		fn:          fn,
		ctx:         egCtx,
	}
}

func (r *cooperativeIORunner) Submit(ctx context.Context, id graph.ComponentID, files []mlgit.FileHandle) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	r.eg.Go(func() error {
		defer r.sem.Release(1)
		ev := trace.Event(fmt.Sprintf("index component %d", id), 0)
		result, err := r.fn(r.ctx, files)
		ev.Done()
		r.completions <- Completion{ID: id, Result: result, Err: err}
		return nil
	})
	return nil
}

func (r *cooperativeIORunner) Completions() <-chan Completion { return r.completions }

func (r *cooperativeIORunner) Close() error {
	err := r.eg.Wait()
	close(r.completions)
	if err != nil {
		return xerrors.Errorf("scheduler: cooperative-io runner: %w", err)
	}
	return nil
}

var (
	_ Runner = (*parallelRunner)(nil)
	_ Runner = (*cooperativeIORunner)(nil)
)
