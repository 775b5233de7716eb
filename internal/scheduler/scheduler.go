// Package scheduler implements the scheduler core: it drains a condensed
// DAG's ready set in descending critical-path order against a bounded
// worker pool, enforcing strict producer-before-consumer ordering and
// transitive failure isolation.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/mlgit-dev/mlgit"
	"github.com/mlgit-dev/mlgit/internal/graph"
	"github.com/mlgit-dev/mlgit/internal/statusline"
	"golang.org/x/xerrors"
)

// Mode selects the task dispatch flavor.
type Mode int

const (
	// ModeParallel is the CPU-bound, parallel-workers flavor.
	ModeParallel Mode = iota
	// ModeCooperativeIO is the I/O-bound, high-fan-out flavor.
	ModeCooperativeIO
)

// Scheduler runs one pass of the indexing scheduler over a condensed DAG.
type Scheduler struct {
	Cond    *graph.Condensation
	Weights map[graph.ComponentID]float64
	CP      map[graph.ComponentID]float64
	Task    TaskFunc

	// Status, if set, receives a one-line progress summary after every
	// completion.
	Status *statusline.Renderer
}

// New builds a Scheduler from a condensation and its precomputed weights and
// critical paths (see internal/graph.ComputeWeights/ComputeCriticalPaths).
func New(cond *graph.Condensation, weights, cp map[graph.ComponentID]float64, task TaskFunc) *Scheduler {
	return &Scheduler{Cond: cond, Weights: weights, CP: cp, Task: task}
}

// Report summarizes one scheduler run.
type Report struct {
	Succeeded int
	Failed    int
	Cancelled bool
	Results   map[graph.ComponentID]TaskResult
	Errors    map[graph.ComponentID]error
}

// Run dispatches every component of s.Cond to a worker pool of the given
// mode. A component is never submitted until every component it depends on
// has completed successfully, and ready components are dispatched in
// descending critical-path order with a deterministic tie-break.
func (s *Scheduler) Run(ctx context.Context, mode Mode, maxWorkers int) (*Report, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	var runner Runner
	switch mode {
	case ModeParallel:
		runner = NewParallel(ctx, maxWorkers, s.Task)
	case ModeCooperativeIO:
		runner = NewCooperativeIO(ctx, int64(maxWorkers), s.Task)
	default:
		return nil, xerrors.Errorf("scheduler: unknown mode %d", mode)
	}

	filesByID := make(map[graph.ComponentID][]mlgit.FileHandle, len(s.Cond.Components))
	tieByID := make(map[graph.ComponentID]string, len(s.Cond.Components))
	indegree := make(map[graph.ComponentID]int, len(s.Cond.Components))
	for _, comp := range s.Cond.Components {
		filesByID[comp.ID] = comp.Files
		tieByID[comp.ID] = string(comp.Files[0]) // Files is sorted, so this is deterministic
		indegree[comp.ID] = len(s.Cond.Deps(comp.ID))
	}

	terminal := make(map[graph.ComponentID]struct{}, len(s.Cond.Components))
	results := make(map[graph.ComponentID]TaskResult)
	errs := make(map[graph.ComponentID]error)

	ready := &readyHeap{}
	heap.Init(ready)
	for id, n := range indegree {
		if n == 0 {
			heap.Push(ready, &readyItem{id: id, cp: s.CP[id], tie: tieByID[id]})
		}
	}

	var taint func(id graph.ComponentID, reason graph.ComponentID)
	taint = func(id graph.ComponentID, reason graph.ComponentID) {
		if _, done := terminal[id]; done {
			return
		}
		terminal[id] = struct{}{}
		errs[id] = xerrors.Errorf("scheduler: dependency %v failed, skipping", reason)
		for _, dependent := range s.Cond.Dependents(id) {
			taint(dependent, reason)
		}
	}

	cancelled := false
	inflight := 0
	total := len(s.Cond.Components)

	for len(terminal) < total {
		for !cancelled && ready.Len() > 0 && inflight < maxWorkers {
			item := heap.Pop(ready).(*readyItem)
			if _, done := terminal[item.id]; done {
				continue // tainted while it sat in the ready heap
			}
			if err := runner.Submit(ctx, item.id, filesByID[item.id]); err != nil {
				cancelled = true
				break
			}
			inflight++
		}

		if ctx.Err() != nil {
			cancelled = true
		}

		if inflight == 0 {
			// Nothing dispatched and nothing pending: either every
			// remaining component is tainted (len(terminal) == total holds
			// next iteration) or we are cancelled with undispatched work.
			break
		}

		select {
		case c := <-runner.Completions():
			inflight--
			if c.Err != nil {
				terminal[c.ID] = struct{}{}
				errs[c.ID] = c.Err
				for _, dependent := range s.Cond.Dependents(c.ID) {
					taint(dependent, c.ID)
				}
				continue
			}
			terminal[c.ID] = struct{}{}
			results[c.ID] = c.Result
			for _, dependent := range s.Cond.Dependents(c.ID) {
				if _, done := terminal[dependent]; done {
					continue
				}
				indegree[dependent]--
				if indegree[dependent] == 0 {
					heap.Push(ready, &readyItem{id: dependent, cp: s.CP[dependent], tie: tieByID[dependent]})
				}
			}
		case <-ctx.Done():
			cancelled = true
		}

		s.Status.Update(fmt.Sprintf("%d of %d components indexed: %d succeeded, %d failed", len(terminal), total, len(results), len(errs)))

		if cancelled && inflight == 0 {
			break
		}
	}

	s.Status.Done()

	if err := runner.Close(); err != nil && !cancelled {
		return nil, err
	}

	report := &Report{
		Succeeded: len(results),
		Failed:    len(errs),
		Cancelled: cancelled,
		Results:   results,
		Errors:    errs,
	}
	return report, nil
}
