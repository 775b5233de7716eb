package graph

import (
	"os"

	"golang.org/x/xerrors"
)

// ComputeWeights assigns each component the sum of its files' byte sizes as
// a proxy for its indexing cost. A file that cannot be stat'd contributes a
// weight of 1 rather than aborting the whole calculation.
func ComputeWeights(cond *Condensation) map[ComponentID]float64 {
	weights := make(map[ComponentID]float64, len(cond.Components))
	for _, comp := range cond.Components {
		var w float64
		for _, f := range comp.Files {
			if info, err := os.Stat(string(f)); err == nil {
				w += float64(info.Size())
			} else {
				w++
			}
		}
		weights[comp.ID] = w
	}
	return weights
}

// ComputeCriticalPaths computes cp(c) for every component:
// cp(c) = w(c) + max(cp(c') over c's deps), cp(c) = w(c) when c has no deps.
// Components are processed in Kahn-style dependency order (a first-in
// first-out queue, not the scheduler's critical-path-ordered heap): a
// component's cp is only finalized
// once every component it depends on has already been finalized, which for
// an acyclic condensation always terminates. ComputeCriticalPaths returns an
// error only if cond is not actually acyclic, which Condense never produces.
func ComputeCriticalPaths(cond *Condensation, weights map[ComponentID]float64) (map[ComponentID]float64, error) {
	remaining := make(map[ComponentID]int, len(cond.Components))
	for _, comp := range cond.Components {
		remaining[comp.ID] = len(cond.Deps(comp.ID))
	}

	var ready []ComponentID
	for id, n := range remaining {
		if n == 0 {
			ready = append(ready, id)
		}
	}

	cp := make(map[ComponentID]float64, len(cond.Components))
	processed := 0
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]

		best := 0.0
		for _, dep := range cond.Deps(id) {
			if cp[dep] > best {
				best = cp[dep]
			}
		}
		cp[id] = weights[id] + best
		processed++

		for _, consumer := range cond.Dependents(id) {
			remaining[consumer]--
			if remaining[consumer] == 0 {
				ready = append(ready, consumer)
			}
		}
	}

	if processed != len(cond.Components) {
		return nil, xerrors.New("graph: condensation is not acyclic, cannot compute critical paths")
	}
	return cp, nil
}
