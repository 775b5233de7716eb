package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/mlgit-dev/mlgit"
	"github.com/mlgit-dev/mlgit/internal/graph"
)

type fakeExtractor map[mlgit.FileHandle][]mlgit.ImportRef

func (f fakeExtractor) Extract(file mlgit.FileHandle) ([]mlgit.ImportRef, error) {
	return f[file], nil
}

func abs(ref string) mlgit.ImportRef {
	return mlgit.ImportRef{Base: ref, Kind: mlgit.ImportAbsolute}
}

func writeSized(t *testing.T, dir, name string, size int) mlgit.FileHandle {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return mlgit.FileHandle(path)
}

// orderRecorder records the sequence in which components are dispatched,
// safe for concurrent use by parallel workers.
type orderRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRecorder) record(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, label)
}

func (r *orderRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func indexOf(order []string, label string) int {
	for i, s := range order {
		if s == label {
			return i
		}
	}
	return -1
}

func TestSchedulerRunLinearChainRespectsProducerBeforeConsumer(t *testing.T) {
	dir := t.TempDir()
	a := writeSized(t, dir, "a.py", 100)
	b := writeSized(t, dir, "b.py", 200)
	c := writeSized(t, dir, "c.py", 300)

	files := []mlgit.FileHandle{a, b, c}
	extractor := fakeExtractor{
		a: {abs("b")},
		b: {abs("c")},
	}
	g, _ := graph.Build(dir, files, ".py", extractor)
	cond := graph.Condense(g)
	weights := graph.ComputeWeights(cond)
	cp, err := graph.ComputeCriticalPaths(cond, weights)
	if err != nil {
		t.Fatalf("ComputeCriticalPaths: %v", err)
	}

	rec := &orderRecorder{}
	task := func(ctx context.Context, files []mlgit.FileHandle) (TaskResult, error) {
		rec.record(filepath.Base(string(files[0])))
		return TaskResult{}, nil
	}

	s := New(cond, weights, cp, task)
	report, err := s.Run(context.Background(), ModeParallel, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 0 || report.Succeeded != 3 {
		t.Fatalf("report = %+v, want 3 succeeded, 0 failed", report)
	}

	order := rec.snapshot()
	if indexOf(order, "c.py") > indexOf(order, "b.py") {
		t.Fatalf("c.py dispatched after b.py: %v", order)
	}
	if indexOf(order, "b.py") > indexOf(order, "a.py") {
		t.Fatalf("b.py dispatched after a.py: %v", order)
	}
}

func TestSchedulerRunDiamondConcurrentMiddle(t *testing.T) {
	dir := t.TempDir()
	a := writeSized(t, dir, "a.py", 100)
	b := writeSized(t, dir, "b.py", 100)
	c := writeSized(t, dir, "c.py", 100)
	d := writeSized(t, dir, "d.py", 100)

	files := []mlgit.FileHandle{a, b, c, d}
	extractor := fakeExtractor{
		a: {abs("b"), abs("c")},
		b: {abs("d")},
		c: {abs("d")},
	}
	g, _ := graph.Build(dir, files, ".py", extractor)
	cond := graph.Condense(g)
	weights := graph.ComputeWeights(cond)
	cp, err := graph.ComputeCriticalPaths(cond, weights)
	if err != nil {
		t.Fatalf("ComputeCriticalPaths: %v", err)
	}

	rec := &orderRecorder{}
	task := func(ctx context.Context, files []mlgit.FileHandle) (TaskResult, error) {
		rec.record(filepath.Base(string(files[0])))
		return TaskResult{}, nil
	}

	s := New(cond, weights, cp, task)
	report, err := s.Run(context.Background(), ModeParallel, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 0 || report.Succeeded != 4 {
		t.Fatalf("report = %+v, want 4 succeeded, 0 failed", report)
	}

	order := rec.snapshot()
	if order[0] != "d.py" {
		t.Fatalf("d.py was not dispatched first: %v", order)
	}
	if order[len(order)-1] != "a.py" {
		t.Fatalf("a.py was not dispatched last: %v", order)
	}
}

func TestSchedulerRunFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	a := writeSized(t, dir, "a.py", 100)
	b := writeSized(t, dir, "b.py", 100)
	c := writeSized(t, dir, "c.py", 100)
	d := writeSized(t, dir, "d.py", 100)

	files := []mlgit.FileHandle{a, b, c, d}
	extractor := fakeExtractor{
		a: {abs("b"), abs("c")},
		b: {abs("d")},
		c: {abs("d")},
	}
	g, _ := graph.Build(dir, files, ".py", extractor)
	cond := graph.Condense(g)
	weights := graph.ComputeWeights(cond)
	cp, err := graph.ComputeCriticalPaths(cond, weights)
	if err != nil {
		t.Fatalf("ComputeCriticalPaths: %v", err)
	}

	task := func(ctx context.Context, files []mlgit.FileHandle) (TaskResult, error) {
		if filepath.Base(string(files[0])) == "b.py" {
			return TaskResult{}, fmt.Errorf("task failed")
		}
		return TaskResult{}, nil
	}

	s := New(cond, weights, cp, task)
	report, err := s.Run(context.Background(), ModeParallel, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 2 {
		t.Fatalf("report.Succeeded = %d, want 2 (c and d)", report.Succeeded)
	}
	if report.Failed != 2 {
		t.Fatalf("report.Failed = %d, want 2 (b directly, a tainted)", report.Failed)
	}

	cb, _ := cond.ComponentOf(b)
	ca, _ := cond.ComponentOf(a)
	cc, _ := cond.ComponentOf(c)
	cd, _ := cond.ComponentOf(d)

	if _, ok := report.Errors[cb]; !ok {
		t.Errorf("expected b's component to be in Errors")
	}
	if _, ok := report.Errors[ca]; !ok {
		t.Errorf("expected a's component to be tainted in Errors")
	}
	if _, ok := report.Results[cc]; !ok {
		t.Errorf("expected c's component to succeed")
	}
	if _, ok := report.Results[cd]; !ok {
		t.Errorf("expected d's component to succeed")
	}
}

func TestSchedulerRunCycleDispatchesBothFilesTogether(t *testing.T) {
	dir := t.TempDir()
	a := writeSized(t, dir, "a.py", 100)
	b := writeSized(t, dir, "b.py", 100)

	files := []mlgit.FileHandle{a, b}
	extractor := fakeExtractor{
		a: {abs("b")},
		b: {abs("a")},
	}
	g, _ := graph.Build(dir, files, ".py", extractor)
	cond := graph.Condense(g)
	weights := graph.ComputeWeights(cond)
	cp, err := graph.ComputeCriticalPaths(cond, weights)
	if err != nil {
		t.Fatalf("ComputeCriticalPaths: %v", err)
	}

	var gotFiles []mlgit.FileHandle
	task := func(ctx context.Context, files []mlgit.FileHandle) (TaskResult, error) {
		gotFiles = append(gotFiles, files...)
		return TaskResult{}, nil
	}

	s := New(cond, weights, cp, task)
	report, err := s.Run(context.Background(), ModeParallel, 4)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 1 succeeded (single cyclic component)", report)
	}
	sort.Slice(gotFiles, func(i, j int) bool { return gotFiles[i] < gotFiles[j] })
	if len(gotFiles) != 2 || gotFiles[0] != a || gotFiles[1] != b {
		t.Fatalf("task received %v, want both a and b together", gotFiles)
	}
}
