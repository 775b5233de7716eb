package scheduler

import (
	"container/heap"

	"github.com/mlgit-dev/mlgit/internal/graph"
)

// readyItem is one entry in the ready heap: a component together with the
// priority (critical path) and deterministic tie-breaker it was seeded with.
type readyItem struct {
	id   graph.ComponentID
	cp   float64
	tie  string // minimum file handle in the component, lexicographic
	heix int
}

// readyHeap is a max-heap ordered by descending cp, with ties broken by the
// lexicographically smallest file handle in the component. Once an item is
// pushed its priority never changes, so there is no need for lazy deletion
// or re-heapification.
type readyHeap []*readyItem

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].cp != h[j].cp {
		return h[i].cp > h[j].cp // max-heap on cp
	}
	return h[i].tie < h[j].tie
}

func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heix = i
	h[j].heix = j
}

func (h *readyHeap) Push(x interface{}) {
	it := x.(*readyItem)
	it.heix = len(*h)
	*h = append(*h, it)
}

func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

var _ heap.Interface = (*readyHeap)(nil)
