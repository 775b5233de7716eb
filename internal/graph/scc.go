package graph

import (
	"sort"

	"github.com/mlgit-dev/mlgit"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// ComponentID identifies one strongly-connected component of the condensed
// DAG. IDs are dense, starting at 0, assigned in ascending order of each
// component's smallest file handle, so a given ImportGraph always condenses
// to the same IDs.
type ComponentID int

// Component is a non-empty, sorted set of files forming one SCC. |Files| > 1
// corresponds to an import cycle.
type Component struct {
	ID    ComponentID
	Files []mlgit.FileHandle
}

// Condensation is the condensed DAG over an ImportGraph's strongly-connected
// components. Edges run consumer-component -> provider-component (the same
// direction as the underlying ImportGraph: c1 -> c2 iff a file in c1 imports
// a file in c2). Components partition the file set, the condensation is
// acyclic, and it carries no self-loops.
type Condensation struct {
	Components []Component
	compOf     map[mlgit.FileHandle]ComponentID
	deps       map[ComponentID]map[ComponentID]struct{} // c -> components c depends on
	dependents map[ComponentID]map[ComponentID]struct{} // c -> components that depend on c
}

type fileNode struct {
	id   int64
	file mlgit.FileHandle
}

func (n *fileNode) ID() int64 { return n.id }

// Condense runs Tarjan's algorithm over g and builds the condensed DAG.
// Nodes are assigned IDs in sorted-file order before running Tarjan so that
// results are reproducible across runs on the same input.
func Condense(g *ImportGraph) *Condensation {
	files := g.Files()

	dg := simple.NewDirectedGraph()
	nodeOf := make(map[mlgit.FileHandle]*fileNode, len(files))
	for i, f := range files {
		n := &fileNode{id: int64(i), file: f}
		nodeOf[f] = n
		dg.AddNode(n)
	}
	for _, f := range files {
		for _, dep := range g.Imports(f) {
			dg.SetEdge(dg.NewEdge(nodeOf[f], nodeOf[dep]))
		}
	}

	sccs := topo.TarjanSCC(dg)

	// TarjanSCC does not guarantee the order components are returned in is
	// tied to our sorted node IDs, so we sort each component's files and then
	// sort the list of components by their minimum file handle to make ID
	// assignment deterministic regardless of gonum's internal traversal order.
	type rawComponent struct {
		files []mlgit.FileHandle
	}
	raw := make([]rawComponent, 0, len(sccs))
	for _, scc := range sccs {
		files := make([]mlgit.FileHandle, 0, len(scc))
		for _, n := range scc {
			files = append(files, n.(*fileNode).file)
		}
		sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })
		raw = append(raw, rawComponent{files: files})
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].files[0] < raw[j].files[0] })

	cond := &Condensation{
		compOf:     make(map[mlgit.FileHandle]ComponentID, len(files)),
		deps:       make(map[ComponentID]map[ComponentID]struct{}, len(raw)),
		dependents: make(map[ComponentID]map[ComponentID]struct{}, len(raw)),
	}
	for i, rc := range raw {
		id := ComponentID(i)
		cond.Components = append(cond.Components, Component{ID: id, Files: rc.files})
		cond.deps[id] = make(map[ComponentID]struct{})
		cond.dependents[id] = make(map[ComponentID]struct{})
		for _, f := range rc.files {
			cond.compOf[f] = id
		}
	}

	for _, f := range files {
		cf := cond.compOf[f]
		for _, dep := range g.Imports(f) {
			cd := cond.compOf[dep]
			if cf == cd {
				continue // intra-component edge, not a condensed edge
			}
			cond.deps[cf][cd] = struct{}{}
			cond.dependents[cd][cf] = struct{}{}
		}
	}

	return cond
}

// ComponentOf returns the component a file belongs to.
func (c *Condensation) ComponentOf(f mlgit.FileHandle) (ComponentID, bool) {
	id, ok := c.compOf[f]
	return id, ok
}

// Deps returns the components c depends on (its providers), sorted.
func (c *Condensation) Deps(id ComponentID) []ComponentID {
	return sortedIDs(c.deps[id])
}

// Dependents returns the components that depend on c (its consumers), sorted.
func (c *Condensation) Dependents(id ComponentID) []ComponentID {
	return sortedIDs(c.dependents[id])
}

func sortedIDs(set map[ComponentID]struct{}) []ComponentID {
	out := make([]ComponentID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ graph.Node = (*fileNode)(nil)
