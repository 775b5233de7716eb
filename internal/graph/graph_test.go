package graph

import (
	"fmt"
	"sort"
	"testing"

	"github.com/mlgit-dev/mlgit"
)

type fakeExtractor map[mlgit.FileHandle][]mlgit.ImportRef

func (f fakeExtractor) Extract(file mlgit.FileHandle) ([]mlgit.ImportRef, error) {
	return f[file], nil
}

func abs(ref string, hasID bool, id string) mlgit.ImportRef {
	return mlgit.ImportRef{Base: ref, Identifier: id, HasIdentifier: hasID, Kind: mlgit.ImportAbsolute}
}

func TestBuildLinearChain(t *testing.T) {
	files := []mlgit.FileHandle{"/repo/a.py", "/repo/b.py", "/repo/c.py"}
	extractor := fakeExtractor{
		"/repo/a.py": {abs("b", false, "")},
		"/repo/b.py": {abs("c", false, "")},
	}
	g, errs := Build("/repo", files, ".py", extractor)
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	assertImports(t, g, "/repo/a.py", "/repo/b.py")
	assertImports(t, g, "/repo/b.py", "/repo/c.py")
	assertImports(t, g, "/repo/c.py")
}

func TestBuildDiamond(t *testing.T) {
	files := []mlgit.FileHandle{"/repo/a.py", "/repo/b.py", "/repo/c.py", "/repo/d.py"}
	extractor := fakeExtractor{
		"/repo/a.py": {abs("b", false, ""), abs("c", false, "")},
		"/repo/b.py": {abs("d", false, "")},
		"/repo/c.py": {abs("d", false, "")},
	}
	g, _ := Build("/repo", files, ".py", extractor)
	assertImports(t, g, "/repo/a.py", "/repo/b.py", "/repo/c.py")
	assertImports(t, g, "/repo/b.py", "/repo/d.py")
	assertImports(t, g, "/repo/c.py", "/repo/d.py")
	assertImports(t, g, "/repo/d.py")
}

func TestBuildStarImportIgnored(t *testing.T) {
	files := []mlgit.FileHandle{"/repo/a.py", "/repo/b.py"}
	extractor := fakeExtractor{
		"/repo/a.py": {{Star: true, Kind: mlgit.ImportAbsolute, Base: "b"}},
	}
	g, _ := Build("/repo", files, ".py", extractor)
	assertImports(t, g, "/repo/a.py")
}

func TestBuildSelfEdgeOmitted(t *testing.T) {
	files := []mlgit.FileHandle{"/repo/a.py"}
	extractor := fakeExtractor{
		"/repo/a.py": {abs("a", false, "")},
	}
	g, _ := Build("/repo", files, ".py", extractor)
	assertImports(t, g, "/repo/a.py")
}

func TestBuildLongestPrefixResolution(t *testing.T) {
	files := []mlgit.FileHandle{
		"/repo/pkg/sub.py",
		"/repo/pkg/sub/mod/helper.py",
		"/repo/pkg/caller.py",
	}
	extractor := fakeExtractor{
		"/repo/pkg/caller.py": {
			abs("pkg.sub.mod.helper", true, "Thing"),
			abs("pkg.sub", true, "X"),
		},
	}
	g, _ := Build("/repo", files, ".py", extractor)
	assertImports(t, g, "/repo/pkg/caller.py", "/repo/pkg/sub.py", "/repo/pkg/sub/mod/helper.py")
}

func TestBuildRelativeImport(t *testing.T) {
	// /repo/pkg/sub/mod.py, level-1 relative import of "helper" resolves
	// within the same package (pkg.sub).
	files := []mlgit.FileHandle{
		"/repo/pkg/sub/mod.py",
		"/repo/pkg/sub/helper.py",
	}
	extractor := fakeExtractor{
		"/repo/pkg/sub/mod.py": {
			{Kind: mlgit.ImportRelative, Level: 1, HasIdentifier: true, Identifier: "helper"},
		},
	}
	g, _ := Build("/repo", files, ".py", extractor)
	assertImports(t, g, "/repo/pkg/sub/mod.py", "/repo/pkg/sub/helper.py")
}

func TestBuildParseErrorYieldsEmptyAdjacency(t *testing.T) {
	files := []mlgit.FileHandle{"/repo/a.py"}
	g, errs := Build("/repo", files, ".py", failingExtractor{})
	if len(errs) != 1 {
		t.Fatalf("got %d parse errors, want 1", len(errs))
	}
	assertImports(t, g, "/repo/a.py")
}

type failingExtractor struct{}

func (failingExtractor) Extract(file mlgit.FileHandle) ([]mlgit.ImportRef, error) {
	return nil, fmt.Errorf("syntax error")
}

func assertImports(t *testing.T, g *ImportGraph, file mlgit.FileHandle, want ...mlgit.FileHandle) {
	t.Helper()
	got := g.Imports(file)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(got) != len(want) {
		t.Fatalf("Imports(%v) = %v, want %v", file, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("Imports(%v) = %v, want %v", file, got, want)
		}
	}
}
