// Package graph implements the import graph builder: it parses every
// tracked file's import references (via an injected ImportExtractor, the
// concrete per-language parser is an external collaborator) and resolves
// each one to a tracked file by longest-prefix match against the
// module-name index, producing a total import graph over the input files.
package graph

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlgit-dev/mlgit"
)

// ImportExtractor parses one source file and returns its import references.
// Implementations are injected by the caller; this package never parses
// source text itself.
type ImportExtractor interface {
	Extract(file mlgit.FileHandle) ([]mlgit.ImportRef, error)
}

// ParseError records a per-file parse failure: the file still appears in
// the resulting graph with an empty adjacency set.
type ParseError struct {
	File mlgit.FileHandle
	Err  error
}

// ImportGraph is a total mapping from every tracked file to the set of files
// it imports: every input file is a key, possibly with an empty value.
type ImportGraph struct {
	edges map[mlgit.FileHandle]map[mlgit.FileHandle]struct{}
}

// Files returns every node of the graph, sorted for determinism.
func (g *ImportGraph) Files() []mlgit.FileHandle {
	out := make([]mlgit.FileHandle, 0, len(g.edges))
	for f := range g.edges {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Imports returns the set of files f imports, sorted for determinism.
func (g *ImportGraph) Imports(f mlgit.FileHandle) []mlgit.FileHandle {
	deps := g.edges[f]
	out := make([]mlgit.FileHandle, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *ImportGraph) addEdge(from, to mlgit.FileHandle) {
	if from == to {
		return // self-edges are omitted
	}
	if g.edges[from] == nil {
		g.edges[from] = make(map[mlgit.FileHandle]struct{})
	}
	g.edges[from][to] = struct{}{}
}

// Build parses every file in files with extractor and resolves its import
// references against the module index derived from repoRoot/suffix, using
// longest-prefix resolution. Parse failures are recorded in the returned
// ParseErrors but do not abort the build: the failing file is emitted with
// no outgoing edges.
func Build(repoRoot string, files []mlgit.FileHandle, suffix string, extractor ImportExtractor) (*ImportGraph, []ParseError) {
	idx := mlgit.NewModuleIndex(repoRoot, files, suffix)

	g := &ImportGraph{edges: make(map[mlgit.FileHandle]map[mlgit.FileHandle]struct{}, len(files))}
	var errs []ParseError

	for _, f := range files {
		if g.edges[f] == nil {
			g.edges[f] = make(map[mlgit.FileHandle]struct{}) // present as a key even with no imports
		}

		refs, err := extractor.Extract(f)
		if err != nil {
			errs = append(errs, ParseError{File: f, Err: err})
			continue
		}

		pkgParts, isInit := moduleParts(repoRoot, f, suffix)
		containing := pkgParts
		if !isInit && len(containing) > 0 {
			containing = containing[:len(containing)-1]
		}

		for _, ref := range refs {
			if ref.Star {
				continue // wildcard imports never resolve to a single file
			}
			candidate := candidateName(ref, containing)
			if candidate == "" {
				continue
			}
			if dep, ok := idx.ResolveLongestPrefix(mlgit.ModuleName(candidate)); ok {
				g.addEdge(f, dep)
			}
		}
	}

	return g, errs
}

// candidateName builds the dotted candidate module name for ref.
func candidateName(ref mlgit.ImportRef, containingPackage []string) string {
	if ref.Kind == mlgit.ImportAbsolute {
		if !ref.HasIdentifier {
			return ref.Base
		}
		if ref.Base != "" {
			return ref.Base + "." + ref.Identifier
		}
		return ref.Identifier
	}

	// Relative: ascend (Level-1) additional packages beyond the importing
	// file's own containing package (Level==1 means "this package").
	parts := append([]string(nil), containingPackage...)
	ascend := ref.Level - 1
	if ascend > 0 {
		if ascend >= len(parts) {
			parts = nil
		} else {
			parts = parts[:len(parts)-ascend]
		}
	}
	if ref.Base != "" {
		parts = append(parts, strings.Split(ref.Base, ".")...)
	}
	if ref.HasIdentifier {
		parts = append(parts, ref.Identifier)
	}
	return strings.Join(parts, ".")
}

// moduleParts splits file's repo-relative, suffix-stripped path into dotted
// segments, reporting whether it is a package-init file (see
// mlgit.InitBasename). The segments come from mlgit.DeriveModuleName, so for
// a package-init file the init segment is already dropped and parts names
// the package itself; callers use isInit to tell that case apart.
func moduleParts(repoRoot string, file mlgit.FileHandle, suffix string) (parts []string, isInit bool) {
	name := string(mlgit.DeriveModuleName(repoRoot, file, suffix))
	parts = strings.Split(name, ".")

	base := strings.TrimSuffix(filepath.Base(string(file)), suffix)
	return parts, base == mlgit.InitBasename
}
