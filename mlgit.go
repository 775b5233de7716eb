// Package mlgit contains the data-model types shared by every stage of the
// indexing scheduler: file handles, module names, import references and the
// sentinel errors fallible operations return.
package mlgit

import "errors"

// FileHandle is an absolute path identifying a tracked source file. It keys
// the import graph and is immutable for the duration of a run.
type FileHandle string

// ModuleName is the dotted path derived from a file's repo-relative path,
// see DeriveModuleName.
type ModuleName string

// ImportKind distinguishes absolute from relative import references.
type ImportKind int

const (
	// ImportAbsolute is a top-level import, e.g. `import pkg.sub`.
	ImportAbsolute ImportKind = iota
	// ImportRelative is a package-relative import, e.g. `from . import sub`.
	ImportRelative
)

// ImportRef describes one import statement as extracted from a source file,
// prior to resolution against the module-name index.
type ImportRef struct {
	Base string
	// Identifier is the imported name, e.g. the `X` in `from pkg import X`.
	// HasIdentifier distinguishes "no identifier" from an empty string one.
	Identifier    string
	HasIdentifier bool
	Kind          ImportKind
	// Level is the number of leading dots for a relative import. Level > 0
	// implies Kind == ImportRelative; Level == 0 implies ImportAbsolute.
	Level int
	// Star marks a wildcard import (`from pkg import *`); these never
	// contribute an edge to the import graph.
	Star bool
}

var (
	// ErrNotARepo is returned by the VCS probe when the working directory is
	// not under version control.
	ErrNotARepo = errors.New("mlgit: not a repository")
	// ErrNoCommit is returned by the VCS probe when the repository has no
	// commits.
	ErrNoCommit = errors.New("mlgit: repository has no commits")

	// ErrManifestNotFound is returned by the retriever when no manifest
	// exists for the requested commit.
	ErrManifestNotFound = errors.New("mlgit: manifest not found")
	// ErrBlobNotFound is returned by the retriever when a digest has no
	// corresponding object.
	ErrBlobNotFound = errors.New("mlgit: blob not found")
	// ErrCorruptBlob is returned when a blob's decompressed bytes do not
	// hash to the digest naming it.
	ErrCorruptBlob = errors.New("mlgit: blob digest mismatch")
)
