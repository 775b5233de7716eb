package mlgit

import (
	"path/filepath"
	"strings"
)

// InitBasename is the conventional filename (minus suffix) that marks a
// package-init file, e.g. "__init__" for Python's __init__.py. A package-init
// file's module name collapses to its containing directory's dotted name,
// rather than appending its own basename.
const InitBasename = "__init__"

// DeriveModuleName computes the dotted module name for file, given the repo
// root it was discovered under and the source-file suffix (including the
// leading dot, e.g. ".py"). Two distinct file handles never produce the same
// module name for a well-formed tree: a directory cannot simultaneously
// contain a package-init file and a sibling file sharing the directory's
// name.
func DeriveModuleName(repoRoot string, file FileHandle, suffix string) ModuleName {
	rel, err := filepath.Rel(repoRoot, string(file))
	if err != nil {
		rel = string(file)
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, suffix)
	parts := strings.Split(rel, "/")
	if len(parts) > 0 && parts[len(parts)-1] == InitBasename {
		parts = parts[:len(parts)-1]
	}
	return ModuleName(strings.Join(parts, "."))
}

// ModuleIndex maps module names to the file handle that defines them. It is
// built once per run from the set of tracked files and is immutable
// thereafter; any number of readers may consult it concurrently.
type ModuleIndex struct {
	byName map[ModuleName]FileHandle
}

// NewModuleIndex derives the module name of every file in files (using
// repoRoot and suffix, see DeriveModuleName) and returns the resulting index.
func NewModuleIndex(repoRoot string, files []FileHandle, suffix string) *ModuleIndex {
	idx := &ModuleIndex{byName: make(map[ModuleName]FileHandle, len(files))}
	for _, f := range files {
		idx.byName[DeriveModuleName(repoRoot, f, suffix)] = f
	}
	return idx
}

// File returns the file handle registered under name, if any.
func (idx *ModuleIndex) File(name ModuleName) (FileHandle, bool) {
	f, ok := idx.byName[name]
	return f, ok
}

// ResolveLongestPrefix resolves candidate by iteratively dropping its
// trailing dotted segment until a prefix is registered in the index. It
// returns the matched module's file handle, or ok == false if no prefix
// matches (the reference is external).
func (idx *ModuleIndex) ResolveLongestPrefix(candidate ModuleName) (FileHandle, bool) {
	s := string(candidate)
	for s != "" {
		if f, ok := idx.byName[ModuleName(s)]; ok {
			return f, true
		}
		i := strings.LastIndexByte(s, '.')
		if i < 0 {
			break
		}
		s = s[:i]
	}
	return "", false
}

// Len returns the number of modules in the index.
func (idx *ModuleIndex) Len() int { return len(idx.byName) }
