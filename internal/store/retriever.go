package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/mlgit-dev/mlgit"
	"golang.org/x/xerrors"
)

// Retriever reads manifests and rehydrates blobs written by a Store.
type Retriever struct {
	store *Store
	// Strict verifies, on every LoadBlob, that the decompressed bytes hash
	// to the digest naming them, returning mlgit.ErrCorruptBlob on mismatch.
	Strict bool
}

// NewRetriever builds a Retriever over s.
func NewRetriever(s *Store) *Retriever {
	return &Retriever{store: s, Strict: true}
}

// LoadManifest returns the module name -> digest map committed for commit.
func (r *Retriever) LoadManifest(commit string) (map[mlgit.ModuleName]string, error) {
	b, err := os.ReadFile(r.store.manifestPath(commit))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mlgit.ErrManifestNotFound
		}
		return nil, xerrors.Errorf("retriever: reading manifest %s: %w", commit, err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, xerrors.Errorf("retriever: malformed manifest %s: %w", commit, err)
	}
	out := make(map[mlgit.ModuleName]string, len(m.Modules))
	for name, digest := range m.Modules {
		out[mlgit.ModuleName(name)] = digest
	}
	return out, nil
}

// LoadBlob decompresses and deserializes the object named by digest. It
// fails with mlgit.ErrBlobNotFound if no such object exists, and, in strict
// mode, mlgit.ErrCorruptBlob if the decompressed bytes do not hash to
// digest. Sentinel digests (see IsSentinel) are never valid objects and
// always return mlgit.ErrBlobNotFound; callers should check IsSentinel
// before calling LoadBlob.
func (r *Retriever) LoadBlob(digest string) (map[string]interface{}, error) {
	path, err := r.store.objectPath(digest)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mlgit.ErrBlobNotFound
		}
		return nil, xerrors.Errorf("retriever: opening object %s: %w", digest, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, xerrors.Errorf("retriever: decompressing object %s: %w", digest, err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, xerrors.Errorf("retriever: decompressing object %s: %w", digest, err)
	}

	if r.Strict {
		sum := sha256.Sum256(raw)
		if hex.EncodeToString(sum[:]) != digest {
			return nil, mlgit.ErrCorruptBlob
		}
	}

	var blob map[string]interface{}
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, xerrors.Errorf("retriever: %w", err)
	}
	return blob, nil
}

// ModuleResult is one module's outcome as seen by LoadAll: either a blob or
// an error, never both.
type ModuleResult struct {
	Blob map[string]interface{}
	Err  error
}

// LoadAll streams every module's blob for commit. A module recorded under a
// sentinel digest (a component that failed during the run that produced
// this manifest) surfaces as a ModuleResult with Err set instead of Blob.
func (r *Retriever) LoadAll(commit string) (map[mlgit.ModuleName]ModuleResult, error) {
	modules, err := r.LoadManifest(commit)
	if err != nil {
		return nil, err
	}
	out := make(map[mlgit.ModuleName]ModuleResult, len(modules))
	for name, digest := range modules {
		if IsSentinel(digest) {
			out[name] = ModuleResult{Err: xerrors.Errorf("mlgit: module %s failed during indexing (%s)", name, digest)}
			continue
		}
		blob, err := r.LoadBlob(digest)
		out[name] = ModuleResult{Blob: blob, Err: err}
	}
	return out, nil
}
