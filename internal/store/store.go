// Package store implements the content-addressable blob store: canonical-JSON
// blob digesting, gzip-compressed object storage, per-commit manifests, and
// housekeeping (prune/trim). Writes go through renameio so a crash never
// leaves a partially-written object or manifest behind.
package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
	"github.com/mlgit-dev/mlgit"
	"github.com/mlgit-dev/mlgit/internal/mlgitconfig"
	"golang.org/x/xerrors"
)

// Store persists result blobs and per-commit manifests beneath an .mlgit
// directory.
type Store struct {
	objectsDir   string
	manifestsDir string
}

// New builds a Store rooted at mlgitDir, using cfg's configured
// objects/manifests subdirectory names.
func New(mlgitDir string, cfg *mlgitconfig.Config) *Store {
	return &Store{
		objectsDir:   filepath.Join(mlgitDir, cfg.Storage.ObjectsDir),
		manifestsDir: filepath.Join(mlgitDir, cfg.Storage.ManifestsDir),
	}
}

// Manifest is the on-disk schema for manifests/<commit>.json.
type Manifest struct {
	Modules map[string]string `json:"modules"`
}

const sentinelPrefix = "error:"

// SentinelDigest returns the manifest digest recorded for a component that
// failed to process: failed components are recorded with a sentinel digest
// rather than omitted from the manifest entirely. No object is ever written
// for it.
func SentinelDigest(reason string) string {
	sum := sha256.Sum256([]byte(reason))
	return sentinelPrefix + hex.EncodeToString(sum[:])
}

// IsSentinel reports whether digest names a failed component rather than a
// stored blob.
func IsSentinel(digest string) bool {
	return len(digest) >= len(sentinelPrefix) && digest[:len(sentinelPrefix)] == sentinelPrefix
}

func (s *Store) objectPath(digest string) (string, error) {
	if len(digest) < 3 {
		return "", xerrors.Errorf("store: malformed digest %q", digest)
	}
	return filepath.Join(s.objectsDir, digest[:2], digest[2:]+".json.gz"), nil
}

// Put canonically serializes blob, digests it, and writes it compressed
// under objects/<aa>/<bbbb...>.json.gz. Writing a digest that already
// exists is a no-op: blobs are immutable once written.
func (s *Store) Put(blob map[string]interface{}) (string, error) {
	// encoding/json.Marshal on a map[string]interface{} already sorts keys
	// and emits no extraneous whitespace, which is all canonical JSON needs
	// here, so no bespoke encoder is needed.
	canon, err := json.Marshal(blob)
	if err != nil {
		return "", xerrors.Errorf("store: canonicalizing blob: %w", err)
	}
	sum := sha256.Sum256(canon)
	digest := hex.EncodeToString(sum[:])

	path, err := s.objectPath(digest)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return digest, nil // already written
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", xerrors.Errorf("store: %w", err)
	}

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	if _, err := w.Write(canon); err != nil {
		return "", xerrors.Errorf("store: compressing blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", xerrors.Errorf("store: compressing blob: %w", err)
	}
	if err := renameio.WriteFile(path, gz.Bytes(), 0644); err != nil {
		return "", xerrors.Errorf("store: writing object %s: %w", digest, err)
	}
	return digest, nil
}

func (s *Store) manifestPath(commit string) string {
	return filepath.Join(s.manifestsDir, commit+".json")
}

// CommitManifest atomically writes manifests/<commit>.json mapping module
// name to digest. It must run before Prune in a successful pass so the new
// manifest protects its blobs.
func (s *Store) CommitManifest(commit string, modules map[mlgit.ModuleName]string) error {
	m := Manifest{Modules: make(map[string]string, len(modules))}
	for name, digest := range modules {
		m.Modules[string(name)] = digest
	}
	b, err := json.Marshal(m)
	if err != nil {
		return xerrors.Errorf("store: marshaling manifest: %w", err)
	}
	if err := os.MkdirAll(s.manifestsDir, 0755); err != nil {
		return xerrors.Errorf("store: %w", err)
	}
	if err := renameio.WriteFile(s.manifestPath(commit), b, 0644); err != nil {
		return xerrors.Errorf("store: writing manifest %s: %w", commit, err)
	}
	return nil
}

// Prune deletes every object not referenced by any manifest, then removes
// any prefix directory left empty.
func (s *Store) Prune() error {
	referenced, err := s.referencedDigests()
	if err != nil {
		return err
	}

	prefixes, err := os.ReadDir(s.objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("store: listing objects: %w", err)
	}
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		prefixDir := filepath.Join(s.objectsDir, prefix.Name())
		entries, err := os.ReadDir(prefixDir)
		if err != nil {
			return xerrors.Errorf("store: listing %s: %w", prefixDir, err)
		}
		remaining := 0
		for _, e := range entries {
			name := e.Name()
			const suffix = ".json.gz"
			if len(name) <= len(suffix) {
				continue
			}
			digest := prefix.Name() + name[:len(name)-len(suffix)]
			if _, ok := referenced[digest]; ok {
				remaining++
				continue
			}
			if err := os.Remove(filepath.Join(prefixDir, name)); err != nil {
				return xerrors.Errorf("store: pruning %s: %w", digest, err)
			}
		}
		if remaining == 0 {
			if err := os.Remove(prefixDir); err != nil {
				return xerrors.Errorf("store: removing empty prefix %s: %w", prefixDir, err)
			}
		}
	}
	return nil
}

func (s *Store) referencedDigests() (map[string]struct{}, error) {
	entries, err := os.ReadDir(s.manifestsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]struct{}{}, nil
		}
		return nil, xerrors.Errorf("store: listing manifests: %w", err)
	}
	referenced := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.manifestsDir, e.Name()))
		if err != nil {
			return nil, xerrors.Errorf("store: reading manifest %s: %w", e.Name(), err)
		}
		var m Manifest
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, xerrors.Errorf("store: malformed manifest %s: %w", e.Name(), err)
		}
		for _, digest := range m.Modules {
			if IsSentinel(digest) {
				continue // no object backs a sentinel digest
			}
			referenced[digest] = struct{}{}
		}
	}
	return referenced, nil
}

// Trim retains only the keepN most recently modified manifests, deleting
// the rest. It must run after Prune, so a trimmed manifest never protects
// objects Prune already removed.
func (s *Store) Trim(keepN int) error {
	entries, err := os.ReadDir(s.manifestsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Errorf("store: listing manifests: %w", err)
	}

	type manifestFile struct {
		name    string
		modTime time.Time
	}
	var files []manifestFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return xerrors.Errorf("store: stat manifest %s: %w", e.Name(), err)
		}
		files = append(files, manifestFile{name: e.Name(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	if keepN < 0 {
		keepN = 0
	}
	for i := keepN; i < len(files); i++ {
		if err := os.Remove(filepath.Join(s.manifestsDir, files[i].name)); err != nil {
			return xerrors.Errorf("store: trimming manifest %s: %w", files[i].name, err)
		}
	}
	return nil
}
