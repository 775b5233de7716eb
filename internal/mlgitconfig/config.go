// Package mlgitconfig loads and persists the JSON configuration document at
// <repo>/.mlgit/config.json.
package mlgitconfig

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

const fileName = "config.json"

// Config mirrors the on-disk JSON schema. Zero values for
// scheduler.static_workers are represented as a nil pointer (JSON null means
// "use host concurrency").
type Config struct {
	MLGitVersion string `json:"mlgit_version"`
	Repo         struct {
		Commit string `json:"commit"`
		Branch string `json:"branch"`
	} `json:"repo"`
	Scheduler struct {
		StaticWorkers  *int `json:"static_workers"`
		DynamicWorkers int  `json:"dynamic_workers"`
	} `json:"scheduler"`
	LLM struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	} `json:"llm"`
	Storage struct {
		Strategy     string `json:"strategy"`
		HashAlgo     string `json:"hash_algo"`
		Compression  string `json:"compression"`
		ObjectsDir   string `json:"objects_dir"`
		ManifestsDir string `json:"manifests_dir"`
	} `json:"storage"`
	Housekeeping struct {
		PruneUnreferenced bool `json:"prune_unreferenced"`
		KeepLastManifests int  `json:"keep_last_manifests"`
	} `json:"housekeeping"`
}

// Default returns the configuration written by `mlgit init`.
func Default() *Config {
	c := &Config{MLGitVersion: "0.1.0"}
	c.Scheduler.DynamicWorkers = 8
	c.LLM.Provider = "openai"
	c.LLM.Model = "gpt-4.1-mini"
	c.Storage.Strategy = "content-addressable"
	c.Storage.HashAlgo = "sha256"
	c.Storage.Compression = "gzip"
	c.Storage.ObjectsDir = "objects"
	c.Storage.ManifestsDir = "manifests"
	c.Housekeeping.PruneUnreferenced = true
	c.Housekeeping.KeepLastManifests = 10
	return c
}

// Path returns the path to config.json beneath the .mlgit directory dir.
func Path(mlgitDir string) string {
	return filepath.Join(mlgitDir, fileName)
}

// Load reads and parses config.json beneath mlgitDir.
func Load(mlgitDir string) (*Config, error) {
	b, err := os.ReadFile(Path(mlgitDir))
	if err != nil {
		return nil, xerrors.Errorf("mlgitconfig: %w", err)
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, xerrors.Errorf("mlgitconfig: malformed config: %w", err)
	}
	return &c, nil
}

// Save atomically writes c to config.json beneath mlgitDir.
func Save(mlgitDir string, c *Config) error {
	b, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(Path(mlgitDir), b, 0644)
}

// Init creates the .mlgit directory tree (objects/, manifests/, plus the
// raw/ and enriched/ scratch directories where the external extractor and
// LLM-enrichment client stage intermediate output) and writes a Default
// config if none exists yet.
func Init(mlgitDir string) error {
	for _, sub := range []string{"objects", "manifests", "raw", "enriched"} {
		if err := os.MkdirAll(filepath.Join(mlgitDir, sub), 0755); err != nil {
			return err
		}
	}
	if _, err := os.Stat(Path(mlgitDir)); err == nil {
		return nil // already initialized
	} else if !os.IsNotExist(err) {
		return err
	}
	return Save(mlgitDir, Default())
}
