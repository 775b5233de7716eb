// Package vcsprobe enumerates tracked source files at the current commit
// and resolves the commit and branch identifiers, shelling out to git.
package vcsprobe

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlgit-dev/mlgit"
	"golang.org/x/xerrors"
)

// Result is everything the rest of the pipeline needs from the VCS probe.
type Result struct {
	Root   string
	Commit string
	Branch string
	Files  []mlgit.FileHandle // absolute, deduplicated, sorted
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", xerrors.Errorf("git %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Probe lists every file tracked at HEAD whose name ends in one of suffixes,
// and resolves the current commit and branch. It returns mlgit.ErrNotARepo
// if root is not inside a Git working tree, and mlgit.ErrNoCommit if the
// repository has no commits yet.
func Probe(ctx context.Context, root string, suffixes []string) (*Result, error) {
	top, err := runGit(ctx, root, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, mlgit.ErrNotARepo
	}

	commit, err := runGit(ctx, top, "rev-parse", "HEAD")
	if err != nil {
		return nil, mlgit.ErrNoCommit
	}

	branch, err := runGit(ctx, top, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}

	listing, err := runGit(ctx, top, "ls-tree", "-r", "--name-only", "HEAD")
	if err != nil {
		return nil, xerrors.Errorf("vcsprobe: listing tracked files: %w", err)
	}

	seen := make(map[string]struct{})
	var files []mlgit.FileHandle
	for _, line := range strings.Split(listing, "\n") {
		if line == "" {
			continue
		}
		if !hasAnySuffix(line, suffixes) {
			continue
		}
		abs := filepath.Join(top, line)
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		files = append(files, mlgit.FileHandle(abs))
	}
	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	return &Result{
		Root:   top,
		Commit: commit,
		Branch: branch,
		Files:  files,
	}, nil
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
