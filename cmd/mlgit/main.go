// Command mlgit is the thin CLI harness wiring the VCS probe, graph builder,
// SCC condenser, priority calculator, scheduler core, and
// content-addressable store into one end-to-end indexing pass. It injects a
// stand-in task function since the real per-language metadata extractor and
// any LLM-enrichment client are external collaborators.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/mlgit-dev/mlgit"
	"github.com/mlgit-dev/mlgit/internal/env"
	"github.com/mlgit-dev/mlgit/internal/graph"
	"github.com/mlgit-dev/mlgit/internal/mlgitconfig"
	"github.com/mlgit-dev/mlgit/internal/oninterrupt"
	"github.com/mlgit-dev/mlgit/internal/scheduler"
	"github.com/mlgit-dev/mlgit/internal/statusline"
	"github.com/mlgit-dev/mlgit/internal/store"
	"github.com/mlgit-dev/mlgit/internal/trace"
	"github.com/mlgit-dev/mlgit/internal/vcsprobe"
	"golang.org/x/xerrors"
)

var (
	debug      = flag.Bool("debug", false, "enable debug mode: format error messages with additional detail")
	ctracefile = flag.String("ctracefile", "", "path to store a chrome trace event file at (load in chrome://tracing)")
)

// stubExtractor stands in for the real per-language import parser (an
// external collaborator): it reports no import references, which still
// exercises the full graph/condense/schedule/store pipeline: every file
// becomes its own singleton component.
type stubExtractor struct{}

func (stubExtractor) Extract(file mlgit.FileHandle) ([]mlgit.ImportRef, error) { return nil, nil }

// stubTask stands in for the real task function: it records each file's
// size as a minimal result blob rather than calling out to a metadata
// extractor or LLM.
func stubTask(ctx context.Context, files []mlgit.FileHandle) (scheduler.TaskResult, error) {
	var result scheduler.TaskResult
	for _, f := range files {
		info, err := os.Stat(string(f))
		size := int64(0)
		if err == nil {
			size = info.Size()
		}
		result.Blobs = append(result.Blobs, scheduler.Blob{
			Module: f,
			Value: map[string]interface{}{
				"module": string(f),
				"size":   float64(size),
			},
		})
	}
	return result, nil
}

func cmdInit(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("init", flag.ExitOnError)
	root := fset.String("root", env.RepoRoot, "repository root to initialize")
	fset.Parse(args)
	return mlgitconfig.Init(env.ConfigDir(*root))
}

func cmdIndex(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("index", flag.ExitOnError)
	root := fset.String("root", env.RepoRoot, "repository root")
	suffixFlag := fset.String("suffix", ".py", "comma-separated list of tracked source-file suffixes")
	mode := fset.String("mode", "parallel", "task dispatch flavor: parallel or cooperative-io")
	workers := fset.Int("workers", 0, "max in-flight components (0 = use scheduler.static_workers/dynamic_workers from config)")
	fset.Parse(args)

	mlgitDir := env.ConfigDir(*root)
	cfg, err := mlgitconfig.Load(mlgitDir)
	if err != nil {
		return xerrors.Errorf("loading config (did you run `mlgit init`?): %w", err)
	}

	suffixes := strings.Split(*suffixFlag, ",")
	suffix := suffixes[0]

	probe, err := vcsprobe.Probe(ctx, *root, suffixes)
	if err != nil {
		return err
	}
	log.Printf("indexing %d files at commit %s (branch %s)", len(probe.Files), probe.Commit, probe.Branch)

	g, parseErrs := graph.Build(probe.Root, probe.Files, suffix, stubExtractor{})
	for _, pe := range parseErrs {
		log.Printf("parse error in %s: %v", pe.File, pe.Err)
	}

	cond := graph.Condense(g)
	weights := graph.ComputeWeights(cond)
	cp, err := graph.ComputeCriticalPaths(cond, weights)
	if err != nil {
		return err
	}

	var dispatchMode scheduler.Mode
	switch *mode {
	case "parallel":
		dispatchMode = scheduler.ModeParallel
	case "cooperative-io":
		dispatchMode = scheduler.ModeCooperativeIO
	default:
		return xerrors.Errorf("unknown mode %q (want parallel or cooperative-io)", *mode)
	}

	maxWorkers := *workers
	if maxWorkers <= 0 {
		if dispatchMode == scheduler.ModeCooperativeIO {
			maxWorkers = cfg.Scheduler.DynamicWorkers
		} else if cfg.Scheduler.StaticWorkers != nil {
			maxWorkers = *cfg.Scheduler.StaticWorkers
		} else {
			maxWorkers = runtime.NumCPU() // null static_workers: host concurrency
		}
		if maxWorkers <= 0 {
			maxWorkers = 4
		}
	}

	sched := scheduler.New(cond, weights, cp, stubTask)
	sched.Status = statusline.New()
	report, err := sched.Run(ctx, dispatchMode, maxWorkers)
	if err != nil {
		return err
	}
	log.Printf("%d succeeded, %d failed, cancelled=%v", report.Succeeded, report.Failed, report.Cancelled)

	st := store.New(mlgitDir, cfg)
	modules := make(map[mlgit.ModuleName]string)
	for _, result := range report.Results {
		for _, blob := range result.Blobs {
			digest, err := st.Put(blob.Value)
			if err != nil {
				return err
			}
			name := mlgit.DeriveModuleName(probe.Root, blob.Module, suffix)
			modules[name] = digest
		}
	}
	for id, taskErr := range report.Errors {
		for _, f := range cond.Components[id].Files {
			name := mlgit.DeriveModuleName(probe.Root, f, suffix)
			modules[name] = store.SentinelDigest(taskErr.Error())
		}
	}

	if err := st.CommitManifest(probe.Commit, modules); err != nil {
		return err
	}

	cfg.Repo.Commit = probe.Commit
	cfg.Repo.Branch = probe.Branch
	if err := mlgitconfig.Save(mlgitDir, cfg); err != nil {
		return err
	}

	if cfg.Housekeeping.PruneUnreferenced {
		if err := st.Prune(); err != nil {
			return err
		}
	}
	if cfg.Housekeeping.KeepLastManifests > 0 {
		if err := st.Trim(cfg.Housekeeping.KeepLastManifests); err != nil {
			return err
		}
	}

	return nil
}

func cmdRetrieve(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("retrieve", flag.ExitOnError)
	root := fset.String("root", env.RepoRoot, "repository root")
	commit := fset.String("commit", "", "commit id to retrieve (defaults to the last indexed commit)")
	fset.Parse(args)

	mlgitDir := env.ConfigDir(*root)
	cfg, err := mlgitconfig.Load(mlgitDir)
	if err != nil {
		return err
	}
	if *commit == "" {
		*commit = cfg.Repo.Commit
	}
	if *commit == "" {
		return xerrors.Errorf("no commit specified and no commit recorded in config")
	}

	st := store.New(mlgitDir, cfg)
	r := store.NewRetriever(st)
	results, err := r.LoadAll(*commit)
	if err != nil {
		return err
	}
	for name, result := range results {
		if result.Err != nil {
			fmt.Printf("%s: error: %v\n", name, result.Err)
			continue
		}
		fmt.Printf("%s: %v\n", name, result.Blob)
	}
	return nil
}

func cmdPrune(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("prune", flag.ExitOnError)
	root := fset.String("root", env.RepoRoot, "repository root")
	keep := fset.Int("keep", 0, "manifests to retain (0 = use housekeeping.keep_last_manifests from config)")
	fset.Parse(args)

	mlgitDir := env.ConfigDir(*root)
	cfg, err := mlgitconfig.Load(mlgitDir)
	if err != nil {
		return err
	}
	st := store.New(mlgitDir, cfg)
	if err := st.Prune(); err != nil {
		return err
	}
	keepN := *keep
	if keepN <= 0 {
		keepN = cfg.Housekeeping.KeepLastManifests
	}
	return st.Trim(keepN)
}

func funcmain() error {
	flag.Parse()

	if *ctracefile != "" {
		f, err := os.Create(*ctracefile)
		if err != nil {
			return err
		}
		trace.Sink(f)
		mlgit.RegisterAtExit(f.Close)
	}

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"init":     {cmdInit},
		"index":    {cmdIndex},
		"retrieve": {cmdRetrieve},
		"prune":    {cmdPrune},
	}

	args := flag.Args()
	verb := "index"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	if verb == "help" {
		fmt.Fprintf(os.Stderr, "mlgit [-flags] <command> [-flags] <args>\n")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "\tinit     - create .mlgit/ and its default config\n")
		fmt.Fprintf(os.Stderr, "\tindex    - run one scheduler pass over the repository at HEAD\n")
		fmt.Fprintf(os.Stderr, "\tretrieve - read back an indexed commit's modules\n")
		fmt.Fprintf(os.Stderr, "\tprune    - run store housekeeping (prune + trim)\n")
		os.Exit(2)
	}

	ctx, canc := mlgit.InterruptibleContext()
	defer canc()

	oninterrupt.Register(func() {
		log.Printf("mlgit: interrupted, exiting without waiting for in-flight components")
	})

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		os.Exit(2)
	}
	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}

	return mlgit.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
