// Package orchestrate sequences hooks through their per-run state machine
// and aggregates the run outcome.
package orchestrate

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hooklabs/prehook/internal/config"
	"github.com/hooklabs/prehook/internal/errors"
	"github.com/hooklabs/prehook/internal/filters"
	"github.com/hooklabs/prehook/internal/git"
	"github.com/hooklabs/prehook/internal/languages"
	"github.com/hooklabs/prehook/internal/logger"
	"github.com/hooklabs/prehook/internal/repos"
	"github.com/hooklabs/prehook/internal/report"
	"github.com/hooklabs/prehook/internal/runner"
	"github.com/hooklabs/prehook/internal/store"
)

// interruptExitCode is the conventional exit status after SIGINT (128+2)
const interruptExitCode = 130

// Options selects and shapes one run
type Options struct {
	// HookID restricts the run to hooks with this id
	HookID string
	// Stage is the active hook stage (default pre-commit)
	Stage string
	// StageExplicit records whether the stage was user-supplied, for the
	// wording of the hook-not-found diagnostic
	StageExplicit bool
	// AllFiles runs against every tracked file
	AllFiles bool
	// Files runs against an explicit file list
	Files []string
	// Skip lists hook ids forced to Skipped (from the SKIP env var)
	Skip []string
	// Verbose turns on per-hook verbose reporting for every hook
	Verbose bool
}

// hookEntry is one selected hook with its resolved repository context
type hookEntry struct {
	hook     config.Hook
	repoDir  string
	repoName string
	meta     bool
}

// Engine wires the run's collaborators together
type Engine struct {
	cfg        *config.Config
	configPath string
	repo       *git.Repo
	store      *store.Store
	fetcher    *repos.Fetcher
	envs       *languages.Manager
	run        *runner.Runner
	rep        *report.Reporter

	// exit is swappable for tests of interrupt handling
	exit func(code int)
}

// New creates an engine for one run. All progress and report lines go to out.
func New(cfg *config.Config, configPath string, repo *git.Repo, s *store.Store, out io.Writer) *Engine {
	fetcher := repos.NewFetcher(s)
	fetcher.Progress = out
	envs := languages.NewManager(s)
	envs.Progress = out

	return &Engine{
		cfg:        cfg,
		configPath: configPath,
		repo:       repo,
		store:      s,
		fetcher:    fetcher,
		envs:       envs,
		run:        runner.New(repo.Root()),
		rep:        report.New(out, repo.Root()),
		exit:       os.Exit,
	}
}

// Run executes the selected hooks in declared order. It returns whether every
// reached hook ended Passed or Skipped; err is non-nil only for structural
// aborts, never for hook-level failures.
func (e *Engine) Run(ctx context.Context, opts Options) (bool, error) {
	if opts.Stage == "" {
		opts.Stage = "pre-commit"
	}

	if err := e.checkRepoState(); err != nil {
		return false, err
	}

	entries, err := e.selectHooks(ctx, opts)
	if err != nil {
		return false, err
	}

	universe, err := e.fileUniverse(opts)
	if err != nil {
		return false, err
	}

	// Compile every filter before the guard touches the tree, so a malformed
	// pattern aborts without side effects.
	hookFilters := make([]*filters.Filter, len(entries))
	for i, entry := range entries {
		f, ferr := filters.New(e.repo.Root(), e.cfg, entry.hook)
		if ferr != nil {
			return false, ferr
		}
		hookFilters[i] = f
	}

	if err := e.prestageEnvironments(ctx, entries); err != nil {
		return false, err
	}

	guard := git.NewGuard(e.repo)
	if err := guard.Snapshot(e.store.PatchPath()); err != nil {
		return false, err
	}

	// The restore step runs exactly once before process exit, whichever path
	// gets there first: normal return, structural error, or a signal. Only a
	// delivered signal may take the interrupt exit; the watcher is told apart
	// from normal completion by the finished channel, not by cancellation.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	finished := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			if rerr := guard.Restore(); rerr != nil {
				logger.Error("%v", rerr)
			}
			e.exit(interruptExitCode)
		case <-finished:
		}
	}()
	defer func() {
		signal.Stop(sigs)
		close(finished)
		if rerr := guard.Restore(); rerr != nil {
			logger.Error("%v", rerr)
		}
	}()

	success := true
	for i, entry := range entries {
		if ctx.Err() != nil {
			return false, errors.New(errors.ErrInterrupted, "hook run interrupted")
		}

		res := e.executeHook(ctx, opts, entry, hookFilters[i], universe)
		if rerr := e.rep.Report(res); rerr != nil {
			return false, rerr
		}

		if res.Status == runner.Failed {
			success = false
			if entry.hook.FailFast || e.cfg.FailFast {
				break
			}
		}
	}
	return success, nil
}

// executeHook drives one hook through Pending -> Skipped | Running ->
// Passed/Failed.
func (e *Engine) executeHook(ctx context.Context, opts Options, entry hookEntry, filter *filters.Filter, universe []string) runner.Result {
	hook := entry.hook
	if opts.Verbose {
		hook.Verbose = true
	}

	// Skip-listed hooks never reach file selection.
	if slices.Contains(opts.Skip, hook.ID) {
		return runner.Result{Hook: hook, Status: runner.Skipped}
	}

	files := filter.Apply(universe)
	if len(files) == 0 && !hook.AlwaysRun {
		return runner.Result{Hook: hook, Status: runner.Skipped, NoFiles: true}
	}

	if entry.meta {
		return e.runMeta(hook, files, universe)
	}

	env, err := e.envs.Resolve(ctx, hook, entry.repoDir, entry.repoName)
	if err != nil {
		// Pre-staging already reported install failures; reaching this means
		// a cache race lost, which is still fatal for the hook.
		return runner.Result{Hook: hook, Status: runner.Failed, ExitCode: 1, Output: []byte(err.Error() + "\n")}
	}

	diffBefore, _ := e.repo.Diff()
	res := e.run.Run(hook, env, files)
	diffAfter, _ := e.repo.Diff()
	res.FilesModified = !bytes.Equal(diffBefore, diffAfter)
	return res
}

// checkRepoState aborts the run before any hook when the repository or the
// configuration is in a state hooks must not observe.
func (e *Engine) checkRepoState() error {
	unmerged, err := e.repo.HasUnmergedPaths()
	if err != nil {
		return err
	}
	if unmerged {
		return errors.New(errors.ErrUnmergedPaths,
			"You have unmerged paths. Resolve them before running prehook.")
	}

	unstaged, err := e.repo.HasUnstagedChanges(e.configPath)
	if err != nil {
		return err
	}
	if unstaged {
		return errors.New(errors.ErrConfigUnstaged,
			"Your pre-commit configuration is unstaged.").
			WithFix("`git add " + config.ConfigFileName + "` to fix this.")
	}
	return nil
}

// selectHooks resolves every declared repo, applies stage and id filters,
// and returns the hooks to run in declared order.
func (e *Engine) selectHooks(ctx context.Context, opts Options) ([]hookEntry, error) {
	var entries []hookEntry
	for _, repo := range e.cfg.Repos {
		resolved, err := e.resolveRepo(ctx, repo)
		if err != nil {
			return nil, err
		}
		entries = append(entries, resolved...)
	}

	selected := make([]hookEntry, 0, len(entries))
	for _, entry := range entries {
		if opts.HookID != "" && entry.hook.ID != opts.HookID {
			continue
		}
		if !slices.Contains(entry.hook.EffectiveStages(e.cfg.DefaultStages), opts.Stage) {
			continue
		}
		selected = append(selected, entry)
	}

	if len(selected) == 0 && opts.HookID != "" {
		if opts.StageExplicit {
			return nil, errors.Newf(errors.ErrHookNotFound,
				"No hook found for id `%s` and stage `%s`", opts.HookID, opts.Stage)
		}
		return nil, errors.Newf(errors.ErrHookNotFound, "No hook found for id `%s`", opts.HookID)
	}
	return selected, nil
}

// resolveRepo turns one repo declaration into runnable hook entries,
// fetching and consulting the manifest for remote repositories.
func (e *Engine) resolveRepo(ctx context.Context, repo config.Repo) ([]hookEntry, error) {
	switch {
	case repo.IsLocal():
		entries := make([]hookEntry, 0, len(repo.Hooks))
		for _, hook := range repo.Hooks {
			entries = append(entries, hookEntry{hook: hook, repoName: "local"})
		}
		return entries, nil

	case repo.IsMeta():
		entries := make([]hookEntry, 0, len(repo.Hooks))
		for _, hook := range repo.Hooks {
			manifest, ok := metaHooks[hook.ID]
			if !ok {
				return nil, errors.Newf(errors.ErrHookNotFound, "unknown meta hook `%s`", hook.ID)
			}
			entries = append(entries, hookEntry{hook: config.Merge(manifest, hook), repoName: "meta", meta: true})
		}
		return entries, nil

	default:
		dir, err := e.fetcher.Fetch(ctx, repo.Repo, repo.Rev)
		if err != nil {
			return nil, err
		}
		manifest, err := repos.Manifest(dir)
		if err != nil {
			return nil, err
		}
		entries := make([]hookEntry, 0, len(repo.Hooks))
		for _, hook := range repo.Hooks {
			base, ok := manifest[hook.ID]
			if !ok {
				return nil, errors.Newf(errors.ErrFetchFailed,
					"Hook `%s` is not present in repository %s", hook.ID, repo.Repo)
			}
			entries = append(entries, hookEntry{
				hook:     config.Merge(base, hook),
				repoDir:  dir,
				repoName: repo.Repo + "@" + repo.Rev,
			})
		}
		return entries, nil
	}
}

// fileUniverse determines the files hooks select from for this run
func (e *Engine) fileUniverse(opts Options) ([]string, error) {
	switch {
	case opts.AllFiles:
		return e.repo.AllFiles()
	case len(opts.Files) > 0:
		return e.repo.FilesFrom(opts.Files)
	default:
		return e.repo.StagedFiles()
	}
}

// prestageEnvironments installs every distinct environment the selected
// hooks need, in parallel. Installs target disjoint fingerprint-keyed cache
// entries, so concurrency here cannot corrupt shared state.
func (e *Engine) prestageEnvironments(ctx context.Context, entries []hookEntry) error {
	g, gctx := errgroup.WithContext(ctx)
	seen := make(map[string]struct{})

	for _, entry := range entries {
		if entry.meta {
			continue
		}
		key := entry.hook.Language + "\x00" + entry.repoDir + "\x00" +
			store.Fingerprint(entry.hook.Language, "", entry.hook.AdditionalDependencies)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		hook, repoDir, repoName := entry.hook, entry.repoDir, entry.repoName
		g.Go(func() error {
			_, err := e.envs.Resolve(gctx, hook, repoDir, repoName)
			return err
		})
	}
	return g.Wait()
}
