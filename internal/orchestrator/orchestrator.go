// Package orchestrator implements the top-level SuitesService:
// discovery, transpile, target dispatch, and exit-code computation.
// It lives apart from internal/lifecycle because internal/dispatch
// already depends on internal/lifecycle through internal/sandbox's
// use of the registrar/engine — importing dispatch back into
// lifecycle would be a cycle.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/xjet-run/engine/internal/config"
	"github.com/xjet-run/engine/internal/dispatch"
	"github.com/xjet-run/engine/internal/glob"
	"github.com/xjet-run/engine/internal/reporter"
	"github.com/xjet-run/engine/internal/wire"
	"github.com/xjet-run/engine/pkg/artifact"
	"github.com/xjet-run/engine/pkg/xjetlog"
)

// Transpiler turns one suite source file into a SpecArtifact. The
// orchestrator only ever calls this interface, never a concrete
// bundler, so swapping transpilers never touches SuitesService.
type Transpiler interface {
	Transpile(path string, build config.BuildConfig) (artifact.SpecArtifact, error)
}

// PassthroughTranspiler reads a suite file verbatim as the "bundled
// code" with an empty source map — the identity transpiler used when
// no real bundler is wired in.
type PassthroughTranspiler struct{}

func (PassthroughTranspiler) Transpile(path string, build config.BuildConfig) (artifact.SpecArtifact, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return artifact.SpecArtifact{}, fmt.Errorf("read suite %s: %w", path, err)
	}
	return artifact.SpecArtifact{SuiteID: path, Code: string(code)}, nil
}

// TargetFactory builds the dispatch.Target a run drives, given the
// reporter events are forwarded to. Exposed so tests can substitute a
// fake Target without touching SuitesService's discovery/exit-code
// logic.
type TargetFactory func(rep reporter.Reporter) dispatch.Target

// NewLocalTargetFactory returns a TargetFactory building a
// dispatch.LocalTarget configured from cfg.
func NewLocalTargetFactory(cfg *config.Config) TargetFactory {
	return func(rep reporter.Reporter) dispatch.Target {
		return dispatch.NewLocalTarget(rep, cfg.Timeout, cfg.Filter, cfg.Randomize, time.Now().UnixNano())
	}
}

// NewExternalTargetFactory returns a TargetFactory building a
// dispatch.ExternalTarget over cfg.TestRunners.
func NewExternalTargetFactory(cfg *config.Config) TargetFactory {
	return func(rep reporter.Reporter) dispatch.Target {
		runners := make([]dispatch.RunnerConfig, 0, len(cfg.TestRunners))
		for _, r := range cfg.TestRunners {
			runners = append(runners, dispatch.RunnerConfig{
				ID:              r.ID,
				Address:         r.Address,
				Concurrency:     r.Concurrency,
				DispatchTimeout: time.Duration(cfg.Timeout) * time.Millisecond,
				ConnectTimeout:  5 * time.Second,
			})
		}
		return dispatch.NewExternalTarget(rep, runners)
	}
}

// SuitesService is the top-level orchestrator: it discovers suite
// files per the configured globs, transpiles each one, selects a
// dispatch.Target (LocalTarget or ExternalTarget, per
// config.Config.UsesExternalTarget), drives the run, and computes the
// process exit code from the FAILURE action events (test- or
// describe-level) and suite errors the run produces.
type SuitesService struct {
	cfg        *config.Config
	transpiler Transpiler
	newTarget  TargetFactory
	log        xjetlog.Logger

	mu     sync.Mutex
	failed bool
}

// NewSuitesService builds the orchestrator. If transpiler is nil,
// PassthroughTranspiler is used. If newTarget is nil, it is chosen
// from cfg.UsesExternalTarget().
func NewSuitesService(cfg *config.Config, transpiler Transpiler, newTarget TargetFactory, log xjetlog.Logger) *SuitesService {
	if transpiler == nil {
		transpiler = PassthroughTranspiler{}
	}
	if newTarget == nil {
		if cfg.UsesExternalTarget() {
			newTarget = NewExternalTargetFactory(cfg)
		} else {
			newTarget = NewLocalTargetFactory(cfg)
		}
	}
	if log == nil {
		log = xjetlog.NewNop()
	}
	return &SuitesService{cfg: cfg, transpiler: transpiler, newTarget: newTarget, log: log}
}

// Discover resolves cfg.Files/Suites/Exclude against the project root
// into a sorted, de-duplicated list of suite file paths.
func (s *SuitesService) Discover() ([]string, error) {
	include := s.cfg.Files
	if len(include) == 0 {
		include = []string{"**/*.test.js"}
	}

	seen := make(map[string]bool)
	var matched []string

	err := filepath.Walk(s.cfg.ProjectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.cfg.ProjectRoot, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !matchesAny(include, rel) {
			return nil
		}
		if matchesAny(s.cfg.Exclude, rel) {
			return nil
		}
		if len(s.cfg.Suites) > 0 && !matchesAny(s.cfg.Suites, rel) {
			return nil
		}
		if !seen[rel] {
			seen[rel] = true
			matched = append(matched, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover suites: %w", err)
	}
	sort.Strings(matched)
	return matched, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		ok, err := glob.Match(p, name)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// Run discovers suites, transpiles each, builds the configured Target,
// dispatches the run, and returns the process exit code: 0 if every
// suite completed with a root-level SUCCESS action, 1 if any FAILURE
// action or suiteError was emitted. With Bail set, the first failure
// cancels the run context so both targets stop starting new work.
func (s *SuitesService) Run(ctx context.Context, rep reporter.Reporter) (int, error) {
	paths, err := s.Discover()
	if err != nil {
		return 1, err
	}

	artifacts := make(map[string]artifact.SpecArtifact, len(paths))
	suiteNames := make([]string, 0, len(paths))
	for _, p := range paths {
		art, err := s.transpiler.Transpile(p, s.cfg.Build)
		if err != nil {
			rep.SuiteError(reporter.SuiteErrorEvent{Suite: p, Message: err.Error()})
			s.markFailed()
			continue
		}
		if art.SuiteID == "" {
			art.SuiteID = p
		}
		artifacts[art.SuiteID] = art
		suiteNames = append(suiteNames, art.SuiteID)
	}

	runnerCount := -1
	if s.cfg.UsesExternalTarget() {
		runnerCount = len(s.cfg.TestRunners)
	}
	rep.Init(suiteNames, runnerCount)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	target := s.newTarget(rep)
	target.On(dispatch.EventAction, func(msg *wire.FramedMessage) {
		s.observeAction(msg)
		if s.cfg.Bail && s.isFailed() {
			cancel()
		}
	})
	target.On(dispatch.EventError, func(msg *wire.FramedMessage) {
		s.markFailed()
		if s.cfg.Bail {
			cancel()
		}
	})

	if err := target.Init(ctx); err != nil {
		rep.SuiteError(reporter.SuiteErrorEvent{Message: fmt.Sprintf("target init: %v", err)})
		s.markFailed()
	}

	if len(artifacts) > 0 {
		if err := target.ExecuteSuites(ctx, artifacts, false); err != nil {
			s.log.Errorw("suite execution returned an error", "error", err)
			s.markFailed()
		}
	}

	_ = target.Shutdown(ctx)
	rep.Finish()

	if s.isFailed() {
		return 1, nil
	}
	return 0, nil
}

// Watch re-runs Run whenever files matching cfg.Files change, polling
// mtimes rather than pulling in a filesystem-notification dependency.
// It returns when ctx is cancelled.
func (s *SuitesService) Watch(ctx context.Context, rep reporter.Reporter, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	lastRun := make(map[string]time.Time)

	for {
		paths, err := s.Discover()
		if err != nil {
			return err
		}
		changed := false
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				continue
			}
			if prev, ok := lastRun[p]; !ok || info.ModTime().After(prev) {
				changed = true
				lastRun[p] = info.ModTime()
			}
		}
		if changed {
			if _, err := s.Run(ctx, rep); err != nil {
				s.log.Errorw("watch run failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// observeAction marks the run failed on any FAILURE action, test- or
// describe-level. A throwing test body fails only its own test action;
// the enclosing describe still closes with SUCCESS unless an afterAll
// hook also failed, so judging root actions alone would let a run with
// failing tests exit 0.
func (s *SuitesService) observeAction(msg *wire.FramedMessage) {
	payload, err := msg.DecodeAction()
	if err != nil {
		return
	}
	if payload.Type == "FAILURE" {
		s.markFailed()
	}
}

func (s *SuitesService) markFailed() {
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
}

func (s *SuitesService) isFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}
