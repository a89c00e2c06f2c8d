// Package runner drives the execution pipeline: for every (browser x
// scenario x slice x viewport) combination it runs setup, assertions,
// capture, and diffing inside a fresh session, retries failed slices up to
// the configured budget, and records each outcome through the manifest
// recorder. Execution is strictly sequential; concurrent sessions would
// reintroduce the timing noise the determinism controls exist to remove.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/justinrayshort/os-sub001/internal/capture"
	"github.com/justinrayshort/os-sub001/internal/config"
	"github.com/justinrayshort/os-sub001/internal/diffing"
	"github.com/justinrayshort/os-sub001/internal/manifest"
	"github.com/justinrayshort/os-sub001/internal/registry"
	"github.com/justinrayshort/os-sub001/internal/session"
)

// Driver is what one live attempt needs from a session. *session.Session
// satisfies it; tests substitute fakes.
type Driver interface {
	SetViewport(vp registry.Viewport) error
	Navigate(path string) error
	WaitForSelector(selector string) error
	Click(selector string) error
	Keypress(key string) error
	SetStorageKey(key, value string) error
	HasSelector(selector string) (bool, error)
	HasText(text string) (bool, error)

	Screenshot() ([]byte, error)
	HTML() (string, error)
	AXTree(selector string) ([]*proto.AccessibilityAXNode, error)
	Eval(js string, args ...any) (any, error)
	Events() *session.EventLog
	Trace() *session.Trace

	Close()
}

// SessionFactory opens a fresh driver per attempt.
type SessionFactory interface {
	NewSession(ctx context.Context, browser string) (Driver, error)
}

// ManagerFactory adapts the concrete session manager to SessionFactory.
type ManagerFactory struct {
	Manager *session.Manager
}

func (f ManagerFactory) NewSession(ctx context.Context, browser string) (Driver, error) {
	return f.Manager.NewSession(ctx, browser)
}

// Job is one combination scheduled for execution.
type Job struct {
	Scenario registry.Scenario
	Slice    registry.Slice
	Browser  string
	Viewport registry.Viewport
}

// Name returns the job's canonical artifact stem.
func (j Job) Name() string {
	return config.ArtifactName(j.Scenario.ID, j.Slice.ID, j.Browser, j.Viewport.ID)
}

// Runner executes the scheduled combinations of one run.
type Runner struct {
	cfg      *config.RunConfig
	rc       *config.RunContext
	log      *slog.Logger
	sessions SessionFactory
	capturer *capture.Capturer
	engine   *diffing.Engine
	recorder *manifest.Recorder
}

func New(cfg *config.RunConfig, rc *config.RunContext, log *slog.Logger,
	sessions SessionFactory, capturer *capture.Capturer, engine *diffing.Engine,
	recorder *manifest.Recorder) *Runner {
	return &Runner{
		cfg:      cfg,
		rc:       rc,
		log:      log,
		sessions: sessions,
		capturer: capturer,
		engine:   engine,
		recorder: recorder,
	}
}

// Run executes the full cross product sequentially and records every result.
// It returns the final manifest status. A context cancellation aborts before
// the next combination; the manifest on disk stays valid and running.
func (r *Runner) Run(ctx context.Context, cat *registry.Catalog, scenarios []registry.Scenario) (string, error) {
	for _, browser := range r.cfg.Browsers {
		for _, sc := range scenarios {
			for _, sl := range sc.Slices {
				for _, vpID := range sl.Viewports {
					if err := ctx.Err(); err != nil {
						return manifest.StatusRunning, fmt.Errorf("runner: aborted: %w", err)
					}
					vp, err := cat.ResolveViewport(r.cfg.ViewportSet, vpID)
					if err != nil {
						return manifest.StatusRunning, err
					}

					job := Job{Scenario: sc, Slice: sl, Browser: browser, Viewport: vp}
					res := r.runSlice(ctx, job)
					if err := r.recorder.Append(res); err != nil {
						return manifest.StatusRunning, err
					}
				}
			}
		}
	}
	return r.recorder.Finish(r.cfg.DiffingDisabled())
}

// runSlice drives the retry loop for one combination: attempts run until one
// passes or the budget is exhausted, and the last result stands. Artifacts
// from a later attempt overwrite the earlier ones at the same paths.
func (r *Runner) runSlice(ctx context.Context, job Job) manifest.SliceResult {
	var last manifest.SliceResult
	maxAttempts := r.cfg.Retries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = r.attempt(ctx, job, attempt)
		last.Attempts = attempt
		if last.Passed() {
			last.Status = manifest.StatusPassed
			return last
		}
		last.Status = manifest.StatusFailed
		if attempt < maxAttempts {
			r.log.Warn("runner: slice failed, retrying",
				"slice", job.Slice.ID,
				"browser", job.Browser,
				"viewport", job.Viewport.ID,
				"attempt", attempt,
				"failures", len(last.Failures))
		}
	}
	return last
}

// attempt runs the full setup -> assert -> capture -> diff pipeline once.
// Failures accumulate rather than short-circuit wherever the pipeline can
// keep going, so one attempt yields as much diagnosis as possible.
func (r *Runner) attempt(ctx context.Context, job Job, attempt int) (res manifest.SliceResult) {
	res = manifest.SliceResult{
		ScenarioID: job.Scenario.ID,
		SliceID:    job.Slice.ID,
		Browser:    job.Browser,
		ViewportID: job.Viewport.ID,
	}
	start := time.Now()
	defer func() { res.DurationMS = time.Since(start).Milliseconds() }()

	// Anything thrown during setup degrades to setup_failed with the raw
	// message, so no attempt ends without a recorded cause.
	defer func() {
		if p := recover(); p != nil {
			res.Failures = append(res.Failures, manifest.Failure{
				Code:    manifest.CodeSetupFailed,
				Message: fmt.Sprintf("attempt panicked: %v", p),
			})
		}
	}()

	drv, err := r.sessions.NewSession(ctx, job.Browser)
	if err != nil {
		res.Failures = append(res.Failures, manifest.Failure{
			Code:    manifest.CodeSetupFailed,
			Message: err.Error(),
		})
		return res
	}
	defer func() {
		r.persistTrace(drv, job, &res)
		drv.Close()
	}()

	if err := r.setup(drv, job); err != nil {
		res.Failures = append(res.Failures, manifest.Failure{
			Code:    manifest.CodeSetupFailed,
			Message: err.Error(),
		})
		return res
	}

	res.Failures = append(res.Failures, r.assert(drv, job.Slice)...)

	set, err := r.capturer.Capture(drv, job.Slice.TrackedRoot)
	if err != nil {
		res.Failures = append(res.Failures, manifest.Failure{
			Code:    manifest.CodeSetupFailed,
			Message: fmt.Sprintf("artifact capture failed: %v", err),
		})
		return res
	}

	if f := consoleFailure(set); f != nil {
		res.Failures = append(res.Failures, *f)
	}
	res.ConsoleErrorCount = countConsoleErrors(set)

	paths, err := r.capturer.Write(r.rc, job.Name(), set)
	if err != nil {
		res.Failures = append(res.Failures, manifest.Failure{
			Code:    manifest.CodeSetupFailed,
			Message: fmt.Sprintf("artifact write failed: %v", err),
		})
		return res
	}
	res.Artifacts = paths

	res.Failures = append(res.Failures, r.diff(job, set)...)
	return res
}

// setup executes the slice's action sequence in order. The viewport is
// applied first so navigation happens at final geometry.
func (r *Runner) setup(drv Driver, job Job) error {
	if err := drv.SetViewport(job.Viewport); err != nil {
		return err
	}
	for _, a := range job.Slice.Setup {
		var err error
		switch a.Kind {
		case registry.ActionNavigate:
			err = drv.Navigate(a.Path)
		case registry.ActionSetStorageKey:
			err = drv.SetStorageKey(a.Key, a.Value)
		case registry.ActionClick:
			err = drv.Click(a.Selector)
		case registry.ActionKeypress:
			err = drv.Keypress(a.Key)
		case registry.ActionWaitForSelector:
			err = drv.WaitForSelector(a.Selector)
		default:
			err = fmt.Errorf("runner: unknown setup action %q", a.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// assert evaluates every assertion; none short-circuits.
func (r *Runner) assert(drv Driver, sl registry.Slice) []manifest.Failure {
	var failures []manifest.Failure
	for _, a := range sl.Assertions {
		var (
			ok  bool
			err error
		)
		switch a.Kind {
		case registry.AssertSelectorPresence:
			ok, err = drv.HasSelector(a.Target)
		case registry.AssertTextPresence:
			ok, err = drv.HasText(a.Target)
		default:
			err = fmt.Errorf("unknown assertion kind %q", a.Kind)
		}

		switch {
		case err != nil:
			failures = append(failures, manifest.Failure{
				Code:    manifest.CodeAssertionFailed,
				Message: fmt.Sprintf("%s %q: %v", a.Kind, a.Target, err),
			})
		case !ok:
			failures = append(failures, manifest.Failure{
				Code:    manifest.CodeAssertionFailed,
				Message: fmt.Sprintf("%s %q did not hold", a.Kind, a.Target),
			})
		}
	}
	return failures
}

// diff compares against the baseline store unless the run or the slice opts
// out, and maps artifact-level divergences onto failure codes.
func (r *Runner) diff(job Job, set *capture.ArtifactSet) []manifest.Failure {
	if r.cfg.DiffingDisabled() || !job.Slice.BaselineEligible {
		return nil
	}
	strategy := job.Slice.EffectiveStrategy(registry.DiffStrategy(r.cfg.DiffStrategy))
	if strategy == registry.DiffNone {
		return nil
	}

	result, err := r.engine.Compare(diffing.Key{
		Profile:    r.cfg.Profile,
		ScenarioID: job.Scenario.ID,
		SliceID:    job.Slice.ID,
		Browser:    job.Browser,
		ViewportID: job.Viewport.ID,
	}, strategy, job.Slice.BaselineEligible, set)
	if err != nil {
		return []manifest.Failure{{
			Code:    manifest.CodeSetupFailed,
			Message: fmt.Sprintf("baseline comparison failed: %v", err),
		}}
	}
	if result.Skipped != "" {
		r.log.Info("runner: baseline skipped", "slice", job.Slice.ID, "reason", result.Skipped)
	}

	var failures []manifest.Failure
	for _, f := range result.Failures {
		failures = append(failures, manifest.Failure{
			Code:    diffFailureCode(f.Artifact),
			Message: diffFailureMessage(f),
			Detail:  f,
		})
	}
	return failures
}

// persistTrace writes the attempt trace when the policy asks for it: always
// under "on", only for failing attempts under "on-failure".
func (r *Runner) persistTrace(drv Driver, job Job, res *manifest.SliceResult) {
	keep := r.cfg.TracePolicy == config.TraceOn ||
		(r.cfg.TracePolicy == config.TraceOnFailure && len(res.Failures) > 0)
	if !keep {
		return
	}

	path := filepath.Join(r.rc.TracesDir, job.Name()+".trace.ndjson")
	if err := drv.Trace().WriteFile(path); err != nil {
		r.log.Warn("runner: persist trace", "slice", job.Slice.ID, "error", err)
		return
	}
	res.TracePath = path
}

func diffFailureCode(artifact string) string {
	switch artifact {
	case "dom":
		return manifest.CodeDOMDiffFailed
	case "a11y":
		return manifest.CodeA11yDiffFailed
	case "layout":
		return manifest.CodeLayoutDiffFailed
	default:
		return manifest.CodePixelDiffFailed
	}
}

func diffFailureMessage(f diffing.Failure) string {
	switch f.Reason {
	case diffing.ReasonMissingBaseline:
		return "no baseline recorded for this combination"
	case diffing.ReasonArtifactAbsent:
		return fmt.Sprintf("baseline has no %s artifact", f.Artifact)
	default:
		return fmt.Sprintf("%s differs from baseline", f.Artifact)
	}
}

// consoleFailure turns error-level console output or uncaught exceptions
// into a single console_error_detected failure summarizing both counts.
func consoleFailure(set *capture.ArtifactSet) *manifest.Failure {
	n := countConsoleErrors(set)
	if n == 0 {
		return nil
	}
	return &manifest.Failure{
		Code:    manifest.CodeConsoleError,
		Message: fmt.Sprintf("page emitted %d console error(s) or uncaught exception(s)", n),
	}
}

func countConsoleErrors(set *capture.ArtifactSet) int {
	n := len(set.PageErrors)
	for _, c := range set.Console {
		if c.Level == "error" {
			n++
		}
	}
	return n
}
