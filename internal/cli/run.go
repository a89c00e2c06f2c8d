package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/justinrayshort/os-sub001/internal/capture"
	"github.com/justinrayshort/os-sub001/internal/config"
	"github.com/justinrayshort/os-sub001/internal/diffing"
	"github.com/justinrayshort/os-sub001/internal/history"
	"github.com/justinrayshort/os-sub001/internal/manifest"
	"github.com/justinrayshort/os-sub001/internal/registry"
	"github.com/justinrayshort/os-sub001/internal/runner"
	"github.com/justinrayshort/os-sub001/internal/session"
)

// RunFlags are the flag-level overrides of the OS_E2E_* environment surface.
type RunFlags struct {
	BaseURL     string
	Scenarios   []string
	Slice       string
	Browsers    []string
	Mode        string
	Retries     int
	NoDiff      bool
	HistoryPath string
}

// NewRunCommand creates the run command: the full capture/diff pipeline.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &RunFlags{Retries: -1}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute the conformance run",
		Long: "Run executes every scheduled (browser x scenario x slice x viewport)\n" +
			"combination sequentially, captures artifacts, compares against baselines,\n" +
			"and writes an incrementally-flushed run manifest.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, rootOpts, flags)
		},
	}

	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "application base URL (overrides OS_E2E_BASE_URL)")
	cmd.Flags().StringSliceVar(&flags.Scenarios, "scenario", nil, "scenario id to run (repeatable; default all)")
	cmd.Flags().StringVar(&flags.Slice, "slice", "", "restrict to a single slice id")
	cmd.Flags().StringSliceVar(&flags.Browsers, "browser", nil, "browser to run on (repeatable)")
	cmd.Flags().StringVar(&flags.Mode, "mode", "", "run mode: validate or capture")
	cmd.Flags().IntVar(&flags.Retries, "retries", -1, "retry budget per slice")
	cmd.Flags().BoolVar(&flags.NoDiff, "no-diff", false, "capture artifacts without baseline comparison")
	cmd.Flags().StringVar(&flags.HistoryPath, "history-db", "", "run-history database path (empty disables indexing)")

	return cmd
}

func runRun(cmd *cobra.Command, rootOpts *RootOptions, flags *RunFlags) error {
	cfg, err := loadRunConfig(flags)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if cfg.BaseURL == "" {
		return NewExitError(ExitCommandError, "base URL is required (OS_E2E_BASE_URL or --base-url)")
	}

	log := rootOpts.Logger(cfg.Verbosity)

	cat, err := loadCatalog(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid scenario catalog", err)
	}
	scenarios, err := selectScenarios(cat, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid scenario selection", err)
	}
	// Every viewport reference must resolve before any browser launches or
	// manifest exists; a dangling id is a configuration error, not a mid-run
	// abort.
	if err := resolveViewports(cat, cfg.ViewportSet, scenarios); err != nil {
		return WrapExitError(ExitCommandError, "invalid viewport reference", err)
	}

	rc := config.NewRunContext(cfg)
	if err := rc.EnsureDirs(); err != nil {
		return WrapExitError(ExitCommandError, "cannot prepare artifact directories", err)
	}

	m := manifest.NewRunManifest(cfg.Profile, string(cfg.Mode), cfg.BaseURL, cfg.ArtifactDir, time.Now())
	rec, err := manifest.NewRecorder(rc, m)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot write run manifest", err)
	}

	mgr := session.NewManager(cfg, log)
	defer mgr.Close()

	// An interrupt aborts before the next combination; the last-flushed
	// manifest stays valid and marked running.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := runner.New(cfg, rc, log,
		runner.ManagerFactory{Manager: mgr},
		capture.NewCapturer(cfg),
		diffing.NewEngine(rc),
		rec)

	log.Info("run: starting",
		"run_id", m.RunID,
		"profile", cfg.Profile,
		"mode", cfg.Mode,
		"browsers", cfg.Browsers,
		"scenarios", len(scenarios))

	status, err := r.Run(ctx, cat, scenarios)
	if err != nil {
		return WrapExitError(ExitFailure, "run aborted", err)
	}

	recordHistory(log, flags.HistoryPath, rec.Manifest(), rc.ManifestPath)

	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	summary := rec.Manifest().Summary
	if rootOpts.Format == "json" {
		if err := out.Success(rec.Manifest()); err != nil {
			return err
		}
	} else {
		if err := out.Success(fmt.Sprintf("status: %s  slices: %d  passed: %d  failed: %d",
			status, summary.SliceCount, summary.Passed, summary.Failed)); err != nil {
			return err
		}
	}

	if status == manifest.StatusFailed {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d slices failed (see %s)", summary.Failed, summary.SliceCount, rc.DigestPath))
	}
	return nil
}

// loadRunConfig builds the configuration from the environment, then applies
// flag overrides and revalidates.
func loadRunConfig(flags *RunFlags) (*config.RunConfig, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	if flags.BaseURL != "" {
		cfg.BaseURL = flags.BaseURL
	}
	if len(flags.Scenarios) > 0 {
		cfg.ScenarioIDs = flags.Scenarios
	}
	if flags.Slice != "" {
		cfg.SliceFilter = flags.Slice
	}
	if len(flags.Browsers) > 0 {
		cfg.Browsers = flags.Browsers
	}
	if flags.Mode != "" {
		cfg.Mode = config.Mode(flags.Mode)
	}
	if flags.Retries >= 0 {
		cfg.Retries = flags.Retries
	}
	if flags.NoDiff {
		cfg.NoDiff = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCatalog(cfg *config.RunConfig) (*registry.Catalog, error) {
	if cfg.CatalogPath != "" {
		return registry.LoadFile(cfg.CatalogPath)
	}
	return registry.Load()
}

// selectScenarios applies the scenario-id and slice filters.
func selectScenarios(cat *registry.Catalog, cfg *config.RunConfig) ([]registry.Scenario, error) {
	scenarios := cat.Scenarios
	if len(cfg.ScenarioIDs) > 0 {
		var err error
		scenarios, err = cat.ScenariosByIDs(cfg.ScenarioIDs)
		if err != nil {
			return nil, err
		}
	}
	if cfg.SliceFilter != "" {
		return registry.FilterSlice(scenarios, cfg.SliceFilter)
	}
	return scenarios, nil
}

// resolveViewports checks every (slice, viewport id) pair against the
// configured viewport set.
func resolveViewports(cat *registry.Catalog, setName string, scenarios []registry.Scenario) error {
	for _, sc := range scenarios {
		for _, sl := range sc.Slices {
			for _, id := range sl.Viewports {
				if _, err := cat.ResolveViewport(setName, id); err != nil {
					return fmt.Errorf("slice %s: %w", sl.ID, err)
				}
			}
		}
	}
	return nil
}

// recordHistory indexes the finished run. History failures are logged, never
// fatal; the manifest on disk is the source of truth.
func recordHistory(log *slog.Logger, path string, m *manifest.RunManifest, manifestPath string) {
	if path == "" {
		return
	}
	store, err := history.Open(path)
	if err != nil {
		log.Warn("run: open history index", "error", err)
		return
	}
	defer store.Close()
	if err := store.RecordRun(context.Background(), m, manifestPath); err != nil {
		log.Warn("run: record history", "error", err)
	}
}
