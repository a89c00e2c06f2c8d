// Package config collects the harness's environment-style configuration into
// an explicit value constructed once at process start and read-only
// thereafter. No component reads environment variables at module load.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode selects whether a run compares against baselines or only captures.
type Mode string

const (
	// ModeValidate captures artifacts and compares them against baselines.
	ModeValidate Mode = "validate"

	// ModeCapture captures artifacts without consulting the baseline store.
	ModeCapture Mode = "capture"
)

// TracePolicy controls when a session trace is persisted.
type TracePolicy string

const (
	TraceOff       TracePolicy = "off"
	TraceOnFailure TracePolicy = "on-failure"
	TraceOn        TracePolicy = "on"
)

// Known browser ids. The automation layer is CDP-based, so only
// Chromium-family browsers are supported; anything else is rejected up front
// rather than silently skipped.
var SupportedBrowsers = []string{"chromium", "chrome"}

// RunConfig is the full configuration surface of one harness run.
type RunConfig struct {
	Profile      string
	BaseURL      string
	ArtifactDir  string
	BaselineRoot string
	ManifestPath string
	CatalogPath  string // empty = embedded default catalog

	ScenarioIDs []string // empty = every catalog scenario
	SliceFilter string   // empty = all slices
	Browsers    []string

	Headless    bool
	TracePolicy TracePolicy
	Retries     int
	SlowMo      time.Duration
	Mode        Mode
	ViewportSet string
	Verbosity   int

	CaptureDOM     bool
	CaptureA11y    bool
	CaptureLayout  bool
	CaptureConsole bool
	CaptureNetwork bool

	// DiffStrategy is the run-level strategy ("none", "dom", "hybrid");
	// per-slice overrides win.
	DiffStrategy string
	NoDiff       bool
}

// FromEnv builds a RunConfig from OS_E2E_* environment variables.
// Unset variables take documented defaults; malformed or unknown enum values
// are configuration errors.
func FromEnv() (*RunConfig, error) {
	cfg := &RunConfig{
		Profile:        envOr("OS_E2E_PROFILE", "local"),
		BaseURL:        os.Getenv("OS_E2E_BASE_URL"),
		ArtifactDir:    envOr("OS_E2E_ARTIFACT_DIR", "e2e-artifacts"),
		BaselineRoot:   envOr("OS_E2E_BASELINE_ROOT", "e2e-baselines"),
		ManifestPath:   os.Getenv("OS_E2E_MANIFEST_PATH"),
		CatalogPath:    os.Getenv("OS_E2E_CATALOG"),
		ScenarioIDs:    splitCSV(os.Getenv("OS_E2E_SCENARIO_IDS")),
		SliceFilter:    os.Getenv("OS_E2E_SLICE"),
		Browsers:       splitCSV(envOr("OS_E2E_BROWSERS", "chromium")),
		TracePolicy:    TracePolicy(envOr("OS_E2E_TRACE", string(TraceOff))),
		Mode:           Mode(envOr("OS_E2E_MODE", string(ModeValidate))),
		ViewportSet:    envOr("OS_E2E_VIEWPORT_SET", "default"),
		DiffStrategy:   envOr("OS_E2E_DIFF_STRATEGY", "hybrid"),
	}

	var err error
	if cfg.Headless, err = envBool("OS_E2E_HEADLESS", true); err != nil {
		return nil, err
	}
	if cfg.Retries, err = envInt("OS_E2E_RETRIES", 0); err != nil {
		return nil, err
	}
	slowMoMS, err := envInt("OS_E2E_SLOWMO_MS", 0)
	if err != nil {
		return nil, err
	}
	cfg.SlowMo = time.Duration(slowMoMS) * time.Millisecond
	if cfg.Verbosity, err = envInt("OS_E2E_VERBOSITY", 0); err != nil {
		return nil, err
	}

	if cfg.CaptureDOM, err = envBool("OS_E2E_CAPTURE_DOM", true); err != nil {
		return nil, err
	}
	if cfg.CaptureA11y, err = envBool("OS_E2E_CAPTURE_A11Y", true); err != nil {
		return nil, err
	}
	if cfg.CaptureLayout, err = envBool("OS_E2E_CAPTURE_LAYOUT", true); err != nil {
		return nil, err
	}
	if cfg.CaptureConsole, err = envBool("OS_E2E_CAPTURE_CONSOLE", true); err != nil {
		return nil, err
	}
	if cfg.CaptureNetwork, err = envBool("OS_E2E_CAPTURE_NETWORK", false); err != nil {
		return nil, err
	}
	if cfg.NoDiff, err = envBool("OS_E2E_NO_DIFF", false); err != nil {
		return nil, err
	}

	if cfg.ManifestPath == "" {
		cfg.ManifestPath = cfg.ArtifactDir + "/manifest.json"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enum fields and value ranges.
func (c *RunConfig) Validate() error {
	switch c.Mode {
	case ModeValidate, ModeCapture:
	default:
		return fmt.Errorf("config: unknown mode %q (want validate or capture)", c.Mode)
	}

	switch c.TracePolicy {
	case TraceOff, TraceOnFailure, TraceOn:
	default:
		return fmt.Errorf("config: unknown trace policy %q (want off, on-failure, or on)", c.TracePolicy)
	}

	switch c.DiffStrategy {
	case "none", "dom", "hybrid":
	default:
		return fmt.Errorf("config: unknown diff strategy %q (want none, dom, or hybrid)", c.DiffStrategy)
	}

	if c.Retries < 0 {
		return fmt.Errorf("config: retries must be non-negative, got %d", c.Retries)
	}
	if c.SlowMo < 0 {
		return fmt.Errorf("config: slow-motion delay must be non-negative")
	}
	if len(c.Browsers) == 0 {
		return fmt.Errorf("config: at least one browser is required")
	}
	for _, b := range c.Browsers {
		if !supportedBrowser(b) {
			return fmt.Errorf("config: unsupported browser %q (supported: %s)",
				b, strings.Join(SupportedBrowsers, ", "))
		}
	}
	return nil
}

// DiffingDisabled reports whether the run should bypass the diff engine
// entirely: pure-capture mode or the explicit no-diff flag.
func (c *RunConfig) DiffingDisabled() bool {
	return c.Mode == ModeCapture || c.NoDiff
}

func supportedBrowser(name string) bool {
	for _, b := range SupportedBrowsers {
		if b == name {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: invalid boolean %q", key, v)
	}
	return b, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid integer %q", key, v)
	}
	return n, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
