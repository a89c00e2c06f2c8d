package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/justinrayshort/os-sub001/internal/config"
)

// doctorCheck is one environment probe: what was checked, whether it is
// usable, and how to fix it when it is not.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

type doctorReport struct {
	OK     bool          `json:"ok"`
	Checks []doctorCheck `json:"checks"`
}

// NewDoctorCommand creates the doctor command: it probes the environment a
// run would need (browsers, catalog, artifact and baseline directories)
// without launching anything.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the environment can execute a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := runDoctor()

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				if err := out.Success(report); err != nil {
					return err
				}
			} else {
				if err := out.Success(renderDoctor(report)); err != nil {
					return err
				}
			}

			if !report.OK {
				return NewExitError(ExitFailure, "environment checks failed")
			}
			return nil
		},
	}
}

func runDoctor() doctorReport {
	var report doctorReport
	report.OK = true

	add := func(c doctorCheck) {
		if !c.OK {
			report.OK = false
		}
		report.Checks = append(report.Checks, c)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		add(doctorCheck{Name: "configuration", OK: false, Detail: err.Error()})
		return report
	}
	add(doctorCheck{Name: "configuration", OK: true,
		Detail: fmt.Sprintf("profile %q, mode %q", cfg.Profile, cfg.Mode)})

	add(checkCatalog(cfg))
	for _, browser := range cfg.Browsers {
		add(checkBrowser(browser))
	}
	add(checkWritableDir("artifact dir", cfg.ArtifactDir))
	add(checkBaselineRoot(cfg))

	return report
}

func checkCatalog(cfg *config.RunConfig) doctorCheck {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return doctorCheck{Name: "scenario catalog", Detail: err.Error()}
	}
	slices := 0
	for _, sc := range cat.Scenarios {
		slices += len(sc.Slices)
	}
	return doctorCheck{Name: "scenario catalog", OK: true,
		Detail: fmt.Sprintf("%d scenarios, %d slices", len(cat.Scenarios), slices)}
}

func checkBrowser(name string) doctorCheck {
	check := doctorCheck{Name: "browser " + name}
	switch name {
	case "chromium":
		// The launcher downloads a managed Chromium on first run, so the
		// binary may legitimately not exist yet.
		check.OK = true
		check.Detail = "managed download (fetched on first launch)"
	case "chrome":
		path, ok := launcher.LookPath()
		if !ok {
			check.Detail = "no local Chrome installation found"
			break
		}
		check.OK = true
		check.Detail = path
	default:
		check.Detail = "unsupported browser"
	}
	return check
}

func checkWritableDir(name, dir string) doctorCheck {
	check := doctorCheck{Name: name, Detail: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		check.Detail = err.Error()
		return check
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		check.Detail = fmt.Sprintf("%s: not writable: %v", dir, err)
		return check
	}
	probe.Close()
	os.Remove(probe.Name())
	check.OK = true
	return check
}

func checkBaselineRoot(cfg *config.RunConfig) doctorCheck {
	check := doctorCheck{Name: "baseline root", Detail: cfg.BaselineRoot}
	info, err := os.Stat(cfg.BaselineRoot)
	switch {
	case os.IsNotExist(err):
		// Missing baselines fail diff-eligible slices but never abort the
		// run, so this is a warning-grade detail rather than a failure.
		check.OK = true
		check.Detail = fmt.Sprintf("%s: absent (eligible slices will report missing baselines)", cfg.BaselineRoot)
	case err != nil:
		check.Detail = err.Error()
	case !info.IsDir():
		check.Detail = fmt.Sprintf("%s: not a directory", cfg.BaselineRoot)
	default:
		check.OK = true
		check.Detail = filepath.Clean(cfg.BaselineRoot)
	}
	return check
}

func renderDoctor(report doctorReport) string {
	var b strings.Builder
	for _, c := range report.Checks {
		mark := "ok"
		if !c.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "[%4s] %-18s %s\n", mark, c.Name, c.Detail)
	}
	if report.OK {
		b.WriteString("environment looks good")
	} else {
		b.WriteString("one or more checks failed")
	}
	return b.String()
}
