package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justinrayshort/os-sub001/internal/config"
	"github.com/justinrayshort/os-sub001/internal/registry"
)

// catalogListing is the JSON shape of `list --format json`.
type catalogListing struct {
	Scenarios    []scenarioListing     `json:"scenarios"`
	ViewportSets map[string]int        `json:"viewport_sets"`
	Viewports    map[string][]viewport `json:"viewports,omitempty"`
}

type scenarioListing struct {
	ID     string         `json:"id"`
	Family string         `json:"family,omitempty"`
	Slices []sliceListing `json:"slices"`
}

type sliceListing struct {
	ID               string   `json:"id"`
	BaselineEligible bool     `json:"baseline_eligible"`
	DiffStrategy     string   `json:"diff_strategy,omitempty"`
	Viewports        []string `json:"viewports"`
}

type viewport struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// NewListCommand creates the list command: it prints the scenario catalog
// the run command would execute, without launching a browser.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered scenarios, slices, and viewport sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalogPath(catalogPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid scenario catalog", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.Success(buildListing(cat))
			}
			return out.Success(renderListing(cat))
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "scenario catalog path (default: embedded catalog)")
	return cmd
}

func loadCatalogPath(path string) (*registry.Catalog, error) {
	if path != "" {
		return registry.LoadFile(path)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return loadCatalog(cfg)
}

func buildListing(cat *registry.Catalog) catalogListing {
	listing := catalogListing{
		ViewportSets: make(map[string]int, len(cat.ViewportSets)),
		Viewports:    make(map[string][]viewport, len(cat.ViewportSets)),
	}
	for name, vps := range cat.ViewportSets {
		listing.ViewportSets[name] = len(vps)
		for _, vp := range vps {
			listing.Viewports[name] = append(listing.Viewports[name], viewport{ID: vp.ID, Width: vp.Width, Height: vp.Height})
		}
	}
	for _, sc := range cat.Scenarios {
		sl := scenarioListing{ID: sc.ID, Family: sc.Family}
		for _, s := range sc.Slices {
			sl.Slices = append(sl.Slices, sliceListing{
				ID:               s.ID,
				BaselineEligible: s.BaselineEligible,
				DiffStrategy:     string(s.DiffStrategy),
				Viewports:        s.Viewports,
			})
		}
		listing.Scenarios = append(listing.Scenarios, sl)
	}
	return listing
}

func renderListing(cat *registry.Catalog) string {
	var b strings.Builder
	for _, sc := range cat.Scenarios {
		fmt.Fprintf(&b, "%s", sc.ID)
		if sc.Family != "" {
			fmt.Fprintf(&b, " (family: %s)", sc.Family)
		}
		b.WriteString("\n")
		for _, s := range sc.Slices {
			eligible := "baseline"
			if !s.BaselineEligible {
				eligible = "assert-only"
			}
			strategy := string(s.EffectiveStrategy(""))
			if strategy == "" {
				strategy = "run default"
			}
			fmt.Fprintf(&b, "  %s  [%s, strategy: %s, viewports: %s]\n",
				s.ID, eligible, strategy, strings.Join(s.Viewports, ","))
		}
	}

	names := make([]string, 0, len(cat.ViewportSets))
	for name := range cat.ViewportSets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "viewport set %s:", name)
		for _, vp := range cat.ViewportSets[name] {
			fmt.Fprintf(&b, " %s=%dx%d", vp.ID, vp.Width, vp.Height)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
