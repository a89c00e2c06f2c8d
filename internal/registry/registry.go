// Package registry holds the scenario catalog: scenarios, slices, setup
// routines, assertions, and named viewport sets.
//
// The catalog is pure data. It is loaded from YAML (an embedded default or an
// external file), validated against a CUE schema, then structurally checked
// in Go. Lookup operations never mutate the catalog.
package registry

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

//go:embed schema.cue
var catalogSchemaCUE string

// Load parses and validates the embedded default catalog.
func Load() (*Catalog, error) {
	return parse(defaultCatalogYAML)
}

// LoadFile parses and validates a catalog from an external YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read catalog: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var catalog Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos)
	if err := decoder.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("registry: parse catalog: %w", err)
	}

	if err := validateCatalog(&catalog); err != nil {
		return nil, fmt.Errorf("registry: invalid catalog: %w", err)
	}
	return &catalog, nil
}

// validateSchema unifies the raw catalog document with the embedded CUE
// schema. Schema violations (wrong enum values, negative dimensions, missing
// required fields) are caught here before any Go-side decoding.
func validateSchema(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("registry: parse catalog: %w", err)
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(catalogSchemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("registry: compile schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Catalog"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("registry: schema lookup: %w", err)
	}

	unified := def.Unify(cctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("registry: catalog schema: %w", err)
	}
	return nil
}

// ScenariosByIDs returns the scenarios matching ids, in the order requested.
// An unknown scenario id is a hard configuration error.
func (c *Catalog) ScenariosByIDs(ids []string) ([]Scenario, error) {
	byID := make(map[string]Scenario, len(c.Scenarios))
	for _, s := range c.Scenarios {
		byID[s.ID] = s
	}

	out := make([]Scenario, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("registry: unsupported scenario %q", id)
		}
		out = append(out, s)
	}
	return out, nil
}

// FilterSlice restricts scenarios to exactly the slice with the given id.
// Scenarios without the slice are dropped; if no scenario contains it the
// filter is an "unsupported slice" error.
func FilterSlice(scenarios []Scenario, sliceID string) ([]Scenario, error) {
	var out []Scenario
	for _, s := range scenarios {
		for _, sl := range s.Slices {
			if sl.ID == sliceID {
				filtered := s
				filtered.Slices = []Slice{sl}
				out = append(out, filtered)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("registry: unsupported slice %q", sliceID)
	}
	return out, nil
}

// ViewportSet returns the named viewport set.
func (c *Catalog) ViewportSet(name string) ([]Viewport, error) {
	set, ok := c.ViewportSets[name]
	if !ok {
		return nil, fmt.Errorf("registry: unknown viewport set %q", name)
	}
	return set, nil
}

// ResolveViewport resolves a viewport id within one explicit named set.
// There is deliberately no cross-set scanning: an id unknown to the
// configured set is a hard configuration error even if another set
// defines it.
func (c *Catalog) ResolveViewport(setName, id string) (Viewport, error) {
	set, err := c.ViewportSet(setName)
	if err != nil {
		return Viewport{}, err
	}
	for _, vp := range set {
		if vp.ID == id {
			return vp, nil
		}
	}
	return Viewport{}, fmt.Errorf("registry: unknown viewport %q in set %q", id, setName)
}

// EffectiveStrategy returns the diff strategy for a slice given the run-level
// strategy, honoring the per-slice override.
func (s *Slice) EffectiveStrategy(runStrategy DiffStrategy) DiffStrategy {
	if s.DiffStrategy != "" {
		return s.DiffStrategy
	}
	return runStrategy
}
