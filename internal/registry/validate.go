package registry

import "fmt"

// validateCatalog enforces the structural invariants the CUE schema cannot
// express: registry-wide slice id uniqueness, per-kind action fields, and
// non-empty setup routines.
func validateCatalog(c *Catalog) error {
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}
	if len(c.ViewportSets) == 0 {
		return fmt.Errorf("at least one viewport set is required")
	}

	for name, set := range c.ViewportSets {
		seen := make(map[string]bool, len(set))
		for _, vp := range set {
			if seen[vp.ID] {
				return fmt.Errorf("viewport set %q: duplicate viewport %q", name, vp.ID)
			}
			seen[vp.ID] = true
		}
	}

	scenarioIDs := make(map[string]bool, len(c.Scenarios))
	// Artifact file paths are keyed by slice id, so uniqueness is enforced
	// across the whole registry, not per scenario.
	sliceOwner := make(map[string]string)

	for _, s := range c.Scenarios {
		if scenarioIDs[s.ID] {
			return fmt.Errorf("duplicate scenario id %q", s.ID)
		}
		scenarioIDs[s.ID] = true

		if len(s.Slices) == 0 {
			return fmt.Errorf("scenario %q: at least one slice is required", s.ID)
		}

		for _, sl := range s.Slices {
			if owner, dup := sliceOwner[sl.ID]; dup {
				return fmt.Errorf("slice id %q in scenario %q already defined in scenario %q", sl.ID, s.ID, owner)
			}
			sliceOwner[sl.ID] = s.ID

			if err := validateSlice(&sl); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSlice(sl *Slice) error {
	if len(sl.Setup) == 0 {
		return fmt.Errorf("slice %q: setup routine must not be empty", sl.ID)
	}
	if len(sl.Viewports) == 0 {
		return fmt.Errorf("slice %q: at least one viewport is required", sl.ID)
	}

	seen := make(map[string]bool, len(sl.Viewports))
	for _, vp := range sl.Viewports {
		if seen[vp] {
			return fmt.Errorf("slice %q: duplicate viewport %q", sl.ID, vp)
		}
		seen[vp] = true
	}

	for i, action := range sl.Setup {
		if err := validateAction(&action); err != nil {
			return fmt.Errorf("slice %q: setup[%d]: %w", sl.ID, i, err)
		}
	}

	for i, a := range sl.Assertions {
		switch a.Kind {
		case AssertSelectorPresence, AssertTextPresence:
			if a.Target == "" {
				return fmt.Errorf("slice %q: assertions[%d]: target is required", sl.ID, i)
			}
		default:
			return fmt.Errorf("slice %q: assertions[%d]: unknown kind %q", sl.ID, i, a.Kind)
		}
	}

	switch sl.DiffStrategy {
	case "", DiffNone, DiffDOM, DiffHybrid:
	default:
		return fmt.Errorf("slice %q: unknown diff strategy %q", sl.ID, sl.DiffStrategy)
	}

	return nil
}

// validateAction checks the per-kind required fields of a setup action.
func validateAction(a *SetupAction) error {
	switch a.Kind {
	case ActionNavigate:
		if a.Path == "" {
			return fmt.Errorf("navigate: path is required")
		}
	case ActionSetStorageKey:
		if a.Key == "" {
			return fmt.Errorf("set-storage-key: key is required")
		}
	case ActionClick:
		if a.Selector == "" {
			return fmt.Errorf("click: selector is required")
		}
	case ActionKeypress:
		if a.Key == "" {
			return fmt.Errorf("keypress: key is required")
		}
	case ActionWaitForSelector:
		if a.Selector == "" {
			return fmt.Errorf("wait-for-selector: selector is required")
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}
