package diffing

import (
	"encoding/json"
	"fmt"
	"sort"
)

// maxDiffEntries caps the divergence list per artifact. Past this point the
// artifacts are simply different; more paths add noise, not signal.
const maxDiffEntries = 50

// structuralDiff reports the JSON paths where two canonical documents
// diverge. Both inputs are canonical bytes, so parse errors only happen on
// corrupt baselines and yield a single opaque entry.
func structuralDiff(baseline, actual []byte) []string {
	var a, b any
	if err := json.Unmarshal(baseline, &a); err != nil {
		return []string{"baseline is not valid JSON"}
	}
	if err := json.Unmarshal(actual, &b); err != nil {
		return []string{"captured artifact is not valid JSON"}
	}

	var out []string
	diffValues("$", a, b, &out)
	return out
}

func diffValues(path string, a, b any, out *[]string) {
	if len(*out) >= maxDiffEntries {
		return
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			add(out, "%s: type changed", path)
			return
		}
		for _, k := range unionKeys(av, bv) {
			ak, aok := av[k]
			bk, bok := bv[k]
			sub := path + "." + k
			switch {
			case !aok:
				add(out, "%s: added", sub)
			case !bok:
				add(out, "%s: removed", sub)
			default:
				diffValues(sub, ak, bk, out)
			}
		}
	case []any:
		bv, ok := b.([]any)
		if !ok {
			add(out, "%s: type changed", path)
			return
		}
		if len(av) != len(bv) {
			add(out, "%s: length %d -> %d", path, len(av), len(bv))
		}
		n := min(len(av), len(bv))
		for i := 0; i < n; i++ {
			diffValues(fmt.Sprintf("%s[%d]", path, i), av[i], bv[i], out)
		}
	default:
		if a != b {
			add(out, "%s: %v -> %v", path, a, b)
		}
	}
}

func add(out *[]string, format string, args ...any) {
	if len(*out) < maxDiffEntries {
		*out = append(*out, fmt.Sprintf(format, args...))
	}
}

func unionKeys(a, b map[string]any) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
