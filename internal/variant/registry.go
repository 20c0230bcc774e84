package variant

import (
	"fmt"
	"strings"
)

// Known merges the built-in variants with custom ones loaded from dir (if
// set). Custom variants may not reuse a built-in name.
func Known(dir string) ([]Variant, error) {
	out := Builtin()
	if strings.TrimSpace(dir) == "" {
		return out, nil
	}

	custom, err := LoadFromDir(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(out)+len(custom))
	for _, v := range out {
		seen[v.Name] = struct{}{}
	}
	for _, v := range custom {
		name := strings.TrimSpace(v.Name)
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("variant: duplicate variant name %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// Resolve expands the requested names against the known variants. The
// selector "all" expands to every known variant; otherwise order and
// duplicates follow the request.
func Resolve(names []string, known []Variant) ([]Variant, error) {
	byName := make(map[string]Variant, len(known))
	for _, v := range known {
		byName[v.Name] = v
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("variant: no variants requested")
	}

	var out []Variant
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if name == All {
			out = append(out, known...)
			continue
		}
		v, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("variant: unknown variant %q", name)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("variant: no variants requested")
	}
	return out, nil
}
