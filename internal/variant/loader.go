package variant

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads one variant definition from a YAML file.
func LoadFromFile(path string) (*Variant, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("variant: read %q: %w", path, err)
	}

	var v Variant
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("variant: parse %q: %w", path, err)
	}
	if strings.TrimSpace(v.Name) == "" {
		return nil, fmt.Errorf("variant: %q: missing name", path)
	}
	if strings.TrimSpace(v.System) == "" {
		return nil, fmt.Errorf("variant: %q: missing system text", path)
	}
	return &v, nil
}

// LoadFromDir loads all variant definitions from a directory.
func LoadFromDir(dir string) ([]Variant, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("variant: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	out := make([]Variant, 0, len(paths))
	for _, path := range paths {
		v, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
