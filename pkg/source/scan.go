package source

import (
	"os"
	"path/filepath"
	"sort"
)

// Scan lists regular files directly under dir whose base names match the
// include patterns and none of the exclude patterns. An empty include list
// matches everything. Patterns use filepath.Match syntax; results are sorted
// for stable watch ordering.
func Scan(dir string, include, exclude []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &SourceError{Path: dir, Op: "readdir", Err: err}
	}
	var out []string
	for _, ent := range entries {
		if !ent.Type().IsRegular() {
			continue
		}
		name := ent.Name()
		if !matchAny(include, name, true) {
			continue
		}
		if matchAny(exclude, name, false) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// ValidatePatterns reports the first malformed glob in the given patterns.
// Called from config validation so pattern errors surface at startup.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := filepath.Match(p, "probe"); err != nil {
			return err
		}
	}
	return nil
}

func matchAny(patterns []string, name string, emptyMatches bool) bool {
	if len(patterns) == 0 {
		return emptyMatches
	}
	for _, p := range patterns {
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
