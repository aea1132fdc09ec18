package vfs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob returns every node path matching the doublestar pattern, sorted
// ascending for deterministic results. Patterns are matched against
// workspace-absolute paths with the leading slash stripped, so both
// "src/**/*.lua" and "/src/**/*.lua" describe the same set.
func (fs *FileSystem) Glob(pattern string) ([]string, error) {
	trimmed := strings.TrimPrefix(pattern, "/")
	if !doublestar.ValidatePattern(trimmed) {
		return nil, fmt.Errorf("%w: invalid glob pattern %q", ErrInvalidPath, pattern)
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.state != StateReady {
		return nil, ErrNotReady
	}

	var matches []string
	for _, p := range fs.tree.Paths() {
		if p == Root {
			continue
		}
		ok, err := doublestar.Match(trimmed, strings.TrimPrefix(p, "/"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		if ok {
			matches = append(matches, p)
		}
	}
	sort.Strings(matches)
	return matches, nil
}
