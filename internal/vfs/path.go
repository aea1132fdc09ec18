package vfs

import (
	"fmt"
	"strings"
)

// Root is the top of every workspace tree. It always exists and is never
// deleted.
const Root = "/"

// Resolve normalizes input against currentDir and returns an absolute
// path beginning with "/". Inputs starting with "/" are absolute; all
// others are resolved relative to currentDir, which must itself be a
// normalized absolute path. "." segments are dropped, ".." pops the last
// accumulated segment, and trailing slashes are stripped except for the
// root itself. Popping past the root fails with ErrInvalidPath rather
// than silently clamping.
func Resolve(currentDir, input string) (string, error) {
	var segments []string
	if !strings.HasPrefix(input, "/") {
		for _, seg := range strings.Split(currentDir, "/") {
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}

	for _, seg := range strings.Split(input, "/") {
		switch seg {
		case "", ".":
			// no-op
		case "..":
			if len(segments) == 0 {
				return "", fmt.Errorf("%w: %q escapes the workspace root", ErrInvalidPath, input)
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}

	if len(segments) == 0 {
		return Root, nil
	}
	return "/" + strings.Join(segments, "/"), nil
}

// Parent returns the parent directory of a normalized absolute path.
// The parent of the root is the root.
func Parent(path string) string {
	if path == Root {
		return Root
	}
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return Root
	}
	return path[:idx]
}

// Base returns the final segment of a normalized absolute path.
func Base(path string) string {
	if path == Root {
		return Root
	}
	return path[strings.LastIndex(path, "/")+1:]
}

// Join appends name under dir, both assumed normalized.
func Join(dir, name string) string {
	if dir == Root {
		return Root + name
	}
	return dir + "/" + name
}
