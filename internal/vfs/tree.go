package vfs

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Tree is the in-memory directory tree: a map from normalized absolute
// path to node. All paths reaching this layer are pre-resolved; Tree
// enforces the structural invariants (root always present, parent must
// exist, unique paths, empty-directory deletes) and nothing else.
//
// Tree is not safe for concurrent use; the facade serializes access.
type Tree struct {
	nodes map[string]*node
	clock func() time.Time
}

// NewTree creates a tree containing only the root directory.
func NewTree() *Tree {
	t := &Tree{
		nodes: make(map[string]*node),
		clock: time.Now,
	}
	now := t.clock()
	t.nodes[Root] = &node{nodeType: NodeDirectory, createdAt: now, updatedAt: now}
	return t
}

// WithClock overrides the timestamp source. Used by tests for
// deterministic metadata.
func (t *Tree) WithClock(clock func() time.Time) *Tree {
	t.clock = clock
	return t
}

// Exists reports whether any node occupies the path.
func (t *Tree) Exists(path string) bool {
	_, ok := t.nodes[path]
	return ok
}

// IsDirectory reports whether the path is an existing directory.
func (t *Tree) IsDirectory(path string) bool {
	n, ok := t.nodes[path]
	return ok && n.isDir()
}

// IsFile reports whether the path is an existing file.
func (t *Tree) IsFile(path string) bool {
	n, ok := t.nodes[path]
	return ok && !n.isDir()
}

// Stat returns metadata for the node at path.
func (t *Tree) Stat(path string) (FileInfo, error) {
	n, ok := t.nodes[path]
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return n.info(path), nil
}

// CreateDirectory creates an empty directory. The parent must already
// exist and be a directory; the path must be vacant.
func (t *Tree) CreateDirectory(path string) error {
	if t.Exists(path) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	if !t.IsDirectory(Parent(path)) {
		return fmt.Errorf("%w: %s", ErrParentNotFound, path)
	}
	now := t.clock()
	t.nodes[path] = &node{nodeType: NodeDirectory, createdAt: now, updatedAt: now}
	return nil
}

// WriteFile creates or overwrites a file. Overwrites preserve createdAt
// and the content kind fixed at creation; updatedAt advances on every
// successful write. The content slice is copied so the tree owns it.
func (t *Tree) WriteFile(path string, content []byte, isBinary bool) error {
	if existing, ok := t.nodes[path]; ok {
		if existing.isDir() {
			return fmt.Errorf("%w: %s", ErrCannotWriteDirectory, path)
		}
		existing.content = append([]byte(nil), content...)
		existing.updatedAt = t.clock()
		return nil
	}
	if !t.IsDirectory(Parent(path)) {
		return fmt.Errorf("%w: %s", ErrParentNotFound, path)
	}
	now := t.clock()
	t.nodes[path] = &node{
		nodeType:  NodeFile,
		content:   append([]byte(nil), content...),
		isBinary:  isBinary,
		createdAt: now,
		updatedAt: now,
	}
	return nil
}

// ReadFile returns the text content of a file. Binary files cannot be
// read through this operation.
func (t *Tree) ReadFile(path string) (string, error) {
	n, ok := t.nodes[path]
	if !ok || n.isDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if n.isBinary {
		return "", fmt.Errorf("%w: %s", ErrBinaryReadAsText, path)
	}
	return string(n.content), nil
}

// ReadBinary returns the raw bytes of a file, re-encoding text content
// on demand. A missing path yields nil rather than an error: preview
// callers probe many candidate paths defensively.
func (t *Tree) ReadBinary(path string) []byte {
	n, ok := t.nodes[path]
	if !ok || n.isDir() {
		return nil
	}
	return append([]byte(nil), n.content...)
}

// Delete removes a node. Files delete unconditionally; a directory must
// have no direct or transitive children. The root is never deleted.
func (t *Tree) Delete(path string) error {
	if path == Root {
		return fmt.Errorf("%w: cannot delete root", ErrInvalidPath)
	}
	n, ok := t.nodes[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if n.isDir() {
		prefix := path + "/"
		for p := range t.nodes {
			if strings.HasPrefix(p, prefix) {
				return fmt.Errorf("%w: %s", ErrDirectoryNotEmpty, path)
			}
		}
	}
	delete(t.nodes, path)
	return nil
}

// ListDirectory returns the direct children of a directory, name-sorted
// ascending (case-sensitive ordinal) so listings are deterministic.
func (t *Tree) ListDirectory(path string) ([]Entry, error) {
	if !t.IsDirectory(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	prefix := path + "/"
	if path == Root {
		prefix = Root
	}

	entries := []Entry{}
	for p, n := range t.nodes {
		if p == Root || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if strings.Contains(rest, "/") {
			continue // deeper descendant, not a direct child
		}
		entries = append(entries, Entry{Name: rest, Path: p, Type: n.nodeType})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Copy duplicates the node at source under targetDir/basename(source).
// Directories recurse into every descendant. The copy owns independent
// content and gets fresh timestamps; the source is left untouched.
// Returns the normalized paths created, parents before children.
func (t *Tree) Copy(source, targetDir string) ([]string, error) {
	src, ok := t.nodes[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, source)
	}
	if !t.IsDirectory(targetDir) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, targetDir)
	}

	dest := Join(targetDir, Base(source))
	// A destination inside the source subtree would recurse into the
	// nodes being created and never terminate.
	if dest == source || strings.HasPrefix(dest, source+"/") {
		return nil, fmt.Errorf("%w: cannot copy %s into itself", ErrInvalidPath, source)
	}
	if t.Exists(dest) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, dest)
	}

	if !src.isDir() {
		if err := t.WriteFile(dest, src.content, src.isBinary); err != nil {
			return nil, err
		}
		return []string{dest}, nil
	}

	created := []string{dest}
	if err := t.CreateDirectory(dest); err != nil {
		return nil, err
	}
	children, err := t.ListDirectory(source)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		sub, err := t.Copy(child.Path, dest)
		if err != nil {
			return nil, err
		}
		created = append(created, sub...)
	}
	return created, nil
}

// Paths returns every node path in the tree, sorted ascending. The root
// is included.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.nodes))
	for p := range t.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// restoreFile installs a file with persisted metadata during workspace
// restore, creating any missing parent directories. Restore trusts the
// durable store's timestamps instead of minting new ones.
func (t *Tree) restoreFile(path string, content []byte, isBinary bool, createdAt, updatedAt time.Time) {
	t.restoreDirectory(Parent(path))
	t.nodes[path] = &node{
		nodeType:  NodeFile,
		content:   append([]byte(nil), content...),
		isBinary:  isBinary,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// restoreDirectory ensures the directory and its ancestor chain exist.
func (t *Tree) restoreDirectory(path string) {
	if path == Root {
		return
	}
	if n, ok := t.nodes[path]; ok && n.isDir() {
		return
	}
	t.restoreDirectory(Parent(path))
	now := t.clock()
	t.nodes[path] = &node{nodeType: NodeDirectory, createdAt: now, updatedAt: now}
}
