// Package vfs implements the per-workspace virtual filesystem: an
// in-memory directory tree with POSIX-like path semantics, fronted by a
// synchronous facade and mirrored to a durable store through an ordered
// mutation journal.
//
// Layering, leaves first:
//
//   - path.go: path resolution (absolute/relative, "."/"..", root clamp)
//   - binary.go: extension-based text/binary classification table
//   - tree.go: the node map and its structural invariants
//   - journal.go: the pending-mutation log drained by Flush
//   - vfs.go: the FileSystem facade consumed by the rest of the backend
//
// Reads and writes are synchronous against the tree; Initialize and
// Flush are the only operations that touch the durable store.
package vfs
