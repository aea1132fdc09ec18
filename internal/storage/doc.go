// Package storage defines the durable record store behind workspace
// filesystems: flat file and folder records addressed by composite
// workspaceID:path keys, with in-memory and bbolt implementations.
package storage
