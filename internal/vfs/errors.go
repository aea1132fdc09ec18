package vfs

import "errors"

// Error kinds surfaced by path resolution, tree operations and the facade.
// Callers match with errors.Is; the returned errors wrap these sentinels
// and carry the offending path in their message.
var (
	// ErrInvalidPath means a path resolution would escape the workspace root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrParentNotFound means the parent of the target path does not exist
	// or is not a directory.
	ErrParentNotFound = errors.New("parent directory not found")

	// ErrAlreadyExists means a file or directory already occupies the path.
	ErrAlreadyExists = errors.New("path already exists")

	// ErrNotFound means no node exists at the path.
	ErrNotFound = errors.New("path not found")

	// ErrDirectoryNotEmpty means a directory still has descendants and
	// cannot be deleted.
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrCannotWriteDirectory means a file write targeted a directory path.
	ErrCannotWriteDirectory = errors.New("cannot write file over directory")

	// ErrBinaryReadAsText means a text read targeted a binary file.
	ErrBinaryReadAsText = errors.New("binary file cannot be read as text")

	// ErrNotReady means the filesystem has not been initialized yet.
	ErrNotReady = errors.New("filesystem not initialized")
)
