package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the durable store could not serve the
// request. Flushes that hit it leave their mutations queued for retry;
// it never corrupts in-memory state.
var ErrUnavailable = errors.New("storage unavailable")

// FileRecord is the persisted form of a file, keyed by workspaceID:path.
type FileRecord struct {
	Key         string    `json:"key"`
	WorkspaceID string    `json:"workspace_id"`
	Path        string    `json:"path"`
	Content     []byte    `json:"content"`
	IsBinary    bool      `json:"is_binary"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FolderRecord is the persisted form of a directory. Directories are
// structural, so the record carries no content.
type FolderRecord struct {
	Key         string `json:"key"`
	WorkspaceID string `json:"workspace_id"`
	Path        string `json:"path"`
}

// CompositeKey builds the workspaceID:path key that scopes records per
// workspace.
func CompositeKey(workspaceID, path string) string {
	return workspaceID + ":" + path
}

// Store is the durable key-value port backing workspace filesystems.
// Every call may fail with an error wrapping ErrUnavailable. GetFile
// returns (nil, nil) when no record exists for the key.
//
// StoreFile is an upsert that preserves the original creation time when
// a prior record exists for the same key.
type Store interface {
	StoreFile(ctx context.Context, workspaceID, path string, content []byte, isBinary bool) error
	GetFile(ctx context.Context, workspaceID, path string) (*FileRecord, error)
	DeleteFile(ctx context.Context, workspaceID, path string) error
	GetAllFilesForWorkspace(ctx context.Context, workspaceID string) (map[string]FileRecord, error)

	StoreFolder(ctx context.Context, workspaceID, path string) error
	DeleteFolder(ctx context.Context, workspaceID, path string) error
	GetAllFoldersForWorkspace(ctx context.Context, workspaceID string) (map[string]struct{}, error)

	// DeleteWorkspaceData removes every file and folder record for the
	// workspace, atomically from the caller's perspective.
	DeleteWorkspaceData(ctx context.Context, workspaceID string) error
}
