package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store used for tests and ephemeral workspaces.
// It honors the same contract as the durable implementations, including
// creation-time preservation on upsert.
type Memory struct {
	mu      sync.RWMutex
	files   map[string]FileRecord
	folders map[string]FolderRecord
	clock   func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		files:   make(map[string]FileRecord),
		folders: make(map[string]FolderRecord),
		clock:   time.Now,
	}
}

// WithClock overrides the timestamp source for deterministic tests.
func (m *Memory) WithClock(clock func() time.Time) *Memory {
	m.clock = clock
	return m
}

// StoreFile upserts a file record, preserving the original creation
// time when the key already exists.
func (m *Memory) StoreFile(ctx context.Context, workspaceID, path string, content []byte, isBinary bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := CompositeKey(workspaceID, path)
	now := m.clock()
	createdAt := now
	if prior, ok := m.files[key]; ok {
		createdAt = prior.CreatedAt
	}
	m.files[key] = FileRecord{
		Key:         key,
		WorkspaceID: workspaceID,
		Path:        path,
		Content:     append([]byte(nil), content...),
		IsBinary:    isBinary,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
	return nil
}

// GetFile returns the record for the key, or nil when absent.
func (m *Memory) GetFile(ctx context.Context, workspaceID, path string) (*FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.files[CompositeKey(workspaceID, path)]
	if !ok {
		return nil, nil
	}
	out := rec
	out.Content = append([]byte(nil), rec.Content...)
	return &out, nil
}

// DeleteFile removes a file record. Deleting an absent key is a no-op.
func (m *Memory) DeleteFile(ctx context.Context, workspaceID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, CompositeKey(workspaceID, path))
	return nil
}

// GetAllFilesForWorkspace returns every file record for the workspace,
// keyed by path.
func (m *Memory) GetAllFilesForWorkspace(ctx context.Context, workspaceID string) (map[string]FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]FileRecord)
	for _, rec := range m.files {
		if rec.WorkspaceID == workspaceID {
			cp := rec
			cp.Content = append([]byte(nil), rec.Content...)
			out[rec.Path] = cp
		}
	}
	return out, nil
}

// StoreFolder upserts a folder record.
func (m *Memory) StoreFolder(ctx context.Context, workspaceID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := CompositeKey(workspaceID, path)
	m.folders[key] = FolderRecord{Key: key, WorkspaceID: workspaceID, Path: path}
	return nil
}

// DeleteFolder removes a folder record. Deleting an absent key is a no-op.
func (m *Memory) DeleteFolder(ctx context.Context, workspaceID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.folders, CompositeKey(workspaceID, path))
	return nil
}

// GetAllFoldersForWorkspace returns the set of folder paths for the
// workspace.
func (m *Memory) GetAllFoldersForWorkspace(ctx context.Context, workspaceID string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]struct{})
	for _, rec := range m.folders {
		if rec.WorkspaceID == workspaceID {
			out[rec.Path] = struct{}{}
		}
	}
	return out, nil
}

// DeleteWorkspaceData removes every record for the workspace.
func (m *Memory) DeleteWorkspaceData(ctx context.Context, workspaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, rec := range m.files {
		if rec.WorkspaceID == workspaceID {
			delete(m.files, key)
		}
	}
	for key, rec := range m.folders {
		if rec.WorkspaceID == workspaceID {
			delete(m.folders, key)
		}
	}
	return nil
}
