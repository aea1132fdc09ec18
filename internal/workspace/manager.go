package workspace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codehaven/backend/internal/infrastructure/logging"
	"github.com/codehaven/backend/internal/infrastructure/monitoring"
	"github.com/codehaven/backend/internal/storage"
	"github.com/codehaven/backend/internal/vfs"
)

// Manager owns the open workspace filesystems. Opening a workspace
// restores it from the durable store; closing flushes its journal and
// discards the in-memory tree. One facade exists per workspace ID.
type Manager struct {
	mu         sync.RWMutex
	workspaces map[string]*vfs.FileSystem // Protected by mu

	store   storage.Store
	logger  *logging.Logger
	metrics *monitoring.Metrics
	bus     *Bus
}

// NewManager creates a workspace manager over the given durable store.
func NewManager(store storage.Store, logger *logging.Logger) *Manager {
	return &Manager{
		workspaces: make(map[string]*vfs.FileSystem),
		store:      store,
		logger:     logger,
		bus:        NewBus(),
	}
}

// WithMetrics adds metrics tracking to the manager and the filesystems
// it opens.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Bus returns the change-event bus for subscription by stream handlers.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// NewID mints a fresh workspace identifier.
func NewID() string {
	return uuid.New().String()
}

// ValidateID rejects identifiers that would break composite storage
// keys or URL routing.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("workspace ID cannot be empty")
	}
	if strings.ContainsAny(id, ":/") {
		return fmt.Errorf("workspace ID cannot contain ':' or '/'")
	}
	return nil
}

// Open returns the filesystem for a workspace, restoring it from the
// durable store on first use. Subsequent opens return the cached
// instance.
func (m *Manager) Open(ctx context.Context, id string) (*vfs.FileSystem, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	fs, ok := m.workspaces[id]
	m.mu.RUnlock()
	if ok {
		return fs, nil
	}

	m.mu.Lock()
	if fs, ok := m.workspaces[id]; ok {
		m.mu.Unlock()
		return fs, nil
	}

	opts := []vfs.Option{
		vfs.WithLogger(m.logger),
		vfs.WithNotifier(func(event vfs.Event) {
			m.bus.Publish(id, event)
		}),
	}
	if m.metrics != nil {
		opts = append(opts, vfs.WithMetrics(m.metrics))
	}
	fs = vfs.New(id, m.store, opts...)
	m.workspaces[id] = fs
	open := len(m.workspaces)
	m.mu.Unlock()

	if err := fs.Initialize(ctx); err != nil {
		m.mu.Lock()
		delete(m.workspaces, id)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to initialize workspace %s: %w", id, err)
	}

	if m.metrics != nil {
		m.metrics.SetWorkspacesOpen(open)
		m.metrics.IncWorkspacesRestored()
	}
	m.logger.Info("workspace opened", zap.String("workspace_id", id))
	return fs, nil
}

// Get returns an already-open workspace filesystem.
func (m *Manager) Get(id string) (*vfs.FileSystem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fs, ok := m.workspaces[id]
	return fs, ok
}

// Close flushes a workspace and discards its in-memory tree. Only the
// flushed deltas survive; the tree is rebuilt on the next Open.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	fs, ok := m.workspaces[id]
	if ok {
		delete(m.workspaces, id)
	}
	open := len(m.workspaces)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if m.metrics != nil {
		m.metrics.SetWorkspacesOpen(open)
	}
	if err := fs.Flush(ctx); err != nil {
		return fmt.Errorf("failed to flush workspace %s on close: %w", id, err)
	}
	m.logger.Info("workspace closed", zap.String("workspace_id", id))
	return nil
}

// Teardown closes a workspace and deletes every durable record it owns.
func (m *Manager) Teardown(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.workspaces, id)
	open := len(m.workspaces)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetWorkspacesOpen(open)
	}
	if err := m.store.DeleteWorkspaceData(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workspace %s data: %w", id, err)
	}
	m.logger.Info("workspace torn down", zap.String("workspace_id", id))
	return nil
}

// List returns the IDs of open workspaces, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FlushAll flushes every open workspace. Used on shutdown; the first
// error is returned after all flushes were attempted.
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.RLock()
	open := make([]*vfs.FileSystem, 0, len(m.workspaces))
	for _, fs := range m.workspaces {
		open = append(open, fs)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, fs := range open {
		if err := fs.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns manager statistics for health reporting.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pending := 0
	for _, fs := range m.workspaces {
		pending += fs.Pending()
	}
	return map[string]interface{}{
		"open_workspaces":   len(m.workspaces),
		"pending_mutations": pending,
	}
}
