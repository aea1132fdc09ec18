package vfs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codehaven/backend/internal/infrastructure/logging"
	"github.com/codehaven/backend/internal/infrastructure/monitoring"
	"github.com/codehaven/backend/internal/storage"
)

// State tracks the facade lifecycle. Initialize is the only transition
// out of StateUninitialized.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
)

// EventKind identifies a filesystem change notification.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventWritten EventKind = "written"
	EventDeleted EventKind = "deleted"
	EventCopied  EventKind = "copied"
)

// Event is a change notification emitted after a successful mutation.
// Batch-mode silent writes suppress events; everything else about the
// mutation (invariant checks, journaling) is identical.
type Event struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
	Type NodeType  `json:"type"`
}

// Notifier receives change events. It is called outside the facade
// lock and must not call back into the facade synchronously.
type Notifier func(Event)

// Stats summarizes facade state for health endpoints.
type Stats struct {
	WorkspaceID      string `json:"workspace_id"`
	State            State  `json:"state"`
	Nodes            int    `json:"nodes"`
	PendingMutations int    `json:"pending_mutations"`
}

// FileSystem is the synchronous workspace filesystem facade. Reads and
// writes hit the in-memory tree immediately; every mutation is also
// appended to the journal and persisted on the next Flush. The tree is
// immediately consistent, the durable store eventually consistent.
type FileSystem struct {
	workspaceID string
	store       storage.Store
	logger      *logging.Logger
	metrics     *monitoring.Metrics
	notify      Notifier
	clock       func() time.Time

	mu      sync.RWMutex
	tree    *Tree
	journal *Journal
	cwd     string
	state   State

	// flushMu makes Flush single-flight; concurrent callers queue up
	// instead of racing the journal bookkeeping.
	flushMu sync.Mutex
}

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithLogger attaches a logger.
func WithLogger(logger *logging.Logger) Option {
	return func(fs *FileSystem) { fs.logger = logger }
}

// WithMetrics attaches metrics collection.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(fs *FileSystem) { fs.metrics = metrics }
}

// WithNotifier attaches a change-event sink.
func WithNotifier(notify Notifier) Option {
	return func(fs *FileSystem) { fs.notify = notify }
}

// WithClock overrides the timestamp source for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(fs *FileSystem) { fs.clock = clock }
}

// New creates an uninitialized facade for a workspace. Initialize must
// be called before any other operation.
func New(workspaceID string, store storage.Store, opts ...Option) *FileSystem {
	fs := &FileSystem{
		workspaceID: workspaceID,
		store:       store,
		logger:      logging.NewDefault(),
		clock:       time.Now,
		journal:     NewJournal(),
		cwd:         Root,
		state:       StateUninitialized,
	}
	for _, opt := range opts {
		opt(fs)
	}
	fs.tree = NewTree().WithClock(fs.clock)
	return fs
}

// WorkspaceID returns the workspace this facade belongs to.
func (fs *FileSystem) WorkspaceID() string {
	return fs.workspaceID
}

// Initialize restores the tree from the durable store. Calling it on a
// ready facade is a no-op. Corrupt or unreadable storage degrades to an
// empty tree rather than failing: the user must still be able to work
// in a fresh workspace.
func (fs *FileSystem) Initialize(ctx context.Context) error {
	fs.mu.Lock()
	switch fs.state {
	case StateReady:
		fs.mu.Unlock()
		return nil
	case StateInitializing:
		fs.mu.Unlock()
		return fmt.Errorf("%w: initialize already in progress", ErrNotReady)
	}
	fs.state = StateInitializing
	fs.mu.Unlock()

	tree := NewTree().WithClock(fs.clock)

	folders, foldersErr := fs.store.GetAllFoldersForWorkspace(ctx, fs.workspaceID)
	files, filesErr := fs.store.GetAllFilesForWorkspace(ctx, fs.workspaceID)
	if foldersErr != nil || filesErr != nil {
		fs.logger.Warn("workspace restore failed, starting with empty tree",
			zap.String("workspace_id", fs.workspaceID),
			zap.NamedError("folders_error", foldersErr),
			zap.NamedError("files_error", filesErr),
		)
	} else {
		restoreTree(tree, folders, files)
	}

	fs.mu.Lock()
	fs.tree = tree
	fs.cwd = Root
	fs.state = StateReady
	fs.mu.Unlock()

	fs.logger.Info("workspace initialized",
		zap.String("workspace_id", fs.workspaceID),
		zap.Int("nodes", tree.Len()),
	)
	return nil
}

// restoreTree rebuilds a tree from persisted records. Folder records go
// in shallowest-first so parent chains exist; records with paths that do
// not normalize are skipped rather than poisoning the restore.
func restoreTree(tree *Tree, folders map[string]struct{}, files map[string]storage.FileRecord) {
	paths := make([]string, 0, len(folders))
	for p := range folders {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if normalized, err := Resolve(Root, p); err == nil {
			tree.restoreDirectory(normalized)
		}
	}

	filePaths := make([]string, 0, len(files))
	for p := range files {
		filePaths = append(filePaths, p)
	}
	sort.Strings(filePaths)
	for _, p := range filePaths {
		rec := files[p]
		normalized, err := Resolve(Root, p)
		if err != nil || normalized == Root {
			continue
		}
		tree.restoreFile(normalized, rec.Content, rec.IsBinary, rec.CreatedAt, rec.UpdatedAt)
	}
}

// State returns the current lifecycle state.
func (fs *FileSystem) State() State {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.state
}

// resolve normalizes input against the current directory. Callers must
// hold at least the read lock.
func (fs *FileSystem) resolveLocked(input string) (string, error) {
	return Resolve(fs.cwd, input)
}

// Exists reports whether any node occupies the path.
func (fs *FileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	resolved, err := fs.resolveLocked(path)
	if err != nil || fs.state != StateReady {
		return false
	}
	return fs.tree.Exists(resolved)
}

// IsDirectory reports whether the path is an existing directory.
func (fs *FileSystem) IsDirectory(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	resolved, err := fs.resolveLocked(path)
	if err != nil || fs.state != StateReady {
		return false
	}
	return fs.tree.IsDirectory(resolved)
}

// IsFile reports whether the path is an existing file.
func (fs *FileSystem) IsFile(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	resolved, err := fs.resolveLocked(path)
	if err != nil || fs.state != StateReady {
		return false
	}
	return fs.tree.IsFile(resolved)
}

// IsBinaryFile classifies the path by extension. This is a pure path
// classification; it does not consult the tree.
func (fs *FileSystem) IsBinaryFile(path string) bool {
	return IsBinaryPath(path)
}

// GetCurrentDirectory returns the current directory used for relative
// path resolution.
func (fs *FileSystem) GetCurrentDirectory() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.cwd
}

// SetCurrentDirectory changes the current directory. The target must
// exist and be a directory.
func (fs *FileSystem) SetCurrentDirectory(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.state != StateReady {
		return ErrNotReady
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		return err
	}
	if !fs.tree.IsDirectory(resolved) {
		return fmt.Errorf("%w: %s", ErrNotFound, resolved)
	}
	fs.cwd = resolved
	return nil
}

// ListDirectory returns the direct children of a directory, name-sorted
// ascending.
func (fs *FileSystem) ListDirectory(path string) ([]Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.state != StateReady {
		return nil, ErrNotReady
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		return nil, err
	}
	return fs.tree.ListDirectory(resolved)
}

// Stat returns metadata for the node at path.
func (fs *FileSystem) Stat(path string) (FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.state != StateReady {
		return FileInfo{}, ErrNotReady
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		return FileInfo{}, err
	}
	return fs.tree.Stat(resolved)
}

// Manifest returns metadata for every node in the tree, path-sorted,
// root excluded. Archive export and sync diffing iterate it.
func (fs *FileSystem) Manifest() []FileInfo {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.state != StateReady {
		return nil
	}
	var out []FileInfo
	for _, p := range fs.tree.Paths() {
		if p == Root {
			continue
		}
		if info, err := fs.tree.Stat(p); err == nil {
			out = append(out, info)
		}
	}
	return out
}

// ReadFile returns the text content of a file.
func (fs *FileSystem) ReadFile(path string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.state != StateReady {
		return "", ErrNotReady
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		return "", err
	}
	return fs.tree.ReadFile(resolved)
}

// ReadBinaryFile returns the raw bytes of a file, or nil when the path
// does not exist. Missing paths are not an error here: preview callers
// probe many candidates and treat nil as absent.
func (fs *FileSystem) ReadBinaryFile(path string) []byte {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.state != StateReady {
		return nil
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		return nil
	}
	return fs.tree.ReadBinary(resolved)
}

// WriteFile creates or overwrites a text file and queues it for
// persistence.
func (fs *FileSystem) WriteFile(path, content string) error {
	return fs.writeFile(path, []byte(content), false, true)
}

// WriteBinaryFile creates or overwrites a binary file and queues it for
// persistence.
func (fs *FileSystem) WriteBinaryFile(path string, data []byte) error {
	return fs.writeFile(path, data, true, true)
}

// CreateFileSilent writes a text file without emitting a change event.
// Bulk upload flows use it with CommitBatch so a large folder costs one
// flush instead of one per file. Structural invariants still apply.
func (fs *FileSystem) CreateFileSilent(path, content string) error {
	return fs.writeFile(path, []byte(content), false, false)
}

// WriteBinaryFileSilent writes a binary file without emitting a change
// event.
func (fs *FileSystem) WriteBinaryFileSilent(path string, data []byte) error {
	return fs.writeFile(path, data, true, false)
}

func (fs *FileSystem) writeFile(path string, content []byte, isBinary, emit bool) error {
	fs.mu.Lock()
	if fs.state != StateReady {
		fs.mu.Unlock()
		return ErrNotReady
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		fs.mu.Unlock()
		return err
	}
	existed := fs.tree.Exists(resolved)
	if err := fs.tree.WriteFile(resolved, content, isBinary); err != nil {
		fs.mu.Unlock()
		fs.recordOp("write", err)
		return err
	}
	// Overwrites keep the kind fixed at creation; journal what the tree
	// actually holds so restore sees the same classification.
	effective := isBinary
	if info, err := fs.tree.Stat(resolved); err == nil {
		effective = info.IsBinary
	}
	fs.journal.Append(Mutation{
		Kind:     OpPutFile,
		Path:     resolved,
		Content:  append([]byte(nil), content...),
		IsBinary: effective,
	})
	pending := fs.journal.Len()
	fs.mu.Unlock()

	fs.recordOp("write", nil)
	fs.setPending(pending)
	if emit {
		kind := EventCreated
		if existed {
			kind = EventWritten
		}
		fs.emit(Event{Kind: kind, Path: resolved, Type: NodeFile})
	}
	return nil
}

// CreateDirectory creates an empty directory and queues it for
// persistence.
func (fs *FileSystem) CreateDirectory(path string) error {
	return fs.createDirectory(path, true)
}

// CreateFolderSilent creates a directory without emitting a change
// event.
func (fs *FileSystem) CreateFolderSilent(path string) error {
	return fs.createDirectory(path, false)
}

func (fs *FileSystem) createDirectory(path string, emit bool) error {
	fs.mu.Lock()
	if fs.state != StateReady {
		fs.mu.Unlock()
		return ErrNotReady
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		fs.mu.Unlock()
		return err
	}
	if err := fs.tree.CreateDirectory(resolved); err != nil {
		fs.mu.Unlock()
		fs.recordOp("mkdir", err)
		return err
	}
	fs.journal.Append(Mutation{Kind: OpPutFolder, Path: resolved})
	pending := fs.journal.Len()
	fs.mu.Unlock()

	fs.recordOp("mkdir", nil)
	fs.setPending(pending)
	if emit {
		fs.emit(Event{Kind: EventCreated, Path: resolved, Type: NodeDirectory})
	}
	return nil
}

// Delete removes a file or an empty directory and queues the removal
// for persistence.
func (fs *FileSystem) Delete(path string) error {
	fs.mu.Lock()
	if fs.state != StateReady {
		fs.mu.Unlock()
		return ErrNotReady
	}
	resolved, err := fs.resolveLocked(path)
	if err != nil {
		fs.mu.Unlock()
		return err
	}
	info, err := fs.tree.Stat(resolved)
	if err != nil {
		fs.mu.Unlock()
		fs.recordOp("delete", err)
		return err
	}
	if err := fs.tree.Delete(resolved); err != nil {
		fs.mu.Unlock()
		fs.recordOp("delete", err)
		return err
	}
	kind := OpDeleteFile
	if info.Type == NodeDirectory {
		kind = OpDeleteFolder
	}
	fs.journal.Append(Mutation{Kind: kind, Path: resolved})
	pending := fs.journal.Len()
	fs.mu.Unlock()

	fs.recordOp("delete", nil)
	fs.setPending(pending)
	fs.emit(Event{Kind: EventDeleted, Path: resolved, Type: info.Type})
	return nil
}

// CopyFile recursively copies the source node into targetDir. Every
// created node is queued for persistence; the source keeps its own
// timestamps and content.
func (fs *FileSystem) CopyFile(sourcePath, targetDir string) error {
	fs.mu.Lock()
	if fs.state != StateReady {
		fs.mu.Unlock()
		return ErrNotReady
	}
	source, err := fs.resolveLocked(sourcePath)
	if err != nil {
		fs.mu.Unlock()
		return err
	}
	target, err := fs.resolveLocked(targetDir)
	if err != nil {
		fs.mu.Unlock()
		return err
	}
	created, err := fs.tree.Copy(source, target)
	if err != nil {
		fs.mu.Unlock()
		fs.recordOp("copy", err)
		return err
	}
	for _, p := range created {
		info, statErr := fs.tree.Stat(p)
		if statErr != nil {
			continue
		}
		if info.Type == NodeDirectory {
			fs.journal.Append(Mutation{Kind: OpPutFolder, Path: p})
		} else {
			fs.journal.Append(Mutation{
				Kind:     OpPutFile,
				Path:     p,
				Content:  fs.tree.ReadBinary(p),
				IsBinary: info.IsBinary,
			})
		}
	}
	pending := fs.journal.Len()
	root := created[0]
	rootInfo, _ := fs.tree.Stat(root)
	fs.mu.Unlock()

	fs.recordOp("copy", nil)
	fs.setPending(pending)
	fs.emit(Event{Kind: EventCopied, Path: root, Type: rootInfo.Type})
	return nil
}

// Flush drains the pending mutation journal into the durable store, one
// storage call per mutation, in order. Only mutations that persisted are
// cleared: on partial failure the failed mutation and everything behind
// it stay queued for the next attempt (at-least-once, not transactional).
// Flush is single-flight; concurrent callers serialize.
func (fs *FileSystem) Flush(ctx context.Context) error {
	fs.flushMu.Lock()
	defer fs.flushMu.Unlock()

	fs.mu.RLock()
	if fs.state != StateReady {
		fs.mu.RUnlock()
		return ErrNotReady
	}
	pending := fs.journal.Snapshot()
	fs.mu.RUnlock()

	start := fs.clock()
	acked := 0
	var flushErr error
	for _, m := range pending {
		var err error
		switch m.Kind {
		case OpPutFile:
			err = fs.store.StoreFile(ctx, fs.workspaceID, m.Path, m.Content, m.IsBinary)
		case OpPutFolder:
			err = fs.store.StoreFolder(ctx, fs.workspaceID, m.Path)
		case OpDeleteFile:
			err = fs.store.DeleteFile(ctx, fs.workspaceID, m.Path)
		case OpDeleteFolder:
			err = fs.store.DeleteFolder(ctx, fs.workspaceID, m.Path)
		}
		if err != nil {
			flushErr = fmt.Errorf("flush %s %s: %w", m.Kind, m.Path, err)
			break
		}
		acked++
	}

	fs.mu.Lock()
	fs.journal.Ack(acked)
	remaining := fs.journal.Len()
	fs.mu.Unlock()

	if fs.metrics != nil {
		fs.metrics.RecordFlush(fs.clock().Sub(start), acked, flushErr)
	}
	fs.setPending(remaining)
	if flushErr != nil {
		fs.logger.Warn("flush incomplete, mutations remain queued",
			zap.String("workspace_id", fs.workspaceID),
			zap.Int("persisted", acked),
			zap.Int("queued", remaining),
			zap.Error(flushErr),
		)
	}
	return flushErr
}

// CommitBatch flushes everything accumulated by silent batch writes in
// one logical flush.
func (fs *FileSystem) CommitBatch(ctx context.Context) error {
	return fs.Flush(ctx)
}

// Pending returns the number of queued mutations.
func (fs *FileSystem) Pending() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.journal.Len()
}

// Stats returns facade statistics for health reporting.
func (fs *FileSystem) Stats() Stats {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	nodes := 0
	if fs.tree != nil {
		nodes = fs.tree.Len()
	}
	return Stats{
		WorkspaceID:      fs.workspaceID,
		State:            fs.state,
		Nodes:            nodes,
		PendingMutations: fs.journal.Len(),
	}
}

func (fs *FileSystem) emit(event Event) {
	if fs.notify != nil {
		fs.notify(event)
	}
}

func (fs *FileSystem) recordOp(op string, err error) {
	if fs.metrics != nil {
		fs.metrics.RecordVFSOp(op, err)
	}
}

func (fs *FileSystem) setPending(n int) {
	if fs.metrics != nil {
		fs.metrics.SetPendingMutations(fs.workspaceID, n)
	}
}
