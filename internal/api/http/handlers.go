package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codehaven/backend/internal/archive"
	"github.com/codehaven/backend/internal/infrastructure/logging"
	"github.com/codehaven/backend/internal/storage"
	"github.com/codehaven/backend/internal/vfs"
	"github.com/codehaven/backend/internal/workspace"
)

// Handlers contains all HTTP handlers for the workspace filesystem API.
type Handlers struct {
	workspaces *workspace.Manager
	logger     *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(workspaces *workspace.Manager, logger *logging.Logger) *Handlers {
	return &Handlers{workspaces: workspaces, logger: logger}
}

// WriteFileRequest is the body for text and binary file writes. Binary
// payloads arrive base64-encoded in Data.
type WriteFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
	Data    []byte `json:"data"`
	Binary  bool   `json:"binary"`
}

// PathRequest is the body for operations addressed by a single path.
type PathRequest struct {
	Path string `json:"path" binding:"required"`
}

// CopyRequest is the body for recursive copies.
type CopyRequest struct {
	Source    string `json:"source" binding:"required"`
	TargetDir string `json:"target_dir" binding:"required"`
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "CodeHaven Workspace Service",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"workspaces": h.workspaces.Stats(),
	})
}

// CreateWorkspace mints a new workspace and opens it.
func (h *Handlers) CreateWorkspace(c *gin.Context) {
	id := workspace.NewID()
	fs, err := h.workspaces.Open(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workspace_id": id, "stats": fs.Stats()})
}

// ListWorkspaces lists open workspaces.
func (h *Handlers) ListWorkspaces(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workspaces": h.workspaces.List(),
		"stats":      h.workspaces.Stats(),
	})
}

// CloseWorkspace flushes and closes a workspace.
func (h *Handlers) CloseWorkspace(c *gin.Context) {
	id := c.Param("id")
	if err := h.workspaces.Close(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true, "workspace_id": id})
}

// TeardownWorkspace deletes a workspace and all its durable records.
func (h *Handlers) TeardownWorkspace(c *gin.Context) {
	id := c.Param("id")
	if err := h.workspaces.Teardown(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "workspace_id": id})
}

// ListEntries lists the direct children of a directory.
func (h *Handlers) ListEntries(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	path := c.DefaultQuery("path", vfs.Root)
	entries, err := fs.ListDirectory(path)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path, "entries": entries})
}

// ReadFile returns file content. Text files come back as a string;
// binary files come back base64-encoded with binary set.
func (h *Handlers) ReadFile(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path parameter required"})
		return
	}

	content, err := fs.ReadFile(path)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"path": path, "content": content, "binary": false})
		return
	}
	if !errors.Is(err, vfs.ErrBinaryReadAsText) {
		h.fail(c, err)
		return
	}

	data := fs.ReadBinaryFile(path)
	c.JSON(http.StatusOK, gin.H{"path": path, "data": data, "binary": true})
}

// DownloadFile streams raw file bytes with a sniffed Content-Type, for
// previews and asset URLs.
func (h *Handlers) DownloadFile(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	path := c.Query("path")
	data := fs.ReadBinaryFile(path)
	if data == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("path not found: %s", path)})
		return
	}
	c.Data(http.StatusOK, mimetype.Detect(data).String(), data)
}

// WriteFile creates or overwrites a file, then flushes the journal so
// the durable mirror stays close behind interactive edits.
func (h *Handlers) WriteFile(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	var req WriteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	if req.Binary {
		err = fs.WriteBinaryFile(req.Path, req.Data)
	} else {
		err = fs.WriteFile(req.Path, req.Content)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := fs.Flush(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"written": true, "path": req.Path})
}

// CreateDirectory creates an empty directory.
func (h *Handlers) CreateDirectory(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := fs.CreateDirectory(req.Path); err != nil {
		h.fail(c, err)
		return
	}
	if err := fs.Flush(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": true, "path": req.Path})
}

// DeleteEntry deletes a file or empty directory.
func (h *Handlers) DeleteEntry(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path parameter required"})
		return
	}
	if err := fs.Delete(path); err != nil {
		h.fail(c, err)
		return
	}
	if err := fs.Flush(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "path": path})
}

// CopyEntry recursively copies a file or directory into a target
// directory.
func (h *Handlers) CopyEntry(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	var req CopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := fs.CopyFile(req.Source, req.TargetDir); err != nil {
		h.fail(c, err)
		return
	}
	if err := fs.Flush(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"copied": true, "source": req.Source, "target_dir": req.TargetDir})
}

// Search returns paths matching a glob pattern.
func (h *Handlers) Search(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern parameter required"})
		return
	}
	matches, err := fs.Glob(pattern)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pattern": pattern, "matches": matches, "count": len(matches)})
}

// Flush drains the workspace journal into the durable store.
func (h *Handlers) Flush(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	if err := fs.Flush(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flushed": true, "pending": fs.Pending()})
}

// SetCurrentDirectory changes the directory relative paths resolve
// against.
func (h *Handlers) SetCurrentDirectory(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := fs.SetCurrentDirectory(req.Path); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_directory": fs.GetCurrentDirectory()})
}

// Export streams the workspace as a gzip-compressed tar archive.
func (h *Handlers) Export(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	filename := fmt.Sprintf("workspace-%s-%s.tar.gz", c.Param("id"), archive.Timestamp(time.Now()))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/gzip")
	if err := archive.Export(fs, c.Writer); err != nil {
		h.logger.Error("workspace export failed",
			zap.String("workspace_id", c.Param("id")),
			zap.Error(err),
		)
	}
}

// Import reads a gzip-compressed tar archive from the request body into
// the workspace via batch mode, committing once at the end.
func (h *Handlers) Import(c *gin.Context) {
	fs, ok := h.open(c)
	if !ok {
		return
	}
	targetDir := c.DefaultQuery("target", vfs.Root)
	if err := archive.Import(c.Request.Context(), fs, c.Request.Body, targetDir); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": true, "target": targetDir, "stats": fs.Stats()})
}

// open fetches the workspace filesystem for the route, opening it on
// first use. Replies with an error response and returns false on
// failure.
func (h *Handlers) open(c *gin.Context) (*vfs.FileSystem, bool) {
	fs, err := h.workspaces.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return fs, true
}

// fail maps domain error kinds to HTTP status codes.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vfs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vfs.ErrAlreadyExists), errors.Is(err, vfs.ErrDirectoryNotEmpty):
		status = http.StatusConflict
	case errors.Is(err, vfs.ErrInvalidPath),
		errors.Is(err, vfs.ErrParentNotFound),
		errors.Is(err, vfs.ErrCannotWriteDirectory),
		errors.Is(err, vfs.ErrBinaryReadAsText):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrUnavailable), errors.Is(err, vfs.ErrNotReady):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
