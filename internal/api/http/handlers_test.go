package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codehaven/backend/internal/infrastructure/logging"
	"github.com/codehaven/backend/internal/storage"
	"github.com/codehaven/backend/internal/workspace"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := workspace.NewManager(storage.NewMemory(), logging.NewNop())
	h := NewHandlers(manager, logging.NewNop())

	r := gin.New()
	r.GET("/health", h.Health)
	r.POST("/workspaces", h.CreateWorkspace)
	r.GET("/workspaces", h.ListWorkspaces)
	r.DELETE("/workspaces/:id", h.TeardownWorkspace)
	r.POST("/workspaces/:id/flush", h.Flush)
	r.GET("/workspaces/:id/entries", h.ListEntries)
	r.GET("/workspaces/:id/file", h.ReadFile)
	r.GET("/workspaces/:id/file/raw", h.DownloadFile)
	r.PUT("/workspaces/:id/file", h.WriteFile)
	r.POST("/workspaces/:id/directories", h.CreateDirectory)
	r.DELETE("/workspaces/:id/entries", h.DeleteEntry)
	r.POST("/workspaces/:id/copy", h.CopyEntry)
	r.GET("/workspaces/:id/search", h.Search)
	r.PUT("/workspaces/:id/cwd", h.SetCurrentDirectory)
	r.GET("/workspaces/:id/export", h.Export)
	r.POST("/workspaces/:id/import", h.Import)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createWorkspace(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/workspaces", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		WorkspaceID string `json:"workspace_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.WorkspaceID)
	return resp.WorkspaceID
}

func TestCreateAndListWorkspaces(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	w := doJSON(t, r, http.MethodGet, "/workspaces", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id)
}

func TestWriteAndReadFile(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	w := doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/file", WriteFileRequest{
		Path:    "/main.lua",
		Content: "print('hi')",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/file?path=/main.lua", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Content string `json:"content"`
		Binary  bool   `json:"binary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "print('hi')", resp.Content)
	assert.False(t, resp.Binary)
}

func TestWriteBinaryFile(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	w := doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/file", WriteFileRequest{
		Path:   "/logo.png",
		Data:   []byte{0x89, 0x50, 0x4E, 0x47},
		Binary: true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Binary reads come back base64-encoded with the binary flag set.
	w = doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/file?path=/logo.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data   []byte `json:"data"`
		Binary bool   `json:"binary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Binary)
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, resp.Data)

	// The raw endpoint serves the bytes directly.
	w = doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/file/raw?path=/logo.png", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{0x89, 0x50, 0x4E, 0x47}, w.Body.Bytes())
}

func TestErrorStatusMapping(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	// Missing file reads 404.
	w := doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/file?path=/missing.lua", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Orphan writes 400.
	w = doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/file", WriteFileRequest{
		Path:    "/nowhere/main.lua",
		Content: "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Duplicate directories 409.
	w = doJSON(t, r, http.MethodPost, "/workspaces/"+id+"/directories", PathRequest{Path: "/src"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, r, http.MethodPost, "/workspaces/"+id+"/directories", PathRequest{Path: "/src"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Path escaping the root 400.
	w = doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/file?path=/../etc/passwd", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Invalid workspace IDs are rejected before touching storage.
	w = doJSON(t, r, http.MethodGet, "/workspaces/bad:id/entries", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDeleteEntry(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	doJSON(t, r, http.MethodPost, "/workspaces/"+id+"/directories", PathRequest{Path: "/src"})
	doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/file", WriteFileRequest{Path: "/src/a.lua", Content: "x"})

	// Non-empty directory deletes conflict.
	w := doJSON(t, r, http.MethodDelete, "/workspaces/"+id+"/entries?path=/src", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/workspaces/"+id+"/entries?path=/src/a.lua", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodDelete, "/workspaces/"+id+"/entries?path=/src", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListEntries(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	doJSON(t, r, http.MethodPost, "/workspaces/"+id+"/directories", PathRequest{Path: "/src"})
	doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/file", WriteFileRequest{Path: "/a.lua", Content: "x"})

	w := doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/entries", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "a.lua", resp.Entries[0].Name)
	assert.Equal(t, "src", resp.Entries[1].Name)
}

func TestCopyAndSearch(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	doJSON(t, r, http.MethodPost, "/workspaces/"+id+"/directories", PathRequest{Path: "/backup"})
	doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/file", WriteFileRequest{Path: "/main.lua", Content: "x"})

	w := doJSON(t, r, http.MethodPost, "/workspaces/"+id+"/copy", CopyRequest{
		Source:    "/main.lua",
		TargetDir: "/backup",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/search?pattern=**/*.lua", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Matches []string `json:"matches"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Contains(t, resp.Matches, "/backup/main.lua")
}

func TestExportImportOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	source := createWorkspace(t, r)

	doJSON(t, r, http.MethodPut, "/workspaces/"+source+"/file", WriteFileRequest{Path: "/main.lua", Content: "x"})

	w := doJSON(t, r, http.MethodGet, "/workspaces/"+source+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/gzip", w.Header().Get("Content-Type"))
	archive := w.Body.Bytes()
	require.NotEmpty(t, archive)

	target := createWorkspace(t, r)
	req := httptest.NewRequest(http.MethodPost, "/workspaces/"+target+"/import", bytes.NewReader(archive))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/workspaces/"+target+"/file?path=/main.lua", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetCurrentDirectory(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	doJSON(t, r, http.MethodPost, "/workspaces/"+id+"/directories", PathRequest{Path: "/src"})

	w := doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/cwd", PathRequest{Path: "/src"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/src")

	w = doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/cwd", PathRequest{Path: "/missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeardownWorkspace(t *testing.T) {
	r := newTestRouter(t)
	id := createWorkspace(t, r)

	doJSON(t, r, http.MethodPut, "/workspaces/"+id+"/file", WriteFileRequest{Path: "/a.lua", Content: "x"})

	w := doJSON(t, r, http.MethodDelete, "/workspaces/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Reopening yields an empty workspace.
	w = doJSON(t, r, http.MethodGet, "/workspaces/"+id+"/file?path=/a.lua", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
