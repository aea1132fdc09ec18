package vfs

import "time"

// NodeType distinguishes the two node variants in a tree.
type NodeType string

const (
	// NodeFile is a leaf carrying content.
	NodeFile NodeType = "file"
	// NodeDirectory is a structural node; its existence is set membership,
	// it carries no content blob.
	NodeDirectory NodeType = "directory"
)

// Entry is one child in a directory listing.
type Entry struct {
	Name string   `json:"name"`
	Path string   `json:"path"`
	Type NodeType `json:"type"`
}

// FileInfo describes a node for callers that need metadata without
// content (HTTP listings, archive export, tests).
type FileInfo struct {
	Path      string    `json:"path"`
	Type      NodeType  `json:"type"`
	Size      int64     `json:"size"`
	IsBinary  bool      `json:"is_binary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// node is the in-memory representation shared by files and directories.
// Directories keep nil content; files own their content slice exclusively.
type node struct {
	nodeType  NodeType
	content   []byte
	isBinary  bool
	createdAt time.Time
	updatedAt time.Time
}

func (n *node) isDir() bool {
	return n.nodeType == NodeDirectory
}

func (n *node) info(path string) FileInfo {
	return FileInfo{
		Path:      path,
		Type:      n.nodeType,
		Size:      int64(len(n.content)),
		IsBinary:  n.isBinary,
		CreatedAt: n.createdAt,
		UpdatedAt: n.updatedAt,
	}
}
