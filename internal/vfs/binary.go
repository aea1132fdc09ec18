package vfs

import (
	"path"
	"strings"
)

// ContentKind classifies file content as text or binary.
type ContentKind int

const (
	// KindText content is stored and read as UTF-8 text.
	KindText ContentKind = iota
	// KindBinary content is stored and read as raw bytes.
	KindBinary
)

// extensionKinds is the closed classification table. Extensions absent
// from the table default to text. The rule lives here, in one place,
// so read/write logic never branches on extension strings itself.
var extensionKinds = map[string]ContentKind{
	// Images
	".png":  KindBinary,
	".jpg":  KindBinary,
	".jpeg": KindBinary,
	".gif":  KindBinary,
	".bmp":  KindBinary,
	".webp": KindBinary,
	".ico":  KindBinary,

	// Fonts
	".ttf":   KindBinary,
	".otf":   KindBinary,
	".woff":  KindBinary,
	".woff2": KindBinary,
	".eot":   KindBinary,

	// Audio
	".mp3":  KindBinary,
	".wav":  KindBinary,
	".ogg":  KindBinary,
	".flac": KindBinary,
	".m4a":  KindBinary,
	".aac":  KindBinary,
}

// KindForPath classifies a path by its extension. Unknown or missing
// extensions default to KindText.
func KindForPath(p string) ContentKind {
	ext := strings.ToLower(path.Ext(p))
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	return KindText
}

// IsBinaryPath reports whether the path classifies as binary content.
func IsBinaryPath(p string) bool {
	return KindForPath(p) == KindBinary
}
