package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/codehaven/backend/internal/vfs"
)

// Export writes the whole workspace tree to w as a gzip-compressed tar
// stream. Entries carry workspace-relative names ("src/main.lua") and
// the node's updatedAt as modification time; directory entries are
// emitted before their children because the manifest is path-sorted.
func Export(fs *vfs.FileSystem, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, info := range fs.Manifest() {
		name := strings.TrimPrefix(info.Path, "/")
		if info.Type == vfs.NodeDirectory {
			header := &tar.Header{
				Name:     name + "/",
				Typeflag: tar.TypeDir,
				Mode:     0o755,
				ModTime:  info.UpdatedAt,
			}
			if err := tw.WriteHeader(header); err != nil {
				return fmt.Errorf("failed to write directory header %s: %w", name, err)
			}
			continue
		}

		content := fs.ReadBinaryFile(info.Path)
		header := &tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
			ModTime:  info.UpdatedAt,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write file header %s: %w", name, err)
		}
		if _, err := tw.Write(content); err != nil {
			return fmt.Errorf("failed to write file %s: %w", name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize compression: %w", err)
	}
	return nil
}

// Import reads a gzip-compressed tar stream into the workspace under
// targetDir using silent batch writes and a single commit, so a large
// upload costs one flush instead of one persistence round-trip per
// file. Cancellation is cooperative: the context is checked between
// entries, never mid-file.
func Import(ctx context.Context, fs *vfs.FileSystem, r io.Reader, targetDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to open compressed stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}

		name := strings.Trim(header.Name, "/")
		if name == "" || name == "." {
			continue
		}
		dest, err := vfs.Resolve(targetDir, name)
		if err != nil {
			return fmt.Errorf("archive entry %s: %w", header.Name, err)
		}
		// Entry names with ".." segments could resolve outside the target
		// directory; confine every entry to it.
		if dest != targetDir && !strings.HasPrefix(dest, importPrefix(targetDir)) {
			return fmt.Errorf("%w: archive entry %s escapes %s", vfs.ErrInvalidPath, header.Name, targetDir)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := ensureDirectory(fs, dest); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := ensureDirectory(fs, vfs.Parent(dest)); err != nil {
				return err
			}
			content, err := io.ReadAll(tr)
			if err != nil {
				return fmt.Errorf("failed to read archive entry %s: %w", header.Name, err)
			}
			if vfs.IsBinaryPath(dest) {
				err = fs.WriteBinaryFileSilent(dest, content)
			} else {
				err = fs.CreateFileSilent(dest, string(content))
			}
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", dest, err)
			}
		default:
			// Symlinks and special entries are out of scope; skip them.
		}
	}

	if err := fs.CommitBatch(ctx); err != nil {
		return fmt.Errorf("failed to commit imported files: %w", err)
	}
	return nil
}

// importPrefix returns the prefix every imported path must carry to
// stay inside the target directory.
func importPrefix(targetDir string) string {
	if targetDir == vfs.Root {
		return vfs.Root
	}
	return targetDir + "/"
}

// ensureDirectory creates dest and any missing ancestors with silent
// writes. Archives are not guaranteed to list parent directories first.
func ensureDirectory(fs *vfs.FileSystem, dest string) error {
	if dest == vfs.Root || fs.IsDirectory(dest) {
		return nil
	}
	if err := ensureDirectory(fs, vfs.Parent(dest)); err != nil {
		return err
	}
	if err := fs.CreateFolderSilent(dest); err != nil && !errors.Is(err, vfs.ErrAlreadyExists) {
		return fmt.Errorf("failed to create directory %s: %w", dest, err)
	}
	return nil
}

// Timestamp formats an archive filename suffix for exports.
func Timestamp(t time.Time) string {
	return t.Format("20060102-150405")
}
