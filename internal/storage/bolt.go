package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketFiles   = []byte("files")
	bucketFolders = []byte("folders")
)

// Bolt is a bbolt-backed Store. The database handle is an explicitly
// owned resource injected at construction; Bolt never opens or closes
// it. Each call acquires its own transaction, so no open handle state
// leaks between units of work.
type Bolt struct {
	db    *bolt.DB
	clock func() time.Time
}

// Open opens a bbolt database at path with a bounded lock wait. The
// caller owns the returned handle and must Close it.
func Open(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}
	return db, nil
}

// NewBolt creates a Store over an open database handle, ensuring the
// record buckets exist.
func NewBolt(db *bolt.DB) (*Bolt, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFiles); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketFolders)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create buckets: %v", ErrUnavailable, err)
	}
	return &Bolt{db: db, clock: time.Now}, nil
}

// WithClock overrides the timestamp source for deterministic tests.
func (b *Bolt) WithClock(clock func() time.Time) *Bolt {
	b.clock = clock
	return b
}

// StoreFile upserts a file record, preserving the original creation
// time when a prior record exists for the same key.
func (b *Bolt) StoreFile(ctx context.Context, workspaceID, path string, content []byte, isBinary bool) error {
	key := []byte(CompositeKey(workspaceID, path))
	now := b.clock()

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketFiles)
		createdAt := now
		if raw := bucket.Get(key); raw != nil {
			var prior FileRecord
			if err := sonic.Unmarshal(raw, &prior); err == nil {
				createdAt = prior.CreatedAt
			}
		}
		rec := FileRecord{
			Key:         string(key),
			WorkspaceID: workspaceID,
			Path:        path,
			Content:     content,
			IsBinary:    isBinary,
			CreatedAt:   createdAt,
			UpdatedAt:   now,
		}
		raw, err := sonic.Marshal(rec)
		if err != nil {
			return err
		}
		return bucket.Put(key, raw)
	})
	if err != nil {
		return fmt.Errorf("%w: store file %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

// GetFile returns the record for the key, or nil when absent.
func (b *Bolt) GetFile(ctx context.Context, workspaceID, path string) (*FileRecord, error) {
	var rec *FileRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketFiles).Get([]byte(CompositeKey(workspaceID, path)))
		if raw == nil {
			return nil
		}
		var decoded FileRecord
		if err := sonic.Unmarshal(raw, &decoded); err != nil {
			return err
		}
		rec = &decoded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get file %s: %v", ErrUnavailable, path, err)
	}
	return rec, nil
}

// DeleteFile removes a file record. Deleting an absent key is a no-op.
func (b *Bolt) DeleteFile(ctx context.Context, workspaceID, path string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).Delete([]byte(CompositeKey(workspaceID, path)))
	})
	if err != nil {
		return fmt.Errorf("%w: delete file %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

// GetAllFilesForWorkspace returns every file record for the workspace,
// keyed by path.
func (b *Bolt) GetAllFilesForWorkspace(ctx context.Context, workspaceID string) (map[string]FileRecord, error) {
	out := make(map[string]FileRecord)
	err := b.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketFiles).Cursor()
		prefix := []byte(workspaceID + ":")
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var rec FileRecord
			if err := sonic.Unmarshal(v, &rec); err != nil {
				return err
			}
			out[rec.Path] = rec
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list files for %s: %v", ErrUnavailable, workspaceID, err)
	}
	return out, nil
}

// StoreFolder upserts a folder record.
func (b *Bolt) StoreFolder(ctx context.Context, workspaceID, path string) error {
	key := CompositeKey(workspaceID, path)
	rec := FolderRecord{Key: key, WorkspaceID: workspaceID, Path: path}

	err := b.db.Update(func(tx *bolt.Tx) error {
		raw, err := sonic.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketFolders).Put([]byte(key), raw)
	})
	if err != nil {
		return fmt.Errorf("%w: store folder %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

// DeleteFolder removes a folder record. Deleting an absent key is a no-op.
func (b *Bolt) DeleteFolder(ctx context.Context, workspaceID, path string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFolders).Delete([]byte(CompositeKey(workspaceID, path)))
	})
	if err != nil {
		return fmt.Errorf("%w: delete folder %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

// GetAllFoldersForWorkspace returns the set of folder paths for the
// workspace.
func (b *Bolt) GetAllFoldersForWorkspace(ctx context.Context, workspaceID string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := b.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketFolders).Cursor()
		prefix := []byte(workspaceID + ":")
		for k, v := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cursor.Next() {
			var rec FolderRecord
			if err := sonic.Unmarshal(v, &rec); err != nil {
				return err
			}
			out[rec.Path] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list folders for %s: %v", ErrUnavailable, workspaceID, err)
	}
	return out, nil
}

// DeleteWorkspaceData removes every file and folder record for the
// workspace inside a single transaction.
func (b *Bolt) DeleteWorkspaceData(ctx context.Context, workspaceID string) error {
	prefix := []byte(workspaceID + ":")
	err := b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFiles, bucketFolders} {
			cursor := tx.Bucket(name).Cursor()
			for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: delete workspace %s: %v", ErrUnavailable, workspaceID, err)
	}
	return nil
}
