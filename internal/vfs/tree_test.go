package vfs

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// testClock returns a clock that advances one second per call, so
// createdAt and updatedAt are distinguishable.
func testClock() func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestTreeRootAlwaysExists(t *testing.T) {
	tree := NewTree()
	if !tree.IsDirectory(Root) {
		t.Fatal("new tree should contain the root directory")
	}
	if err := tree.Delete(Root); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Delete(root) error = %v, want ErrInvalidPath", err)
	}
}

func TestTreeCreateDirectory(t *testing.T) {
	tree := NewTree()
	if err := tree.CreateDirectory("/src"); err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if !tree.IsDirectory("/src") {
		t.Error("/src should be a directory")
	}

	if err := tree.CreateDirectory("/src"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate CreateDirectory error = %v, want ErrAlreadyExists", err)
	}
	if err := tree.CreateDirectory("/missing/child"); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("orphan CreateDirectory error = %v, want ErrParentNotFound", err)
	}
}

func TestTreeWriteFile(t *testing.T) {
	tree := NewTree().WithClock(testClock())

	if err := tree.WriteFile("/main.lua", []byte("print(1)"), false); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	content, err := tree.ReadFile("/main.lua")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if content != "print(1)" {
		t.Errorf("content = %q, want print(1)", content)
	}

	if err := tree.WriteFile("/missing/main.lua", nil, false); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("orphan WriteFile error = %v, want ErrParentNotFound", err)
	}

	if err := tree.CreateDirectory("/src"); err != nil {
		t.Fatal(err)
	}
	if err := tree.WriteFile("/src", []byte("x"), false); !errors.Is(err, ErrCannotWriteDirectory) {
		t.Errorf("WriteFile over directory error = %v, want ErrCannotWriteDirectory", err)
	}
}

func TestTreeOverwritePreservesCreatedAt(t *testing.T) {
	tree := NewTree().WithClock(testClock())

	if err := tree.WriteFile("/main.lua", []byte("v1"), false); err != nil {
		t.Fatal(err)
	}
	first, _ := tree.Stat("/main.lua")

	if err := tree.WriteFile("/main.lua", []byte("v2"), false); err != nil {
		t.Fatal(err)
	}
	second, _ := tree.Stat("/main.lua")

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("overwrite should preserve createdAt")
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Error("overwrite should advance updatedAt")
	}
	if content, _ := tree.ReadFile("/main.lua"); content != "v2" {
		t.Errorf("content = %q, want v2", content)
	}
}

func TestTreeOverwriteKeepsContentKind(t *testing.T) {
	tree := NewTree()
	if err := tree.WriteFile("/logo.png", []byte{0x89, 0x50}, true); err != nil {
		t.Fatal(err)
	}
	// The kind was fixed at creation; a later write does not flip it.
	if err := tree.WriteFile("/logo.png", []byte("text now"), false); err != nil {
		t.Fatal(err)
	}
	if _, err := tree.ReadFile("/logo.png"); !errors.Is(err, ErrBinaryReadAsText) {
		t.Errorf("ReadFile on binary node error = %v, want ErrBinaryReadAsText", err)
	}
}

func TestTreeReadBinary(t *testing.T) {
	tree := NewTree()
	payload := []byte{0x00, 0x01, 0x02}
	if err := tree.WriteFile("/raw.bin", payload, true); err != nil {
		t.Fatal(err)
	}

	got := tree.ReadBinary("/raw.bin")
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadBinary = %v, want %v", got, payload)
	}
	// Returned slice is a copy; mutating it must not touch the tree.
	got[0] = 0xFF
	if again := tree.ReadBinary("/raw.bin"); again[0] != 0x00 {
		t.Error("ReadBinary should return an independent copy")
	}

	if tree.ReadBinary("/absent") != nil {
		t.Error("ReadBinary of absent path should be nil")
	}
	if tree.ReadBinary(Root) != nil {
		t.Error("ReadBinary of a directory should be nil")
	}

	// Text files re-encode on demand.
	if err := tree.WriteFile("/note.txt", []byte("hello"), false); err != nil {
		t.Fatal(err)
	}
	if string(tree.ReadBinary("/note.txt")) != "hello" {
		t.Error("ReadBinary should expose text content as bytes")
	}
}

func TestTreeDelete(t *testing.T) {
	tree := NewTree()
	if err := tree.CreateDirectory("/src"); err != nil {
		t.Fatal(err)
	}
	if err := tree.WriteFile("/src/main.lua", []byte("x"), false); err != nil {
		t.Fatal(err)
	}

	if err := tree.Delete("/src"); !errors.Is(err, ErrDirectoryNotEmpty) {
		t.Errorf("Delete non-empty dir error = %v, want ErrDirectoryNotEmpty", err)
	}
	if err := tree.Delete("/src/main.lua"); err != nil {
		t.Fatalf("Delete file: %v", err)
	}
	if err := tree.Delete("/src"); err != nil {
		t.Fatalf("Delete empty dir: %v", err)
	}
	if err := tree.Delete("/src"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete absent error = %v, want ErrNotFound", err)
	}
}

func TestTreeListDirectory(t *testing.T) {
	tree := NewTree()
	for _, dir := range []string{"/src", "/assets"} {
		if err := tree.CreateDirectory(dir); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"/b.lua", "/a.lua", "/src/deep.lua"} {
		if err := tree.WriteFile(f, nil, false); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := tree.ListDirectory(Root)
	if err != nil {
		t.Fatalf("ListDirectory: %v", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	want := []string{"a.lua", "assets", "b.lua", "src"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	if _, err := tree.ListDirectory("/b.lua"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListDirectory on file error = %v, want ErrNotFound", err)
	}
	if _, err := tree.ListDirectory("/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListDirectory on absent error = %v, want ErrNotFound", err)
	}
}

func TestTreeCopyFile(t *testing.T) {
	tree := NewTree().WithClock(testClock())
	if err := tree.CreateDirectory("/backup"); err != nil {
		t.Fatal(err)
	}
	if err := tree.WriteFile("/main.lua", []byte("print(1)"), false); err != nil {
		t.Fatal(err)
	}
	srcInfo, _ := tree.Stat("/main.lua")

	created, err := tree.Copy("/main.lua", "/backup")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if len(created) != 1 || created[0] != "/backup/main.lua" {
		t.Fatalf("created = %v, want [/backup/main.lua]", created)
	}

	copyInfo, _ := tree.Stat("/backup/main.lua")
	if !copyInfo.CreatedAt.After(srcInfo.CreatedAt) {
		t.Error("copy should get fresh timestamps")
	}

	// Copies are independent: mutate the copy, source is untouched.
	if err := tree.WriteFile("/backup/main.lua", []byte("changed"), false); err != nil {
		t.Fatal(err)
	}
	if content, _ := tree.ReadFile("/main.lua"); content != "print(1)" {
		t.Error("source content changed after mutating the copy")
	}

	if _, err := tree.Copy("/main.lua", "/backup"); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Copy onto occupied destination error = %v, want ErrAlreadyExists", err)
	}
}

func TestTreeCopyDirectoryIntoItself(t *testing.T) {
	tree := NewTree()
	for _, dir := range []string{"/a", "/a/sub"} {
		if err := tree.CreateDirectory(dir); err != nil {
			t.Fatal(err)
		}
	}
	if err := tree.WriteFile("/a/f.lua", []byte("x"), false); err != nil {
		t.Fatal(err)
	}
	before := tree.Len()

	// Both the directory itself and any of its descendants are invalid
	// destinations; the recursion would chase the nodes it creates.
	if _, err := tree.Copy("/a", "/a"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Copy into itself error = %v, want ErrInvalidPath", err)
	}
	if _, err := tree.Copy("/a", "/a/sub"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Copy into descendant error = %v, want ErrInvalidPath", err)
	}
	if tree.Len() != before {
		t.Errorf("rejected copies changed the tree: %d nodes, want %d", tree.Len(), before)
	}
}

func TestTreeCopyDirectoryRecursive(t *testing.T) {
	tree := NewTree()
	for _, dir := range []string{"/src", "/src/lib", "/backup"} {
		if err := tree.CreateDirectory(dir); err != nil {
			t.Fatal(err)
		}
	}
	if err := tree.WriteFile("/src/main.lua", []byte("a"), false); err != nil {
		t.Fatal(err)
	}
	if err := tree.WriteFile("/src/lib/util.lua", []byte("b"), false); err != nil {
		t.Fatal(err)
	}

	created, err := tree.Copy("/src", "/backup")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if created[0] != "/backup/src" {
		t.Errorf("first created path = %q, want the copy root", created[0])
	}
	if len(created) != 4 {
		t.Errorf("created %d paths, want 4", len(created))
	}
	if content, _ := tree.ReadFile("/backup/src/lib/util.lua"); content != "b" {
		t.Error("deep file content not copied")
	}
}

func TestTreeRestorePreservesTimestamps(t *testing.T) {
	tree := NewTree()
	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updatedAt := createdAt.Add(time.Hour)

	tree.restoreFile("/src/deep/main.lua", []byte("x"), false, createdAt, updatedAt)

	if !tree.IsDirectory("/src") || !tree.IsDirectory("/src/deep") {
		t.Fatal("restore should create missing ancestor directories")
	}
	info, err := tree.Stat("/src/deep/main.lua")
	if err != nil {
		t.Fatal(err)
	}
	if !info.CreatedAt.Equal(createdAt) || !info.UpdatedAt.Equal(updatedAt) {
		t.Error("restore should keep persisted timestamps")
	}
}
