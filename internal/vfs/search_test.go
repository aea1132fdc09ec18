package vfs

import (
	"errors"
	"testing"

	"github.com/codehaven/backend/internal/storage"
)

func TestGlob(t *testing.T) {
	fs := newTestFS(t, storage.NewMemory())
	for _, dir := range []string{"/src", "/src/lib", "/assets"} {
		if err := fs.CreateDirectory(dir); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range []string{"/main.lua", "/src/game.lua", "/src/lib/util.lua", "/assets/logo.png"} {
		if err := fs.WriteFile(f, ""); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"*.lua", []string{"/main.lua"}},
		{"**/*.lua", []string{"/main.lua", "/src/game.lua", "/src/lib/util.lua"}},
		{"/src/**/*.lua", []string{"/src/game.lua", "/src/lib/util.lua"}},
		{"assets/*", []string{"/assets/logo.png"}},
		{"**/*.rb", nil},
	}
	for _, tt := range tests {
		got, err := fs.Glob(tt.pattern)
		if err != nil {
			t.Fatalf("Glob(%q): %v", tt.pattern, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("Glob(%q) = %v, want %v", tt.pattern, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("Glob(%q) = %v, want %v", tt.pattern, got, tt.want)
				break
			}
		}
	}
}

func TestGlobInvalidPattern(t *testing.T) {
	fs := newTestFS(t, storage.NewMemory())
	if _, err := fs.Glob("[unclosed"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Glob with invalid pattern error = %v, want ErrInvalidPath", err)
	}
}
