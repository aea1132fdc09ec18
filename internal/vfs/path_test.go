package vfs

import (
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		currentDir string
		input      string
		want       string
	}{
		{"absolute", "/", "/src/main.lua", "/src/main.lua"},
		{"relative from root", "/", "main.lua", "/main.lua"},
		{"relative from subdir", "/src", "main.lua", "/src/main.lua"},
		{"dot segments dropped", "/", "/src/./main.lua", "/src/main.lua"},
		{"dotdot pops", "/src/deep", "../main.lua", "/src/main.lua"},
		{"dotdot from absolute", "/", "/src/../lib/util.lua", "/lib/util.lua"},
		{"trailing slash stripped", "/", "/src/", "/src"},
		{"double slashes collapsed", "/", "/src//main.lua", "/src/main.lua"},
		{"bare dot is cwd", "/src", ".", "/src"},
		{"empty input is cwd", "/src", "", "/src"},
		{"root stays root", "/", "/", "/"},
		{"dotdot to root", "/src", "..", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.currentDir, tt.input)
			if err != nil {
				t.Fatalf("Resolve(%q, %q) error: %v", tt.currentDir, tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.currentDir, tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveEscapesRoot(t *testing.T) {
	cases := []struct {
		currentDir string
		input      string
	}{
		{"/", ".."},
		{"/", "/../etc/passwd"},
		{"/src", "../../.."},
		{"/", "a/../../b"},
	}
	for _, c := range cases {
		if _, err := Resolve(c.currentDir, c.input); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Resolve(%q, %q) error = %v, want ErrInvalidPath", c.currentDir, c.input, err)
		}
	}
}

func TestParentBaseJoin(t *testing.T) {
	if got := Parent("/src/main.lua"); got != "/src" {
		t.Errorf("Parent = %q, want /src", got)
	}
	if got := Parent("/main.lua"); got != Root {
		t.Errorf("Parent of top-level file = %q, want root", got)
	}
	if got := Parent(Root); got != Root {
		t.Errorf("Parent of root = %q, want root", got)
	}
	if got := Base("/src/main.lua"); got != "main.lua" {
		t.Errorf("Base = %q, want main.lua", got)
	}
	if got := Join(Root, "src"); got != "/src" {
		t.Errorf("Join at root = %q, want /src", got)
	}
	if got := Join("/src", "main.lua"); got != "/src/main.lua" {
		t.Errorf("Join = %q, want /src/main.lua", got)
	}
}
