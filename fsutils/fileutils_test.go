package fsutils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.csv")
	if err := os.WriteFile(file, []byte("id\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "existing file", path: file, want: true},
		{name: "missing file", path: filepath.Join(dir, "missing.csv"), want: false},
		{name: "dir as file", path: dir, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileExists(tt.path); got != tt.want {
				t.Errorf("FileExists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.csv")
	if err := os.WriteFile(file, []byte("id\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "existing dir", path: dir, want: true},
		{name: "missing dir", path: filepath.Join(dir, "nope"), want: false},
		{name: "file as dir", path: file, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirExists(tt.path); got != tt.want {
				t.Errorf("DirExists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.csv")
	if err := os.WriteFile(file, []byte("id\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "existing dir", path: dir, want: true},
		{name: "existing file", path: file, want: true},
		{name: "missing path", path: filepath.Join(dir, "nope"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathExists(tt.path); got != tt.want {
				t.Errorf("PathExists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveStorePath(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "existing directory gets default filename", path: dir, want: filepath.Join(dir, "tasks.csv")},
		{name: "trailing separator treated as directory", path: filepath.Join(dir, "sub") + string(os.PathSeparator), want: filepath.Join(dir, "sub", "tasks.csv")},
		{name: "no extension gets csv appended", path: filepath.Join(dir, "queue"), want: filepath.Join(dir, "queue.csv")},
		{name: "explicit extension left untouched", path: filepath.Join(dir, "queue.tsv"), want: filepath.Join(dir, "queue.tsv")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveStorePath(tt.path); got != tt.want {
				t.Errorf("ResolveStorePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
