package fsutils

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultStoreFileName is the file name appended when a FileStore path
// resolves to a directory.
const DefaultStoreFileName = "tasks"

// DefaultStoreFileExt is the extension appended when a FileStore path
// carries no extension of its own.
const DefaultStoreFileExt = ".csv"

// FileExists function will check if the file exists in the specified path and if it is a file indeed
func FileExists(path string) bool {
	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}

	return !fileInfo.IsDir()
}

// DirExists function will check if the Directory exists in the specified path
func DirExists(path string) bool {
	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return fileInfo.IsDir()
}

// PathExists  will return a boolean if the file/diretory exists
func PathExists(p string) bool {
	_, err := os.Stat(p)
	return !os.IsNotExist(err)
}

// ResolveStorePath applies the FileStore path-resolution rules to a
// user-supplied path: a path that names an existing directory, or that ends
// in a path separator, is treated as a directory and gets DefaultStoreFileName
// appended; a path with no extension gets DefaultStoreFileExt appended.
func ResolveStorePath(p string) string {
	if DirExists(p) || strings.HasSuffix(p, string(os.PathSeparator)) {
		p = filepath.Join(p, DefaultStoreFileName)
	}
	if filepath.Ext(p) == "" {
		p += DefaultStoreFileExt
	}
	return p
}
