package util

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// SlashPath cleans p and converts it to forward slashes for glob matching.
func SlashPath(p string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	clean := path.Clean(trimmed)
	if clean == "." {
		return ""
	}
	return strings.TrimPrefix(clean, "./")
}

// RelativeSlashPath returns target relative to base in slash form, or the
// cleaned target itself when it lies outside base.
func RelativeSlashPath(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return SlashPath(filepath.ToSlash(target))
	}
	return SlashPath(filepath.ToSlash(rel))
}

// SortedStringKeys returns the map's keys in sorted order.
func SortedStringKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// WriteFileWithDirs creates parent directories (0755) and writes the file
// through a temp file in the same directory, so readers never observe a
// partially written artifact.
func WriteFileWithDirs(p string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(p)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, p)
}

// WriteStringWithDirs writes string content with parent directories created.
func WriteStringWithDirs(p, content string, perm fs.FileMode) error {
	return WriteFileWithDirs(p, []byte(content), perm)
}
