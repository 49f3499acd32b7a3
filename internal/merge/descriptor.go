package merge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FormatDescriptor renders the concat demuxer list: one `file '<path>'` line
// per input. Backslashes are doubled when doubleBackslashes is set (Windows
// paths). A single quote becomes '\''; this only changes the bytes for
// paths that contain a quote, which the concat demuxer would otherwise
// misparse.
func FormatDescriptor(paths []string, doubleBackslashes bool) []byte {
	var buf bytes.Buffer
	for _, path := range paths {
		if doubleBackslashes {
			path = strings.ReplaceAll(path, `\`, `\\`)
		}
		path = strings.ReplaceAll(path, `'`, `'\''`)
		fmt.Fprintf(&buf, "file '%s'\n", path)
	}
	return buf.Bytes()
}

// WriteDescriptor writes the concat list for paths into dir (the system temp
// directory when empty) and returns its location. The caller removes it.
func WriteDescriptor(dir string, paths []string, doubleBackslashes bool) (string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create descriptor directory: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, "reel-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create descriptor: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(FormatDescriptor(paths, doubleBackslashes)); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write descriptor: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close descriptor: %w", err)
	}
	return name, nil
}

func baseName(path string) string {
	return filepath.Base(path)
}
