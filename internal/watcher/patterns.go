package watcher

import (
	"path/filepath"
	"strings"
)

var metaEscaper = strings.NewReplacer(
	`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
)

// normalize turns path into the form patterns are matched against:
// slash-separated, without volume name or leading slash.
func normalize(path string) string {
	slashed := strings.TrimPrefix(filepath.ToSlash(path), filepath.ToSlash(filepath.VolumeName(path)))
	return strings.TrimPrefix(slashed, "/")
}

// FilePattern returns an exclude pattern matching exactly the file at path.
// Relative paths are resolved against the working directory.
func FilePattern(path string) string {
	return metaEscaper.Replace(normalize(absolute(path)))
}

// TreePattern returns an exclude pattern matching dir and everything below it.
func TreePattern(dir string) string {
	return FilePattern(dir) + "/**"
}

// GlobPattern resolves glob like FilePattern but keeps its wildcards.
func GlobPattern(glob string) string {
	return normalize(absolute(glob))
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
