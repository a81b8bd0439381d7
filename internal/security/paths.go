// Package security keeps artifact names and paths inside the output directory.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeFilename makes a safe filename from an arbitrary string. It replaces
// any characters that are not ASCII letters, digits, dot, underscore or dash
// with an underscore, collapses repeated underscores and trims the result to
// a reasonable length. Chart titles and category labels end up in artifact
// names this way.
func SanitizeFilename(s string) string {
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	const maxLen = 128
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ArtifactPath joins a sanitised artifact name onto dir and rejects results
// that would land outside dir. The check is lexical: artifacts may be
// written to an in-memory filesystem that has no symlinks to resolve.
func ArtifactPath(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("output directory is required")
	}
	cleanDir := filepath.Clean(dir)
	ext := filepath.Ext(name)
	base := SanitizeFilename(strings.TrimSuffix(name, ext))
	if ext != "" {
		ext = "." + SanitizeFilename(strings.TrimPrefix(ext, "."))
	}
	path := filepath.Join(cleanDir, base+ext)

	rel, err := filepath.Rel(cleanDir, path)
	if err != nil {
		return "", fmt.Errorf("path is outside output directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path traversal detected: %s attempts to escape %s", name, dir)
	}
	return path, nil
}
