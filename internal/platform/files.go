package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// SanitizeFilename removes path traversal and dangerous characters from a filename.
// Returns just the base name, stripped of any directory components.
func SanitizeFilename(name string) string {
	// Take only the base name to strip directory components
	name = filepath.Base(name)

	// Check before the replacer runs: it would rewrite ".." to "_" and
	// the guard would never match.
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}

	replacer := strings.NewReplacer(
		"..", "_",
		"/", "_",
		"\\", "_",
		"\x00", "",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	name = replacer.Replace(name)

	if name == "" {
		return "untitled"
	}

	return name
}

// SafeArtifactPath resolves and validates an artifact path ensuring it stays
// within the artifact directory.
func SafeArtifactPath(dir, filename string) (string, error) {
	sanitized := SanitizeFilename(filename)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	full := filepath.Join(absDir, sanitized)

	resolved, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	if !strings.HasPrefix(resolved, absDir+string(filepath.Separator)) && resolved != absDir {
		return "", fmt.Errorf("path traversal detected: %q escapes %q", resolved, absDir)
	}

	return resolved, nil
}
