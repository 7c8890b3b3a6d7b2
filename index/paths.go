package index

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var windowsAbsRe = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

func looksLikeWindowsAbsolute(path string) bool {
	return windowsAbsRe.MatchString(path) || strings.HasPrefix(path, `\\`)
}

// blockedRootPrefixes are directories that must never be offered for review,
// regardless of what the caller passes as the repository root.
var blockedRootPrefixes = []string{
	"/etc", "/proc", "/sys", "/dev", "/run", "/var",
	"/bin", "/sbin", "/lib", "/lib64", "/boot",
}

// IsDangerousRoot reports whether root is too broad or too sensitive to serve
// as a repository root. The filesystem root, the user's home directory, and
// system directories are rejected.
func IsDangerousRoot(root string) bool {
	resolved, err := filepath.Abs(root)
	if err != nil {
		return true
	}
	resolved = filepath.Clean(resolved)

	if filepath.Dir(resolved) == resolved {
		return true
	}
	if home, err := os.UserHomeDir(); err == nil {
		if absHome, err := filepath.Abs(home); err == nil && resolved == filepath.Clean(absHome) {
			return true
		}
	}
	for _, prefix := range blockedRootPrefixes {
		if resolved == prefix || strings.HasPrefix(resolved, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// resolveUnderRoot resolves path (absolute or repo-relative) and ensures it
// stays under root. Symlinks are followed so escapes through links are caught.
func resolveUnderRoot(root, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path must be a non-empty string")
	}
	if looksLikeWindowsAbsolute(path) {
		return "", fmt.Errorf("windows absolute paths are not supported")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", fmt.Errorf("path traversal is not allowed")
		}
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	// Follow symlinks where the target exists so a link inside the repo
	// cannot point out of it.
	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = real
	}
	realRoot := root
	if real, err := filepath.EvalSymlinks(root); err == nil {
		realRoot = real
	}

	if resolved != realRoot && !strings.HasPrefix(resolved, realRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path is outside repo root")
	}
	return resolved, nil
}
