package util

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Permission constants for file and directory modes.
const (
	// PermUserWrite is the user-write permission bit (0200).
	PermUserWrite os.FileMode = 0200

	// UserWritableDirPerms represents the standard permissions for newly created directories (rwxr-xr-x).
	UserWritableDirPerms os.FileMode = 0755
	// UserWritableFilePerms represents the standard permissions for newly created files (rw-r--r--).
	UserWritableFilePerms os.FileMode = 0644
)

// WithUserWritePermission ensures that any directory/file permission has the owner-write
// bit (0200) set. This prevents the copying user from being locked out of the
// destination on a re-run when the source carries read-only permissions.
func WithUserWritePermission(basePerm os.FileMode) os.FileMode {
	return basePerm | PermUserWrite
}

// NormalizePath converts a relative path into the canonical key format used
// across the engine: forward slashes, no leading separator.
func NormalizePath(relPath string) string {
	return strings.TrimPrefix(filepath.ToSlash(relPath), "/")
}

// NormalizedRelPath computes the relative path of absPath under base and
// normalizes it into key format.
func NormalizedRelPath(base, absPath string) (string, error) {
	relPath, err := filepath.Rel(base, absPath)
	if err != nil {
		return "", fmt.Errorf("failed to get relative path for %s: %w", absPath, err)
	}
	return NormalizePath(relPath), nil
}

// DenormalizedAbsPath converts a relative path key back into an absolute
// OS-native path under base. On Windows the result is converted to an
// extended-length path when it approaches the legacy MAX_PATH ceiling, so
// that stat, mkdir and copy all operate on the same escaped form.
func DenormalizedAbsPath(absBase, relPathKey string) string {
	if relPathKey == "" || relPathKey == "." {
		return ExtendedLengthPath(absBase)
	}
	return ExtendedLengthPath(filepath.Join(absBase, filepath.FromSlash(relPathKey)))
}

// windowsLongPathMin is the path length at which Windows APIs start to need
// the \\?\ extended-length prefix. 248 is the documented ceiling for
// CreateDirectory, the lowest of the relevant APIs.
const windowsLongPathMin = 248

// ExtendedLengthPath returns p unchanged on non-Windows platforms. On Windows
// it prefixes long absolute paths with \\?\ (or \\?\UNC\ for shares) so that
// paths near or beyond MAX_PATH still succeed.
func ExtendedLengthPath(p string) string {
	if runtime.GOOS != "windows" {
		return p
	}
	if len(p) < windowsLongPathMin {
		return p
	}
	if strings.HasPrefix(p, `\\?\`) || !filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, `\\`) {
		// UNC path: \\server\share\... becomes \\?\UNC\server\share\...
		return `\\?\UNC` + p[1:]
	}
	return `\\?\` + p
}

// ExpandPath expands the tilde (~) prefix in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil // No tilde, return as-is.
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get user home directory: %w", err)
	}

	return filepath.Join(home, path[1:]), nil
}

// InvertMap takes a map[K]V and returns a map[V]K.
// It's a generic helper for creating reverse lookup maps for enums.
func InvertMap[K comparable, V comparable](m map[K]V) map[V]K {
	inv := make(map[V]K, len(m))
	for k, v := range m {
		inv[v] = k
	}
	return inv
}

// MergeAndDeduplicate combines multiple string slices into a single slice,
// removing any duplicate entries while preserving first-seen order.
func MergeAndDeduplicate(slices ...[]string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, s := range slices {
		for _, item := range s {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			result = append(result, item)
		}
	}
	return result
}

// ByteCountIEC renders a byte count in human-readable IEC units (KiB, MiB, ...).
func ByteCountIEC(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
