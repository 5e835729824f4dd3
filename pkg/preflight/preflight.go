// Package preflight provides validation checks that run before a copy
// begins. The checks are stateless except for CheckTargetWritable, which
// creates the target directory and probes it with a temporary file.
package preflight

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/pgl-copy/pkg/util"
)

// CheckSourceAccessible validates that the source path exists and is a
// directory.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}

	return nil
}

// CheckTargetAccessible ensures the target path is usable. It provides more
// user-friendly errors than letting os.MkdirAll fail: if the target exists
// it must be a directory, and if it doesn't, its parent must be accessible.
func CheckTargetAccessible(targetPath string) error {
	info, err := os.Stat(targetPath)
	if os.IsNotExist(err) {
		parentDir := filepath.Dir(targetPath)
		if _, err := os.Stat(parentDir); os.IsNotExist(err) {
			return fmt.Errorf("target path and its parent directory do not exist: %s", parentDir)
		} else if err != nil {
			return fmt.Errorf("cannot access parent directory %s: %w", parentDir, err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access target path: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", targetPath)
	}

	return nil
}

// CheckTargetWritable ensures the target directory can be created and is
// writable by performing filesystem modifications.
func CheckTargetWritable(targetPath string) error {
	if err := os.MkdirAll(targetPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create target directory %s: %w", targetPath, err)
	}

	// Perform a thorough write check by creating and deleting a temporary file.
	tempFile := filepath.Join(targetPath, ".pgl-copy-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("target directory %s is not writable: %w", targetPath, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}

// CheckNotNested rejects a target inside the source tree or vice versa.
// Copying into a subdirectory of the source would re-discover the target's
// own files; copying over an ancestor would overwrite the source.
func CheckNotNested(srcPath, targetPath string) error {
	src := filepath.Clean(srcPath) + string(filepath.Separator)
	trg := filepath.Clean(targetPath) + string(filepath.Separator)
	if strings.HasPrefix(trg, src) {
		return fmt.Errorf("target path %s is inside the source tree %s", targetPath, srcPath)
	}
	if strings.HasPrefix(src, trg) {
		return fmt.Errorf("source path %s is inside the target tree %s", srcPath, targetPath)
	}
	return nil
}

// MeasureTreeSize walks the source tree and returns the total size in bytes
// of all regular files. Unreadable subtrees contribute zero instead of
// failing the measurement.
func MeasureTreeSize(srcPath string) int64 {
	var total int64
	_ = filepath.WalkDir(srcPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// CheckFreeSpace verifies the filesystem holding targetPath has at least
// requiredBytes available. The target (or its deepest existing ancestor) is
// queried, so the check works before the target directory is created.
func CheckFreeSpace(targetPath string, requiredBytes int64) error {
	probe := targetPath
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break // Hit root
		}
		probe = parent
	}

	free, err := freeSpace(probe)
	if err != nil {
		return fmt.Errorf("failed to determine free space for %s: %w", probe, err)
	}
	if free < uint64(requiredBytes) {
		return fmt.Errorf("not enough free space on target: need %s, have %s",
			util.ByteCountIEC(requiredBytes), util.ByteCountIEC(int64(free)))
	}
	return nil
}
