package pathcopy

import (
	"os"
	"path/filepath"

	"github.com/paulschiretz/pgl-copy/pkg/ignore"
	"github.com/paulschiretz/pgl-copy/pkg/plog"
	"github.com/paulschiretz/pgl-copy/pkg/util"
)

// enumerate walks the source tree once, depth-first, and returns the work
// set: every eligible file as a relative path key in traversal order. The
// predicate gates descent, so an ignored directory is never opened. The
// result is frozen before any worker starts; there is no discovery mid-run.
//
// os.ReadDir returns entries sorted by filename, so the ordering is
// deterministic for a static tree.
//
// Symlinks are never followed and never copied: a symlinked directory is not
// descended into (cycle safety) and a symlinked file is not added to the
// work set. The same policy applies everywhere in the engine.
func enumerate(absSourcePath string, shouldIgnore ignore.Predicate) []string {
	var workSet []string
	enumerateDir(absSourcePath, "", shouldIgnore, &workSet)
	return workSet
}

func enumerateDir(absDirPath, relDirKey string, shouldIgnore ignore.Predicate, workSet *[]string) {
	dirEntries, err := os.ReadDir(util.ExtendedLengthPath(absDirPath))
	if err != nil {
		// An unreadable directory (permissions, race-deleted) contributes
		// zero files. Its contents were never part of the work set, so this
		// is a warning, not a skip.
		plog.Warn("SKIPDIR", "reason", "unreadable directory treated as empty", "path", absDirPath, "error", err)
		return
	}

	for _, d := range dirEntries {
		relPathKey := d.Name()
		if relDirKey != "" {
			relPathKey = relDirKey + "/" + d.Name()
		}

		if d.IsDir() {
			if shouldIgnore(relPathKey, true) {
				plog.Notice("EXCL", "reason", "ignored by pattern", "dir", relPathKey)
				continue
			}
			enumerateDir(filepath.Join(absDirPath, d.Name()), relPathKey, shouldIgnore, workSet)
			continue
		}

		if d.Type()&os.ModeSymlink != 0 {
			plog.Notice("SKIP", "type", "symlink", "path", relPathKey)
			continue
		}
		if !d.Type().IsRegular() {
			// Named pipes, sockets, devices.
			plog.Notice("SKIP", "type", d.Type().String(), "path", relPathKey)
			continue
		}

		if shouldIgnore(relPathKey, false) {
			plog.Notice("EXCL", "reason", "ignored by pattern", "file", relPathKey)
			continue
		}

		*workSet = append(*workSet, relPathKey)
	}
}
