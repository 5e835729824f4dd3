package pathcopy

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/paulschiretz/pgl-copy/pkg/plog"
	"github.com/paulschiretz/pgl-copy/pkg/pool"
	"github.com/paulschiretz/pgl-copy/pkg/sharded"
	"github.com/paulschiretz/pgl-copy/pkg/util"
)

// copyWorker owns exactly one chunk of the work set. It shares nothing
// mutable with other workers except the created-directory cache (idempotent
// set) and the events channel; chunks never overlap, so no two workers ever
// write the same destination file.
type copyWorker struct {
	id    int
	chunk []string

	src, trg           string
	largeFileThreshold int64
	retryCount         int
	retryWait          time.Duration

	events chan<- Event

	// createdDirs and dirGroup are shared across the pool. Two workers
	// racing to create the same parent directory are deduplicated by the
	// singleflight group: the first performs the MkdirAll, the rest wait
	// for its result.
	createdDirs *sharded.ShardedSet
	dirGroup    *singleflight.Group

	ioBufferPool *pool.FixedBufferPool
}

// run processes the chunk in order. Cancellation is observed between files,
// never mid-copy: a cancelled worker reports how many files it left
// unprocessed and halts, which the Runner surfaces as a partial run.
func (w *copyWorker) run(ctx context.Context) {
	for i, relPathKey := range w.chunk {
		select {
		case <-ctx.Done():
			w.events <- Event{
				Kind:      EventWorkerFailed,
				Chunk:     w.id,
				Reason:    ctx.Err(),
				Remaining: len(w.chunk) - i,
			}
			return
		default:
		}

		if err := w.copyOne(relPathKey); err != nil {
			// A file-level failure is data, not control flow. Siblings in
			// this chunk and all other chunks are unaffected.
			plog.Warn("SKIP", "path", relPathKey, "error", err)
			w.events <- Event{Kind: EventSkipped, Chunk: w.id, RelPathKey: relPathKey, Reason: err}
			continue
		}

		plog.Notice("COPY", "path", relPathKey)
		w.events <- Event{Kind: EventCopied, Chunk: w.id, RelPathKey: relPathKey}
	}

	w.events <- Event{Kind: EventWorkerDone, Chunk: w.id}
}

// copyOne copies a single file from source to destination, selecting the
// copy strategy by size. All paths go through DenormalizedAbsPath so that
// long-path escaping is applied identically to stat, mkdir and copy.
func (w *copyWorker) copyOne(relPathKey string) error {
	absSrcPath := util.DenormalizedAbsPath(w.src, relPathKey)
	absTrgPath := util.DenormalizedAbsPath(w.trg, relPathKey)

	parentKey := util.NormalizePath(filepath.Dir(relPathKey))
	if err := w.ensureTargetDirExists(parentKey); err != nil {
		return fmt.Errorf("failed to ensure destination directory for %s: %w", relPathKey, err)
	}

	info, err := os.Stat(absSrcPath)
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	if info.Size() > w.largeFileThreshold {
		return w.copyFileStream(absSrcPath, absTrgPath, info)
	}
	return w.copyFileDirect(absSrcPath, absTrgPath, info)
}

// ensureTargetDirExists creates the destination directory for a file once
// per run. The sharded set is the fast path; the singleflight group ensures
// that when many workers hit the same new directory at once, only the first
// performs the I/O.
func (w *copyWorker) ensureTargetDirExists(relDirKey string) error {
	if relDirKey == "." || relDirKey == "" {
		// Files at the source root: the target root is created by the Runner.
		return nil
	}
	if w.createdDirs.Has(relDirKey) {
		return nil
	}

	_, err, _ := w.dirGroup.Do(relDirKey, func() (any, error) {
		// Double-check now that we are the chosen worker for this path.
		if w.createdDirs.Has(relDirKey) {
			return nil, nil
		}
		absDirPath := util.DenormalizedAbsPath(w.trg, relDirKey)
		// MkdirAll is idempotent; a directory created by an earlier run or
		// a concurrent MkdirAll of an ancestor is not an error.
		if err := os.MkdirAll(absDirPath, util.UserWritableDirPerms); err != nil {
			return nil, err
		}
		w.createdDirs.Store(relDirKey)
		return nil, nil
	})
	return err
}

// copyFileDirect copies a small file in a single read and a single write.
func (w *copyWorker) copyFileDirect(absSrcPath, absTrgPath string, info os.FileInfo) error {
	return w.withRetry(absSrcPath, func() error {
		data, err := os.ReadFile(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to read source file %s: %w", absSrcPath, err)
		}
		// The user-write bit is always set so a re-run can overwrite files
		// copied from a read-only source.
		if err := os.WriteFile(absTrgPath, data, util.WithUserWritePermission(info.Mode().Perm())); err != nil {
			return fmt.Errorf("failed to write destination file %s: %w", absTrgPath, err)
		}
		return nil
	})
}

// copyFileStream copies a large file through a pooled buffer, never holding
// the whole payload in memory.
func (w *copyWorker) copyFileStream(absSrcPath, absTrgPath string, info os.FileInfo) error {
	return w.withRetry(absSrcPath, func() error {
		in, err := os.Open(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to open source file %s: %w", absSrcPath, err)
		}
		defer in.Close()

		out, err := os.OpenFile(absTrgPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, util.WithUserWritePermission(info.Mode().Perm()))
		if err != nil {
			return fmt.Errorf("failed to open destination file %s: %w", absTrgPath, err)
		}
		defer out.Close() // Ensure closed on error.

		// Pre-allocate the file size to reduce fragmentation.
		if info.Size() > 0 {
			_ = out.Truncate(info.Size())
		}

		bufPtr := w.ioBufferPool.Get()
		defer w.ioBufferPool.Put(bufPtr)
		buf := (*bufPtr)[:cap(*bufPtr)]

		if _, err := io.CopyBuffer(out, in, buf); err != nil {
			return fmt.Errorf("failed to copy content from %s to %s: %w", absSrcPath, absTrgPath, err)
		}

		// Close flushes data to disk; its error is a copy failure.
		if err := out.Close(); err != nil {
			return fmt.Errorf("failed to close destination file %s: %w", absTrgPath, err)
		}
		return nil
	})
}

// withRetry runs op up to retryCount+1 times, waiting retryWait between
// attempts. An exhausted retry becomes a single skip, never a fatal error.
func (w *copyWorker) withRetry(absSrcPath string, op func() error) error {
	var lastErr error
	for i := 0; i < w.retryCount+1; i++ {
		if i > 0 {
			plog.Warn("Retrying file copy", "file", absSrcPath, "attempt", fmt.Sprintf("%d/%d", i, w.retryCount), "after", w.retryWait)
			time.Sleep(w.retryWait)
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
	}
	if w.retryCount > 0 {
		return fmt.Errorf("failed after %d attempts: %w", w.retryCount+1, lastErr)
	}
	return lastErr
}
