package pathcompress

import (
	"archive/tar"
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/paulschiretz/pgl-copy/pkg/plog"
	"github.com/paulschiretz/pgl-copy/pkg/util"
)

const writeBufferSize = 256 * 1024

// Compress packs the directory tree at absSourcePath into a single
// compressed tar archive at absArchiveFilePath. The archive is written to a
// temp file in the destination directory and renamed into place, so a
// partially written archive is never observable under the final name.
//
// Symlinks and other non-regular entries are skipped, matching the copy
// engine's notion of the tree. Cancellation is observed between entries.
func Compress(ctx context.Context, format Format, absSourcePath, absArchiveFilePath string) (retErr error) {
	plog.Notice("COMPRESS", "source", absSourcePath, "archive", absArchiveFilePath)

	trgF, err := os.CreateTemp(filepath.Dir(absArchiveFilePath), "pgl-copy-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempTrgPath := trgF.Name()

	// Ensure cleanup on error
	defer func() {
		if retErr != nil {
			trgF.Close()
			os.Remove(tempTrgPath)
		}
	}()

	if err := writeArchive(ctx, format, absSourcePath, trgF); err != nil {
		return err
	}

	if err := trgF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempTrgPath, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}
	return nil
}

func writeArchive(ctx context.Context, format Format, absSourcePath string, trgF *os.File) (retErr error) {
	bufWriter := bufio.NewWriterSize(trgF, writeBufferSize)

	var compressedWriter io.WriteCloser
	switch format {
	case TarZst:
		zstdWriter, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	case TarGz:
		pgzipWriter, err := pgzip.NewWriterLevel(bufWriter, pgzip.DefaultCompression)
		if err != nil {
			return fmt.Errorf("failed to create pgzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	default:
		return fmt.Errorf("unsupported archive format: %s", format)
	}

	tw := tar.NewWriter(compressedWriter)

	walkErr := filepath.WalkDir(absSourcePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if path == absSourcePath {
			return nil
		}

		relPath, err := filepath.Rel(absSourcePath, path)
		if err != nil {
			return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
		}
		relPathKey := util.NormalizePath(relPath)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("failed to stat directory %s: %w", path, err)
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return fmt.Errorf("failed to build tar header for %s: %w", path, err)
			}
			hdr.Name = relPathKey + "/"
			return tw.WriteHeader(hdr)
		}

		if !d.Type().IsRegular() {
			plog.Notice("SKIP", "path", relPathKey, "reason", "not a regular file")
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat file %s: %w", path, err)
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to build tar header for %s: %w", path, err)
		}
		hdr.Name = relPathKey
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", relPathKey, err)
		}

		srcF, err := os.Open(util.ExtendedLengthPath(path))
		if err != nil {
			return fmt.Errorf("failed to open source file %s: %w", path, err)
		}
		if _, err := io.Copy(tw, srcF); err != nil {
			srcF.Close()
			return fmt.Errorf("failed to archive %s: %w", relPathKey, err)
		}
		return srcF.Close()
	})
	if walkErr != nil {
		// Close in order anyway so the temp file can be removed cleanly.
		tw.Close()
		compressedWriter.Close()
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := compressedWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize compressed stream: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush archive: %w", err)
	}
	return nil
}
