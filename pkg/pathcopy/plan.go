package pathcopy

import (
	"fmt"
	"runtime"
	"time"

	"github.com/paulschiretz/pgl-copy/pkg/ignore"
)

// Defaults for the tunable knobs of a copy run.
const (
	// DefaultLargeFileThreshold is the size above which a file is copied
	// through the streaming path instead of a single read/write.
	DefaultLargeFileThreshold int64 = 10 * 1024 * 1024 // 10 MiB
	// DefaultBufferSize is the I/O buffer size for streaming copies.
	DefaultBufferSize int64 = 256 * 1024 // 256 KiB
)

// Plan is the immutable descriptor of one copy run. It is created once at
// run start and never mutated; the Runner works from a normalized copy.
type Plan struct {
	// AbsSourcePath and AbsTargetPath are resolved absolute paths.
	AbsSourcePath string
	AbsTargetPath string

	// ShouldIgnore decides inclusion for every discovered path. The engine
	// receives an already-compiled predicate; pattern loading and parsing
	// are the caller's concern. Nil means nothing is ignored.
	ShouldIgnore ignore.Predicate

	// Workers is the number of copy workers. Zero selects the host's
	// available parallelism.
	Workers int

	// LargeFileThreshold selects the streaming copy strategy for files
	// larger than this many bytes. Zero selects the default.
	LargeFileThreshold int64

	// BufferSize is the streaming copy buffer size. Zero selects the default.
	BufferSize int64

	// RetryCount and RetryWait control per-file copy retries. A file that
	// exhausts its retries is skipped, never fatal.
	RetryCount int
	RetryWait  time.Duration
}

// withDefaults validates the plan and returns a copy with all zero-valued
// knobs resolved.
func (p Plan) withDefaults() (Plan, error) {
	if p.AbsSourcePath == "" || p.AbsTargetPath == "" {
		return Plan{}, fmt.Errorf("source and target paths must both be non-empty")
	}
	if p.ShouldIgnore == nil {
		p.ShouldIgnore = ignore.Compile(nil, nil)
	}
	if p.Workers < 1 {
		p.Workers = runtime.NumCPU()
	}
	if p.LargeFileThreshold <= 0 {
		p.LargeFileThreshold = DefaultLargeFileThreshold
	}
	if p.BufferSize <= 0 {
		p.BufferSize = DefaultBufferSize
	}
	if p.RetryCount < 0 {
		p.RetryCount = 0
	}
	return p, nil
}
