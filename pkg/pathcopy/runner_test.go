package pathcopy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulschiretz/pgl-copy/pkg/ignore"
)

func readFileString(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func mustRun(t *testing.T, plan Plan) (*Runner, *Summary) {
	t.Helper()
	runner, err := NewRunner(plan)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return runner, summary
}

func TestRunnerCopiesTreeWithIgnores(t *testing.T) {
	src := t.TempDir()
	trg := filepath.Join(t.TempDir(), "out")
	createFile(t, filepath.Join(src, "a.txt"), "aaaaa")
	createFile(t, filepath.Join(src, "node_modules", "x.txt"), "xxx")
	createFile(t, filepath.Join(src, "sub", "b.txt"), "bbb")

	runner, summary := mustRun(t, Plan{
		AbsSourcePath: src,
		AbsTargetPath: trg,
		ShouldIgnore:  ignore.Compile(ignore.DefaultIgnoreNames, nil),
		Workers:       2,
	})

	if summary.TotalFiles != 2 || summary.CopiedCount != 2 || summary.SkippedCount != 0 {
		t.Errorf("summary = %+v, want 2 files copied, 0 skipped", summary)
	}
	if !summary.Complete() {
		t.Errorf("summary should be complete: %+v", summary)
	}
	if runner.State() != StateDone {
		t.Errorf("state = %s, want done", runner.State())
	}

	if got := readFileString(t, filepath.Join(trg, "a.txt")); got != "aaaaa" {
		t.Errorf("a.txt content = %q", got)
	}
	if got := readFileString(t, filepath.Join(trg, "sub", "b.txt")); got != "bbb" {
		t.Errorf("sub/b.txt content = %q", got)
	}
	if _, err := os.Stat(filepath.Join(trg, "node_modules")); !os.IsNotExist(err) {
		t.Errorf("ignored directory must not appear in the target, stat err = %v", err)
	}
}

func TestRunnerEmptySource(t *testing.T) {
	src := t.TempDir()
	trg := filepath.Join(t.TempDir(), "out")

	runner, summary := mustRun(t, Plan{AbsSourcePath: src, AbsTargetPath: trg})

	if summary.TotalFiles != 0 || summary.CopiedCount != 0 || summary.SkippedCount != 0 {
		t.Errorf("summary = %+v, want all counters zero", summary)
	}
	if runner.State() != StateDone {
		t.Errorf("state = %s, want done", runner.State())
	}
	// No eligible files means the target root is not even created.
	if _, err := os.Stat(trg); !os.IsNotExist(err) {
		t.Errorf("target root should not exist after an empty run, stat err = %v", err)
	}
}

func TestRunnerRunIsIdempotent(t *testing.T) {
	src := t.TempDir()
	trg := filepath.Join(t.TempDir(), "out")
	createFile(t, filepath.Join(src, "a.txt"), "first")
	createFile(t, filepath.Join(src, "sub", "b.txt"), "second")

	_, summary := mustRun(t, Plan{AbsSourcePath: src, AbsTargetPath: trg, Workers: 2})
	if summary.CopiedCount != 2 {
		t.Fatalf("first run copied %d, want 2", summary.CopiedCount)
	}

	// Second run overwrites unconditionally and still counts every file
	// as copied.
	_, summary = mustRun(t, Plan{AbsSourcePath: src, AbsTargetPath: trg, Workers: 2})
	if summary.CopiedCount != 2 || summary.SkippedCount != 0 {
		t.Errorf("second run summary = %+v, want 2 copied, 0 skipped", summary)
	}
	if got := readFileString(t, filepath.Join(trg, "a.txt")); got != "first" {
		t.Errorf("a.txt content after re-run = %q", got)
	}
}

func TestRunnerBothCopyStrategies(t *testing.T) {
	src := t.TempDir()
	trg := filepath.Join(t.TempDir(), "out")

	small := "tiny"
	large := strings.Repeat("0123456789abcdef", 64) // 1 KiB, above the lowered threshold
	createFile(t, filepath.Join(src, "small.bin"), small)
	createFile(t, filepath.Join(src, "large.bin"), large)

	_, summary := mustRun(t, Plan{
		AbsSourcePath:      src,
		AbsTargetPath:      trg,
		Workers:            2,
		LargeFileThreshold: 256,
		BufferSize:         128, // force multiple CopyBuffer iterations
	})

	if summary.CopiedCount != 2 {
		t.Fatalf("copied %d, want 2", summary.CopiedCount)
	}
	if got := readFileString(t, filepath.Join(trg, "small.bin")); got != small {
		t.Errorf("direct copy produced wrong content (%d bytes)", len(got))
	}
	if got := readFileString(t, filepath.Join(trg, "large.bin")); got != large {
		t.Errorf("streaming copy produced wrong content (%d bytes)", len(got))
	}
}

func TestRunnerOverwritesLargerExistingFile(t *testing.T) {
	src := t.TempDir()
	trg := t.TempDir()
	createFile(t, filepath.Join(src, "big.bin"), strings.Repeat("x", 512))
	createFile(t, filepath.Join(trg, "big.bin"), strings.Repeat("y", 4096))

	_, summary := mustRun(t, Plan{
		AbsSourcePath:      src,
		AbsTargetPath:      trg,
		LargeFileThreshold: 256,
	})

	if summary.CopiedCount != 1 {
		t.Fatalf("copied %d, want 1", summary.CopiedCount)
	}
	got := readFileString(t, filepath.Join(trg, "big.bin"))
	if len(got) != 512 || got != strings.Repeat("x", 512) {
		t.Errorf("stale target content not truncated, got %d bytes", len(got))
	}
}

func TestRunnerMissingSourceRoot(t *testing.T) {
	runner, err := NewRunner(Plan{
		AbsSourcePath: filepath.Join(t.TempDir(), "does-not-exist"),
		AbsTargetPath: filepath.Join(t.TempDir(), "out"),
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("Run with a missing source root must fail")
	}
	if runner.State() != StateFailed {
		t.Errorf("state = %s, want failed", runner.State())
	}
}

func TestRunnerSourceRootIsFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "plain.txt")
	createFile(t, src, "not a directory")

	runner, err := NewRunner(Plan{AbsSourcePath: src, AbsTargetPath: filepath.Join(t.TempDir(), "out")})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("Run with a file as source root must fail")
	}
	if runner.State() != StateFailed {
		t.Errorf("state = %s, want failed", runner.State())
	}
}

func TestRunnerRejectsEmptyPaths(t *testing.T) {
	if _, err := NewRunner(Plan{}); err == nil {
		t.Fatal("NewRunner must reject empty source and target paths")
	}
}

func TestRunnerSkipsUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, file permissions are not enforced")
	}

	src := t.TempDir()
	trg := filepath.Join(t.TempDir(), "out")
	createFile(t, filepath.Join(src, "good.txt"), "good")
	locked := filepath.Join(src, "locked.txt")
	createFile(t, locked, "locked")
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatalf("failed to chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0644) })

	_, summary := mustRun(t, Plan{AbsSourcePath: src, AbsTargetPath: trg, Workers: 1})

	if summary.TotalFiles != 2 || summary.CopiedCount != 1 || summary.SkippedCount != 1 {
		t.Errorf("summary = %+v, want 1 copied and 1 skipped of 2", summary)
	}
	if !summary.Degraded() {
		t.Error("a run with skips must report as degraded")
	}
	if len(summary.SkippedDetails) != 1 || summary.SkippedDetails[0].RelPathKey != "locked.txt" {
		t.Errorf("skipped details = %+v, want locked.txt", summary.SkippedDetails)
	}
}

func TestRunnerCancelledContextRecordsFaults(t *testing.T) {
	src := t.TempDir()
	trg := filepath.Join(t.TempDir(), "out")
	for i := 0; i < 20; i++ {
		createFile(t, filepath.Join(src, "f"+string(rune('a'+i))+".txt"), "data")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before any worker starts

	runner, err := NewRunner(Plan{AbsSourcePath: src, AbsTargetPath: trg, Workers: 4})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("a cancelled run still returns a summary, got error: %v", err)
	}

	if len(summary.WorkerFaults) != 4 {
		t.Fatalf("worker faults = %d, want one per worker", len(summary.WorkerFaults))
	}
	var remaining int64
	for _, fault := range summary.WorkerFaults {
		remaining += int64(fault.Remaining)
	}
	if summary.CopiedCount+summary.SkippedCount+remaining != summary.TotalFiles {
		t.Errorf("counts do not add up: copied=%d skipped=%d remaining=%d total=%d",
			summary.CopiedCount, summary.SkippedCount, remaining, summary.TotalFiles)
	}
	if summary.Complete() {
		t.Error("a halted run must not report as complete")
	}
	if runner.State() != StateDone {
		t.Errorf("state = %s, want done even for a degraded run", runner.State())
	}
}
