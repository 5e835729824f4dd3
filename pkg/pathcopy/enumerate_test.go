package pathcopy

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/paulschiretz/pgl-copy/pkg/ignore"
)

// helper to create a file with content.
func createFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for test file: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}

func ignoreNothing() ignore.Predicate {
	return ignore.Compile(nil, nil)
}

func TestEnumerateFindsAllFiles(t *testing.T) {
	src := t.TempDir()
	createFile(t, filepath.Join(src, "a.txt"), "aaa")
	createFile(t, filepath.Join(src, "sub", "b.txt"), "bbb")
	createFile(t, filepath.Join(src, "sub", "deep", "c.txt"), "ccc")

	got := enumerate(src, ignoreNothing())
	want := []string{"a.txt", "sub/b.txt", "sub/deep/c.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("enumerate = %v, want %v", got, want)
	}
}

func TestEnumerateAppliesIgnorePredicate(t *testing.T) {
	src := t.TempDir()
	createFile(t, filepath.Join(src, "a.txt"), "aaa")
	createFile(t, filepath.Join(src, "node_modules", "x.txt"), "xxx")
	createFile(t, filepath.Join(src, "sub", "b.txt"), "bbb")
	createFile(t, filepath.Join(src, "sub", "node_modules", "y.txt"), "yyy")

	got := enumerate(src, ignore.Compile(ignore.DefaultIgnoreNames, nil))
	want := []string{"a.txt", "sub/b.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("enumerate = %v, want %v", got, want)
	}
}

func TestEnumerateIsDeterministic(t *testing.T) {
	src := t.TempDir()
	for _, name := range []string{"z.txt", "a.txt", "m/q.txt", "m/a.txt"} {
		createFile(t, filepath.Join(src, filepath.FromSlash(name)), name)
	}

	first := enumerate(src, ignoreNothing())
	for i := 0; i < 5; i++ {
		if again := enumerate(src, ignoreNothing()); !reflect.DeepEqual(again, first) {
			t.Fatalf("enumeration not deterministic: %v vs %v", again, first)
		}
	}
}

func TestEnumerateEmptyDirectory(t *testing.T) {
	if got := enumerate(t.TempDir(), ignoreNothing()); len(got) != 0 {
		t.Errorf("empty source should yield empty work set, got %v", got)
	}
}

func TestEnumerateSkipsSymlinkedDirectories(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation on Windows requires elevated privileges")
	}

	src := t.TempDir()
	outside := t.TempDir()
	createFile(t, filepath.Join(outside, "outside.txt"), "o")
	createFile(t, filepath.Join(src, "a.txt"), "aaa")

	if err := os.Symlink(outside, filepath.Join(src, "linkdir")); err != nil {
		t.Fatalf("failed to create dir symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(src, "a.txt"), filepath.Join(src, "linkfile")); err != nil {
		t.Fatalf("failed to create file symlink: %v", err)
	}

	got := enumerate(src, ignoreNothing())
	want := []string{"a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("symlinks must not enter the work set: got %v, want %v", got, want)
	}
}

func TestEnumerateTreatsUnreadableDirAsEmpty(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory permission bits are not enforced the same way on Windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, directory permissions are not enforced")
	}

	src := t.TempDir()
	createFile(t, filepath.Join(src, "a.txt"), "aaa")
	locked := filepath.Join(src, "locked")
	createFile(t, filepath.Join(locked, "hidden.txt"), "hhh")
	if err := os.Chmod(locked, 0000); err != nil {
		t.Fatalf("failed to chmod locked dir: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	got := enumerate(src, ignoreNothing())
	want := []string{"a.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unreadable directory should contribute zero files: got %v, want %v", got, want)
	}
}
