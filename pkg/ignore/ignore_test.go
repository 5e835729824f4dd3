package ignore

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestCompileIgnoreNames(t *testing.T) {
	pred := Compile(DefaultIgnoreNames, nil)

	cases := []struct {
		relPathKey string
		isDir      bool
		want       bool
	}{
		{"node_modules", true, true},
		{"node_modules/x.txt", false, true},
		{"sub/node_modules", true, true},
		{"sub/node_modules/deep/y.txt", false, true},
		{".git", true, true},
		{"a.txt", false, false},
		{"sub/b.txt", false, false},
		{"node_modules_backup", true, false},
		{".", true, false},
	}
	for _, tc := range cases {
		if got := pred(tc.relPathKey, tc.isDir); got != tc.want {
			t.Errorf("pred(%q, isDir=%v) = %v, want %v", tc.relPathKey, tc.isDir, got, tc.want)
		}
	}
}

func TestCompileFolderPatterns(t *testing.T) {
	pred := Compile(nil, []string{"build/", "out/cache/"})

	cases := []struct {
		relPathKey string
		isDir      bool
		want       bool
	}{
		{"build", true, true},
		{"build/sub", true, true},
		{"build-tools", true, false},
		{"out/cache", true, true},
		{"out", true, false},
		{"out/other", true, false},
	}
	for _, tc := range cases {
		if got := pred(tc.relPathKey, tc.isDir); got != tc.want {
			t.Errorf("pred(%q, isDir=%v) = %v, want %v", tc.relPathKey, tc.isDir, got, tc.want)
		}
	}
}

func TestCompileFilePatterns(t *testing.T) {
	pred := Compile(nil, []string{"docs/draft-", "temp"})

	cases := []struct {
		relPathKey string
		want       bool
	}{
		{"docs/draft-1.md", true},
		{"docs/draft-final.md", true},
		{"docs/published.md", false},
		{"temp", true},
		{"temporary.txt", true}, // prefix semantics, not exact match
		{"sub/temp", false},
	}
	for _, tc := range cases {
		if got := pred(tc.relPathKey, false); got != tc.want {
			t.Errorf("pred(%q, file) = %v, want %v", tc.relPathKey, got, tc.want)
		}
	}
}

func TestCompileEmptyIgnoresNothing(t *testing.T) {
	pred := Compile(nil, nil)
	if pred("anything/at/all.txt", false) || pred("dir", true) {
		t.Error("empty rule set must not ignore any path")
	}
}

func TestIgnoreNameBeatsFilePatternAbsence(t *testing.T) {
	// A file under an ignore-name directory is ignored regardless of the
	// ignore-file contents.
	pred := Compile([]string{"node_modules"}, []string{"unrelated/"})
	if !pred("node_modules/pkg/index.js", false) {
		t.Error("file under ignore-name directory should be ignored")
	}
}

func TestLoadPatterns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, IgnoreFileName)
	content := "# comment\n\nbuild/\n  docs/draft-  \n#another\n*.swp\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write ignore file: %v", err)
	}

	patterns, err := LoadPatterns(path)
	if err != nil {
		t.Fatalf("LoadPatterns returned error: %v", err)
	}
	want := []string{"build/", "docs/draft-", "*.swp"}
	if !reflect.DeepEqual(patterns, want) {
		t.Errorf("LoadPatterns = %v, want %v", patterns, want)
	}
}

func TestLoadPatternsMissingFile(t *testing.T) {
	patterns, err := LoadPatterns(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing ignore file should not be an error, got: %v", err)
	}
	if patterns != nil {
		t.Errorf("missing ignore file should yield no patterns, got %v", patterns)
	}
}
