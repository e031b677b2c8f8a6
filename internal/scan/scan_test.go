package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func paths(t *testing.T, root string, opts Options) []string {
	t.Helper()
	artifacts, err := Collect(root, opts)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		out = append(out, a.Path)
	}
	return out
}

func TestCollectSkipsAssetsAndDotfiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.js", "var x = 1;")
	writeFile(t, root, "styles.css", "body {}")
	writeFile(t, root, "readme.md", "# hi")
	writeFile(t, root, ".env", "SECRET=1")
	writeFile(t, root, "bundle.min.js", "!function(){}()")
	writeFile(t, root, "data.json", "{}")

	got := paths(t, root, Options{})
	if len(got) != 1 || got[0] != "app.js" {
		t.Errorf("collected = %v, want [app.js]", got)
	}
}

func TestCollectPrunesSkipDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.js", "var x = 1;")
	writeFile(t, root, "node_modules/lib/index.js", "module.exports = {}")
	writeFile(t, root, ".git/hooks/pre-commit.sample.js", "x")
	writeFile(t, root, "dist/app.js", "var x = 1;")

	got := paths(t, root, Options{})
	if len(got) != 1 || got[0] != "src/app.js" {
		t.Errorf("collected = %v, want [src/app.js]", got)
	}
}

func TestCollectIncludeExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.js", "a")
	writeFile(t, root, "src/deep/nested/util.js", "b")
	writeFile(t, root, "scripts/build.js", "c")
	writeFile(t, root, "src/legacy/old.js", "d")

	got := paths(t, root, Options{
		Include: []string{"src/**"},
		Exclude: []string{"src/legacy/**"},
	})
	want := "src/app.js,src/deep/nested/util.js"
	if strings.Join(got, ",") != want {
		t.Errorf("collected = %v, want %s", got, want)
	}
}

func TestCollectSkipsLargeAndBinaryFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.js", "var x = 1;")
	writeFile(t, root, "big.js", strings.Repeat("x", 2048))
	writeFile(t, root, "blob.js", "abc\x00def")

	got := paths(t, root, Options{MaxFileBytes: 1024})
	if len(got) != 1 || got[0] != "small.js" {
		t.Errorf("collected = %v, want [small.js]", got)
	}
}

func TestCollectSnapshotsContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.js", "original content")

	artifacts, err := Collect(root, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("artifacts = %+v", artifacts)
	}

	// Mutating the file afterwards must not affect the snapshot.
	writeFile(t, root, "app.js", "changed")
	if artifacts[0].Content != "original content" {
		t.Errorf("content = %q, want snapshot", artifacts[0].Content)
	}
	if artifacts[0].ID != "app.js" || artifacts[0].Path != "app.js" {
		t.Errorf("artifact = %+v", artifacts[0])
	}
}

func TestCollectBadPattern(t *testing.T) {
	if _, err := Collect(t.TempDir(), Options{Include: []string{"[unclosed"}}); err == nil {
		t.Fatal("bad glob accepted")
	}
}

func TestCollectDeterministicOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.js", "b")
	writeFile(t, root, "a.js", "a")
	writeFile(t, root, "src/c.js", "c")

	first := paths(t, root, Options{})
	second := paths(t, root, Options{})
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("order not stable: %v vs %v", first, second)
	}
}
