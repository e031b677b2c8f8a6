// Package scan collects artifacts from a working copy. Each file's content
// is snapshotted exactly once; the resulting Artifact values are immutable
// for the lifetime of the batch.
package scan

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/dependify/modernize/internal/pipeline"
)

// skipSuffixes are file endings that are never worth sending to the
// analyzer: assets, data files, and generated output.
var skipSuffixes = []string{
	".css", ".json", ".md", ".svg", ".ico", ".mjs",
	".gitignore", ".env", ".lock", ".png", ".jpg", ".jpeg",
	".gif", ".woff", ".woff2", ".map", ".min.js",
}

// skipDirs are directory names pruned from the walk entirely.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Options controls artifact collection.
type Options struct {
	// Include, when non-empty, restricts collection to paths matching at
	// least one pattern (relative to root, e.g. "src/**/*.js").
	Include []string
	// Exclude drops paths matching any pattern, applied after Include.
	Exclude []string
	// MaxFileBytes skips files larger than this. Defaults to 256 KiB.
	MaxFileBytes int64
}

// Collect walks root and returns one Artifact per eligible file, with
// content snapshots, in deterministic path order.
func Collect(root string, opts Options) ([]pipeline.Artifact, error) {
	include, err := compilePatterns(opts.Include)
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	exclude, err := compilePatterns(opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}

	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = 256 * 1024
	}

	var artifacts []pipeline.Artifact
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !eligible(name, rel, include, exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxBytes {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if isBinary(content) {
			return nil
		}

		artifacts = append(artifacts, pipeline.Artifact{
			ID:      rel,
			Path:    rel,
			Content: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return artifacts, nil
}

// eligible applies the dotfile, suffix, and glob filters to one file.
func eligible(name string, rel string, include []glob.Glob, exclude []glob.Glob) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	if len(include) > 0 && !matchAny(include, rel) {
		return false
	}
	if matchAny(exclude, rel) {
		return false
	}
	return true
}

// compilePatterns compiles glob patterns with '/' as the separator so that
// "*" does not cross path boundaries but "**" does.
func compilePatterns(patterns []string) ([]glob.Glob, error) {
	var globs []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// isBinary reports whether content looks like a binary file (NUL byte in
// the first 8 KiB).
func isBinary(content []byte) bool {
	probe := content
	if len(probe) > 8192 {
		probe = probe[:8192]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
