// Package discover walks a corpus directory and selects decompiler output
// files by extension and ignore globs.
package discover

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/DeusData/typerecon/internal/lang"
)

// IgnoreFileName holds extra glob patterns, one per line, in the corpus root.
const IgnoreFileName = ".typereconignore"

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".git": true, ".hg": true, ".idea": true,
	".svn": true, ".tmp": true, ".vs": true, ".vscode": true,
	"__pycache__": true, "node_modules": true, "tmp": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = map[string]bool{
	".tmp": true, "~": true, ".bak": true, ".swp": true,
	".o": true, ".obj": true, ".a": true, ".lib": true,
	".so": true, ".dll": true, ".exe": true, ".pdb": true,
	".i64": true, ".idb": true, ".id0": true, ".id1": true, ".nam": true, ".til": true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to corpus root, slash-separated
	Language lang.Language // grammar used for function bodies
	Size     int64
}

// Options configures file discovery.
type Options struct {
	// Extensions selects files by lowercase extension, including the dot.
	Extensions []string
	// Ignore holds glob patterns matched against the relative path and the
	// base name. "**" crosses directories.
	Ignore []string
	// IgnoreFile overrides the default .typereconignore lookup.
	IgnoreFile string
}

// matcher holds compiled ignore globs.
type matcher []glob.Glob

func compile(patterns []string) (matcher, error) {
	m := make(matcher, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		m = append(m, g)
	}
	return m, nil
}

func (m matcher) match(name, rel string) bool {
	for _, g := range m {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return false
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(name, rel string, ignore matcher) bool {
	return IGNORE_PATTERNS[name] || ignore.match(name, rel)
}

// Discover walks a corpus and returns all candidate files in lexical order.
func Discover(ctx context.Context, root string, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	// Check cancellation before starting walk
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &Options{}
	}
	patterns := slices.Clone(opts.Ignore)
	ignPath := opts.IgnoreFile
	if ignPath == "" {
		ignPath = filepath.Join(root, IgnoreFileName)
	}
	if extra, err := loadIgnoreFile(ignPath); err == nil {
		patterns = append(patterns, extra...)
	}
	ignore, err := compile(patterns)
	if err != nil {
		return nil, err
	}
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	var files []FileInfo

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		// Check context cancellation periodically during walk
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && shouldSkipDir(info.Name(), rel, ignore) {
				return filepath.SkipDir
			}
			return nil
		}

		// Dotfiles hold tool settings, never decompiler output
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}

		// Skip ignored suffixes
		for suffix := range IGNORE_SUFFIXES {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}

		ext := strings.ToLower(filepath.Ext(path))
		if len(exts) > 0 && !exts[ext] {
			return nil
		}
		if ignore.match(info.Name(), rel) {
			return nil
		}
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Language: lang.ForFile(path),
			Size:     info.Size(),
		})
		return nil
	})

	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
