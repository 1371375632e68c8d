// Package scanner finds the C and C++ sources of a tree. It respects .gppignore files
// with gitignore-style patterns and detects the language from file extensions.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // Absolute path
	Language string // Detected language from extension
	Size     int64  // File size in bytes
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks  bool     // Follow file symlinks that stay within root
	DefaultExcludes []string // Directory names that are never entered
	IgnoreFileName  string   // Name of the ignore file (default: .gppignore)
	Languages       []string // Languages to keep; empty keeps every detected language
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		FollowSymlinks: false,
		IgnoreFileName: ".gppignore",
		Languages:      SupportedLanguages(),
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			"CVS",
			"build",
			"cmake-build-debug",
			"cmake-build-release",
			"out",
			".idea",
			".vscode",
			"node_modules",
			"vendor",
			"third_party",
			"bin",
			"obj",
		},
	}
}

// ignoreRules are the patterns of one ignore file. They apply to paths below base.
type ignoreRules struct {
	base     string // slash separated directory relative to root, "" for root
	patterns []IgnorePattern
}

// relative returns path relative to the rules' directory, or false when path is not
// below it.
func (r ignoreRules) relative(path string) (string, bool) {
	if r.base == "" {
		return path, true
	}
	return strings.CutPrefix(path, r.base+"/")
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts  Options
	root  string
	rules []ignoreRules
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Scan recursively scans the directory at root and returns the source files whose
// language is selected by the options. Ignore files apply to their own directory and
// everything below it. When root is a regular file it is returned on its own; a
// missing root yields no files.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	s.root = absRoot
	s.rules = nil

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, nil
	}
	if !info.IsDir() {
		return s.single(absRoot, info), nil
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			return s.enterDir(path, rel, d.Name())
		}
		if f, ok := s.visitFile(path, rel, d); ok {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return files, nil
}

func (s *Scanner) single(path string, info os.FileInfo) []FileInfo {
	language := DetectLanguage(filepath.Ext(path))
	if !s.wantLanguage(language) {
		return nil
	}
	return []FileInfo{{
		Path:     filepath.Base(path),
		FullPath: path,
		Language: language,
		Size:     info.Size(),
	}}
}

// enterDir decides whether the walk descends into a directory and loads its ignore file.
func (s *Scanner) enterDir(path, rel, name string) error {
	if rel != "." {
		if s.opts.SkipHidden && isHidden(name) {
			return filepath.SkipDir
		}
		if s.isDefaultExcluded(name) || s.ignored(rel, true) {
			return filepath.SkipDir
		}
	}

	patterns, err := s.loadIgnorePatterns(path)
	if err != nil {
		if rel == "." {
			return fmt.Errorf("loading ignore patterns: %w", err)
		}
		return nil
	}
	if len(patterns) > 0 {
		base := rel
		if base == "." {
			base = ""
		}
		s.rules = append(s.rules, ignoreRules{base: base, patterns: patterns})
	}
	return nil
}

// visitFile returns the FileInfo of a source file the scan keeps.
func (s *Scanner) visitFile(path, rel string, d fs.DirEntry) (FileInfo, bool) {
	if s.opts.SkipHidden && isHidden(d.Name()) {
		return FileInfo{}, false
	}
	if s.ignored(rel, false) {
		return FileInfo{}, false
	}

	language := DetectLanguage(filepath.Ext(path))
	if !s.wantLanguage(language) {
		return FileInfo{}, false
	}

	info, err := d.Info()
	if err != nil {
		return FileInfo{}, false
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if info = s.resolveSymlink(path); info == nil {
			return FileInfo{}, false
		}
	}
	if !info.Mode().IsRegular() {
		return FileInfo{}, false
	}

	return FileInfo{
		Path:     rel,
		FullPath: path,
		Language: language,
		Size:     info.Size(),
	}, true
}

// resolveSymlink returns the target of a file symlink that stays within root, or nil.
func (s *Scanner) resolveSymlink(path string) os.FileInfo {
	if !s.opts.FollowSymlinks {
		return nil
	}
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil
	}
	realAbs, err := filepath.Abs(realPath)
	if err != nil {
		return nil
	}
	if !strings.HasPrefix(realAbs, s.root+string(filepath.Separator)) {
		return nil
	}
	target, err := os.Stat(realAbs)
	if err != nil || target.IsDir() {
		return nil
	}
	return target
}

// ignored applies the loaded ignore rules in order; a later negation re-includes.
func (s *Scanner) ignored(rel string, isDir bool) bool {
	ignored := false
	for _, r := range s.rules {
		local, ok := r.relative(rel)
		if !ok {
			continue
		}
		for _, p := range r.patterns {
			var match bool
			if isDir {
				match = p.MatchDir(local)
			} else {
				match = p.Match(local)
			}
			if match {
				ignored = !p.IsNegation()
			}
		}
	}
	return ignored
}

// wantLanguage reports whether files of language are kept.
func (s *Scanner) wantLanguage(language string) bool {
	if language == "" {
		return false
	}
	if len(s.opts.Languages) == 0 {
		return true
	}
	for _, l := range s.opts.Languages {
		if strings.EqualFold(l, language) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns reads the ignore file of dir. A missing file yields no patterns.
func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	lines := bufio.NewScanner(file)
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, lines.Err()
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}

// ScanWithOptions scans a directory with custom options.
func ScanWithOptions(root string, opts Options) ([]FileInfo, error) {
	return New(opts).Scan(root)
}
