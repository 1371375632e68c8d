package scanner

import (
	"path"
	"path/filepath"
	"strings"
)

// IgnorePattern is one line of a .gppignore file. It follows gitignore rules: a
// leading ! negates, a trailing / matches directories only, a leading or inner /
// anchors the pattern at the directory holding the ignore file, and ** spans any
// number of directories. Segments are compared case-insensitively.
type IgnorePattern struct {
	raw      string
	negate   bool
	dirOnly  bool
	anchored bool
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}

	pattern := line
	if rest, ok := strings.CutPrefix(pattern, "!"); ok {
		p.negate = true
		pattern = rest
	}
	if rest, ok := strings.CutSuffix(pattern, "/"); ok {
		p.dirOnly = true
		pattern = rest
	}
	if rest, ok := strings.CutPrefix(pattern, "/"); ok {
		p.anchored = true
		pattern = rest
	}
	if strings.Contains(pattern, "/") {
		p.anchored = true
	}

	p.segments = strings.Split(strings.ToLower(pattern), "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.raw
}

// IsNegation returns true if this pattern is a negation pattern.
func (p IgnorePattern) IsNegation() bool {
	return p.negate
}

// Match reports whether the file at relPath (relative to the ignore file) is covered
// by the pattern. For a negation pattern a match means the file is re-included.
func (p IgnorePattern) Match(relPath string) bool {
	segs := strings.Split(strings.ToLower(filepath.ToSlash(relPath)), "/")

	lastStart := len(segs) - 1
	if p.anchored {
		lastStart = 0
	}
	for start := 0; start <= lastStart; start++ {
		if !p.dirOnly {
			if matchSegments(p.segments, segs[start:]) {
				return true
			}
			continue
		}
		// only the parent directories of the file can match a directory pattern
		for end := start + 1; end < len(segs); end++ {
			if matchSegments(p.segments, segs[start:end]) {
				return true
			}
		}
	}
	return false
}

// MatchDir reports whether the directory at relPath itself is covered by the pattern,
// so that the scanner can skip it without descending.
func (p IgnorePattern) MatchDir(relPath string) bool {
	segs := strings.Split(strings.ToLower(filepath.ToSlash(relPath)), "/")

	lastStart := len(segs) - 1
	if p.anchored {
		lastStart = 0
	}
	for start := 0; start <= lastStart; start++ {
		if matchSegments(p.segments, segs[start:]) {
			return true
		}
	}
	return false
}

// matchSegments matches every pattern segment against every path segment.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(pattern[0], segs[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
