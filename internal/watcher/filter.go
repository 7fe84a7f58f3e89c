package watcher

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

// DefaultIgnorePatterns are editor and metadata files whose changes never
// warrant re-analysis. Hidden files cover the category metadata records.
func DefaultIgnorePatterns() []string {
	return []string{".*", "*.tmp", "*.swp", "*~"}
}

// FileFilter matches base names against compiled ignore globs.
type FileFilter struct {
	patterns []string
	globs    []glob.Glob
}

// NewFileFilter compiles patterns. Nil patterns select the defaults; an
// empty non-nil slice ignores nothing.
func NewFileFilter(patterns []string) (*FileFilter, error) {
	if patterns == nil {
		patterns = DefaultIgnorePatterns()
	}
	f := &FileFilter{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// ShouldIgnore reports whether the base name of path matches any pattern.
func (f *FileFilter) ShouldIgnore(path string) bool {
	name := filepath.Base(path)
	for _, g := range f.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the ignore patterns.
func (f *FileFilter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}
