// Package scanner lists memory bank documents and analyzes archive
// directories for loose files.
package scanner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	PermissionDenied  ScanErrorType = "PERMISSION_DENIED"
	SymlinkError      ScanErrorType = "SYMLINK_ERROR"
	InvalidPattern    ScanErrorType = "INVALID_PATTERN"
)

// Symlink policies.
const (
	SymlinkPolicyFollow = "follow"
	SymlinkPolicySkip   = "skip"
	SymlinkPolicyError  = "error"
)

// DefaultDocumentGlob selects memory bank documents.
const DefaultDocumentGlob = "*.md"

// ScanError represents an error that occurred during directory scanning.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return string(e.Type) + ": " + e.Path + ": " + e.Err.Error()
	}
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is a ScanError of the given type.
func IsType(err error, t ScanErrorType) bool {
	var se *ScanError
	return errors.As(err, &se) && se.Type == t
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	MaxDepth      int    // 0 = immediate only, -1 = unlimited
	SymlinkPolicy string // "follow", "skip", or "error"
	// Pattern filters files by name. Nil accepts every file.
	Pattern glob.Glob
	// IncludeHidden keeps dot-files and dot-directories.
	IncludeHidden bool
}

// DefaultScanOptions scans the immediate directory for non-hidden documents
// matching DefaultDocumentGlob.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		MaxDepth:      0,
		SymlinkPolicy: SymlinkPolicySkip,
		Pattern:       glob.MustCompile(DefaultDocumentGlob),
	}
}

// CompilePattern compiles a document glob. An empty pattern matches everything.
func CompilePattern(pattern string) (glob.Glob, error) {
	if pattern == "" {
		pattern = "*"
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, &ScanError{Type: InvalidPattern, Path: pattern, Err: err}
	}
	return g, nil
}

// FileEntry represents a file found during scanning.
type FileEntry struct {
	Name     string
	FullPath string
}

// Scan lists documents directly inside directory with the default options.
func Scan(directory string) ([]FileEntry, error) {
	return ScanWithOptions(directory, DefaultScanOptions())
}

// ScanWithOptions scans directory with configurable options. Entries are
// returned in directory order.
func ScanWithOptions(directory string, opts ScanOptions) ([]FileEntry, error) {
	info, err := os.Lstat(directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ScanError{Type: DirectoryNotFound, Path: directory, Err: err}
		}
		if os.IsPermission(err) {
			return nil, &ScanError{Type: PermissionDenied, Path: directory, Err: err}
		}
		return nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		switch opts.SymlinkPolicy {
		case SymlinkPolicyError:
			return nil, &ScanError{Type: SymlinkError, Path: directory, Err: errors.New("symlink encountered with error policy")}
		case SymlinkPolicyFollow:
			info, err = os.Stat(directory)
			if err != nil {
				return nil, err
			}
		default:
			return []FileEntry{}, nil
		}
	}

	if !info.IsDir() {
		return nil, &ScanError{Type: DirectoryNotFound, Path: directory, Err: errors.New("path is not a directory")}
	}

	return scanDirectory(directory, opts, 0)
}

func scanDirectory(directory string, opts ScanOptions, depth int) ([]FileEntry, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &ScanError{Type: PermissionDenied, Path: directory, Err: err}
		}
		return nil, err
	}

	files := []FileEntry{}
	for _, entry := range entries {
		name := entry.Name()
		if !opts.IncludeHidden && isHidden(name) {
			continue
		}

		fullPath := filepath.Join(directory, name)
		info, err := os.Lstat(fullPath)
		if err != nil {
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			switch opts.SymlinkPolicy {
			case SymlinkPolicyError:
				return nil, &ScanError{Type: SymlinkError, Path: fullPath, Err: errors.New("symlink encountered with error policy")}
			case SymlinkPolicyFollow:
				info, err = os.Stat(fullPath)
				if err != nil {
					continue // broken link
				}
			default:
				continue
			}
		}

		if info.IsDir() {
			if opts.MaxDepth == -1 || depth < opts.MaxDepth {
				sub, err := scanDirectory(fullPath, opts, depth+1)
				if err != nil {
					return nil, err
				}
				files = append(files, sub...)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if opts.Pattern != nil && !opts.Pattern.Match(name) {
			continue
		}

		absPath, err := filepath.Abs(fullPath)
		if err != nil {
			absPath = fullPath
		}
		files = append(files, FileEntry{Name: name, FullPath: absPath})
	}

	return files, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
