// Package classifier maps archived documents to category and memory-type
// identifiers for memarchive.
//
// Classification is pure except for the optional content sample read in
// content-based mode. Read failures there are logged and fall through to the
// basic result.
package classifier

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"memarchive/internal/matcher"
	"memarchive/internal/normalizer"
)

// Mode selects the category detection strategy.
type Mode string

const (
	Basic        Mode = "basic"
	Smart        Mode = "smart"
	ContentBased Mode = "content-based"
)

// DefaultSampleLines is the number of leading lines read in content-based mode.
const DefaultSampleLines = 20

// ParseMode validates a detection mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Basic:
		return Basic, nil
	case Smart, "":
		return Smart, nil
	case ContentBased, "content":
		return ContentBased, nil
	default:
		return "", fmt.Errorf("unknown category detection mode: %q", s)
	}
}

// Method records which step of the pipeline produced a category.
type Method string

const (
	MethodReserved Method = "RESERVED"
	MethodScoped   Method = "SCOPED"
	MethodExtended Method = "EXTENDED"
	MethodContent  Method = "CONTENT"
	MethodBasic    Method = "BASIC"
)

// Classification is the full result of classifying one document.
type Classification struct {
	Category   string
	MemoryType MemoryType
	Method     Method
}

// Options configures a Classifier.
type Options struct {
	// Root is the memory bank root used to resolve memory types from
	// root-relative path segments. When empty every directory segment of
	// the path is considered.
	Root        string
	SampleLines int
	Logger      *slog.Logger
}

// Classifier determines categories for documents.
type Classifier struct {
	root        string
	sampleLines int
	logger      *slog.Logger
}

// New creates a Classifier with the given options.
func New(opts Options) *Classifier {
	if opts.SampleLines <= 0 {
		opts.SampleLines = DefaultSampleLines
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Classifier{
		root:        opts.Root,
		sampleLines: opts.SampleLines,
		logger:      opts.Logger,
	}
}

// Classify returns the category for a document using the default classifier.
func Classify(path string, mode Mode) string {
	return New(Options{}).Classify(path, mode)
}

// Classify returns the category identifier for path.
func (c *Classifier) Classify(path string, mode Mode) string {
	return c.Explain(path, mode).Category
}

// Explain classifies path and reports the memory type and the step that
// decided the category.
func (c *Classifier) Explain(path string, mode Mode) Classification {
	stem := normalizer.Stem(path)
	base := normalizer.StripVersion(stem)
	memType := c.DetectMemoryType(path)

	if category, ok := reservedCategory(stem, base); ok {
		return Classification{Category: category, MemoryType: memType, Method: MethodReserved}
	}

	if mode == Basic {
		return Classification{Category: base, MemoryType: memType, Method: MethodBasic}
	}

	if category := matcher.Category(base, filenameRules[memType]); category != "" {
		return Classification{Category: category, MemoryType: memType, Method: MethodScoped}
	}
	if category := matcher.Category(base, extendedRules); category != "" {
		return Classification{Category: category, MemoryType: memType, Method: MethodExtended}
	}

	if mode == ContentBased {
		if category := c.classifyContent(path, memType); category != "" {
			return Classification{Category: category, MemoryType: memType, Method: MethodContent}
		}
	}

	return Classification{Category: base, MemoryType: memType, Method: MethodBasic}
}

// DetectMemoryType resolves the memory type for path. A path segment naming
// a memory type wins, then filename keywords; the default is Core.
func (c *Classifier) DetectMemoryType(path string) MemoryType {
	for _, segment := range c.segments(path) {
		for _, t := range MemoryTypes {
			if strings.EqualFold(segment, string(t)) {
				return t
			}
		}
	}

	name := strings.ToLower(normalizer.Stem(path))
	for _, entry := range memoryTypeKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(name, keyword) {
				return entry.Type
			}
		}
	}

	return Core
}

// segments returns the directory components of path, relative to the root
// when the path lies beneath it.
func (c *Classifier) segments(path string) []string {
	dir := filepath.Dir(filepath.Clean(path))
	if c.root != "" {
		if rel, err := filepath.Rel(c.root, dir); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			dir = rel
		}
	}
	if dir == "." || dir == "" {
		return nil
	}
	return strings.FieldsFunc(filepath.ToSlash(dir), func(r rune) bool { return r == '/' })
}

func (c *Classifier) classifyContent(path string, memType MemoryType) string {
	sample, err := c.sample(path)
	if err != nil {
		c.logger.Debug("content sample unavailable", "path", path, "error", err)
		return ""
	}
	if sample == "" {
		return ""
	}

	if category := matcher.Category(sample, contentRules[memType]); category != "" {
		return category
	}
	return matcher.Category(sample, extendedRules)
}

// sample reads up to sampleLines lines and returns them case-folded.
func (c *Classifier) sample(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	for i := 0; i < c.sampleLines && scanner.Scan(); i++ {
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return strings.ToLower(b.String()), nil
}

func reservedCategory(stem, base string) (string, bool) {
	if stem == StorageLogStem || base == StorageLogStem {
		return MetadataCategory, true
	}
	if strings.HasPrefix(stem, PriorityPrefix) {
		return PriorityCategory, true
	}
	return "", false
}
