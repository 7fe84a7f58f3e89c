package scanner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"memarchive/internal/category"
	"memarchive/internal/classifier"
)

// FlatScope labels an analysis of a single archive directory that is not
// scoped to a memory type.
const FlatScope = "archive"

// ArchiveDirName is the archive directory inside each memory type.
const ArchiveDirName = "archive"

// Status reports whether an analyzed directory exists.
type Status string

const (
	StatusOK      Status = "ok"
	StatusMissing Status = "missing"
)

// RecommendationType names a reorganization suggestion.
type RecommendationType string

const (
	OrganizeLooseFiles   RecommendationType = "organize_loose_files"
	AddCategoryMetadata  RecommendationType = "add_category_metadata"
	CreateCoreCategories RecommendationType = "create_core_categories"
	CreateDirectory      RecommendationType = "create_directory"
)

// Recommendation is one suggested reorganization step.
type Recommendation struct {
	Type       RecommendationType  `json:"type" yaml:"type"`
	Message    string              `json:"message" yaml:"message"`
	Category   string              `json:"category,omitempty" yaml:"category,omitempty"`
	Categories []string            `json:"categories,omitempty" yaml:"categories,omitempty"`
	Grouping   map[string][]string `json:"grouping,omitempty" yaml:"grouping,omitempty"`
}

// CategoryFolder is an existing category directory in an archive.
type CategoryFolder struct {
	Name        string `json:"name" yaml:"name"`
	Path        string `json:"path" yaml:"path"`
	FileCount   int    `json:"file_count" yaml:"file_count"`
	HasMetadata bool   `json:"has_metadata" yaml:"has_metadata"`
}

// LooseFile is a document sitting directly in an archive directory.
type LooseFile struct {
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path" yaml:"path"`
	Category string `json:"proposed_category" yaml:"proposed_category"`
}

// Analysis describes the organization state of one archive directory.
type Analysis struct {
	Scope                  string              `json:"scope" yaml:"scope"`
	Dir                    string              `json:"dir" yaml:"dir"`
	Status                 Status              `json:"status" yaml:"status"`
	LooseFiles             []LooseFile         `json:"loose_files" yaml:"loose_files"`
	Categories             []CategoryFolder    `json:"categories" yaml:"categories"`
	Grouping               map[string][]string `json:"grouping" yaml:"grouping"`
	TotalFiles             int                 `json:"total_files" yaml:"total_files"`
	OrganizationPercentage float64             `json:"organization_percentage" yaml:"organization_percentage"`
	Recommendations        []Recommendation    `json:"recommendations" yaml:"recommendations"`
}

// LooseFileCount returns the number of loose documents.
func (a *Analysis) LooseFileCount() int {
	return len(a.LooseFiles)
}

// GroupNames returns the proposed categories in sorted order.
func (a *Analysis) GroupNames() []string {
	names := make([]string, 0, len(a.Grouping))
	for name := range a.Grouping {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	Mode          classifier.Mode
	DocumentGlob  string
	SymlinkPolicy string
	Logger        *slog.Logger
}

// Analyzer inspects archive directories. It never modifies the filesystem.
type Analyzer struct {
	classifier *classifier.Classifier
	mode       classifier.Mode
	pattern    glob.Glob
	symlinks   string
	logger     *slog.Logger
}

// NewAnalyzer creates an Analyzer that proposes categories with c.
func NewAnalyzer(c *classifier.Classifier, opts AnalyzerOptions) (*Analyzer, error) {
	if opts.DocumentGlob == "" {
		opts.DocumentGlob = DefaultDocumentGlob
	}
	pattern, err := CompilePattern(opts.DocumentGlob)
	if err != nil {
		return nil, err
	}
	if opts.Mode == "" {
		opts.Mode = classifier.Smart
	}
	if opts.SymlinkPolicy == "" {
		opts.SymlinkPolicy = SymlinkPolicySkip
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Analyzer{
		classifier: c,
		mode:       opts.Mode,
		pattern:    pattern,
		symlinks:   opts.SymlinkPolicy,
		logger:     opts.Logger,
	}, nil
}

func (a *Analyzer) scanOptions() ScanOptions {
	return ScanOptions{MaxDepth: 0, SymlinkPolicy: a.symlinks, Pattern: a.pattern}
}

// AnalyzeDir analyzes one archive directory. A missing directory yields an
// Analysis with StatusMissing and a create_directory recommendation.
func (a *Analyzer) AnalyzeDir(dir, scope string) (*Analysis, error) {
	result := &Analysis{
		Scope:      scope,
		Dir:        dir,
		Status:     StatusOK,
		LooseFiles: []LooseFile{},
		Categories: []CategoryFolder{},
		Grouping:   map[string][]string{},
	}

	files, err := ScanWithOptions(dir, a.scanOptions())
	if err != nil {
		if IsType(err, DirectoryNotFound) {
			result.Status = StatusMissing
			result.Recommendations = []Recommendation{{
				Type:    CreateDirectory,
				Message: fmt.Sprintf("Create missing archive directory %s", dir),
			}}
			return result, nil
		}
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	for _, f := range files {
		proposed := a.classifier.Classify(f.FullPath, a.mode)
		result.LooseFiles = append(result.LooseFiles, LooseFile{Name: f.Name, Path: f.FullPath, Category: proposed})
		result.Grouping[proposed] = append(result.Grouping[proposed], f.Name)
	}

	folders, err := a.categoryFolders(dir)
	if err != nil {
		return nil, err
	}
	result.Categories = folders

	result.TotalFiles = len(result.LooseFiles)
	for _, folder := range folders {
		result.TotalFiles += folder.FileCount
	}
	result.OrganizationPercentage = organization(len(result.LooseFiles), result.TotalFiles)
	result.Recommendations = a.recommend(result)

	a.logger.Debug("analyzed archive directory",
		"dir", dir,
		"scope", scope,
		"loose", len(result.LooseFiles),
		"categories", len(folders),
		"organized_pct", result.OrganizationPercentage,
	)
	return result, nil
}

// AnalyzeBank analyzes <root>/<type>/archive for every memory type.
func (a *Analyzer) AnalyzeBank(root string) ([]*Analysis, error) {
	results := make([]*Analysis, 0, len(classifier.MemoryTypes))
	for _, t := range classifier.MemoryTypes {
		dir := filepath.Join(root, string(t), ArchiveDirName)
		analysis, err := a.AnalyzeDir(dir, string(t))
		if err != nil {
			return nil, err
		}
		results = append(results, analysis)
	}
	return results, nil
}

func (a *Analyzer) categoryFolders(dir string) ([]CategoryFolder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	folders := []CategoryFolder{}
	for _, entry := range entries {
		if !entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		docs, err := ScanWithOptions(path, a.scanOptions())
		if err != nil {
			a.logger.Warn("skipping unreadable category folder", "path", path, "error", err)
			continue
		}
		folders = append(folders, CategoryFolder{
			Name:        entry.Name(),
			Path:        path,
			FileCount:   len(docs),
			HasMetadata: category.HasRecord(path),
		})
	}
	return folders, nil
}

func (a *Analyzer) recommend(result *Analysis) []Recommendation {
	var recs []Recommendation

	if len(result.LooseFiles) > 0 {
		grouping := make(map[string][]string, len(result.Grouping))
		for k, v := range result.Grouping {
			grouping[k] = append([]string(nil), v...)
		}
		recs = append(recs, Recommendation{
			Type:     OrganizeLooseFiles,
			Message:  fmt.Sprintf("Organize %d loose files into %d categories", len(result.LooseFiles), len(grouping)),
			Grouping: grouping,
		})
	}

	for _, folder := range result.Categories {
		if !folder.HasMetadata {
			recs = append(recs, Recommendation{
				Type:     AddCategoryMetadata,
				Message:  fmt.Sprintf("Add metadata record to category %s", folder.Name),
				Category: folder.Name,
			})
		}
	}

	if result.Scope == FlatScope || result.Scope == string(classifier.Core) {
		if missing := missingCoreCategories(result); len(missing) > 0 {
			recs = append(recs, Recommendation{
				Type:       CreateCoreCategories,
				Message:    "Create core categories: " + strings.Join(missing, ", "),
				Categories: missing,
			})
		}
	}

	return recs
}

func missingCoreCategories(result *Analysis) []string {
	present := make(map[string]bool)
	for _, folder := range result.Categories {
		present[folder.Name] = true
	}
	for name := range result.Grouping {
		present[name] = true
	}

	var missing []string
	for _, name := range classifier.CoreCategories() {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// organization returns 100 × (1 − loose/total), or 0 for an empty directory.
func organization(loose, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * (1 - float64(loose)/float64(total))
}
