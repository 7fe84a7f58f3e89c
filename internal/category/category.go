// Package category manages archive category folders and their metadata records.
//
// Folder creation and metadata updates are idempotent: calling Ensure any
// number of times, in any order, leaves one folder with one record whose
// created timestamp is that of the first call.
package category

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var descriptions = map[string]string{
	"projectbrief":   "Project brief documents outlining core requirements and goals.",
	"productContext": "Product context files explaining why the project exists and user experience goals.",
	"activeContext":  "Active context documents showing current work focus and recent changes.",
	"systemPatterns": "System architecture patterns, technical decisions, and component relationships.",
	"techContext":    "Technical context files listing technologies, development setup, and constraints.",
	"progress":       "Progress tracking documents showing what works, what's left to build, and known issues.",
	"projectRules":   "Project rules capturing conventions and preferences.",
	"sessions":       "Session summaries and working logs.",
	"decisions":      "Decision records and their rationale.",
	"implementation": "Implementation notes for completed work.",
	"history":        "Project history and timelines.",
	"domain":         "Domain model and business concept notes.",
	"features":       "Feature descriptions and capabilities.",
	"concepts":       "Concepts, principles, and ideas.",
	"patterns":       "Reusable approaches and design patterns.",
	"workflows":      "Workflow descriptions and process flows.",
	"guides":         "Guides and step-by-step instructions.",
	"processes":      "Processes and procedures.",
	"setup":          "Setup, installation, and environment configuration.",
	"refactoring":    "Refactoring plans and implementation approaches for code improvements.",
	"architecture":   "Architecture documents detailing system structure and design patterns.",
	"codebase":       "Codebase analysis and documentation files.",
	"import":         "Import and dependency management documentation.",
	"research":       "Research documents and investigation findings.",
	"metadata":       "Metadata and logging information about the memory system.",
	"priority":       "High-priority documents that should be easily accessible.",
}

var coreTier = map[string]bool{
	"projectbrief":   true,
	"productContext": true,
	"activeContext":  true,
	"systemPatterns": true,
	"techContext":    true,
	"progress":       true,
}

var specialTier = map[string]bool{
	"metadata": true,
	"priority": true,
}

// Describe returns the description for a category.
func Describe(category string) string {
	if d, ok := descriptions[category]; ok {
		return d
	}
	return fmt.Sprintf("Documents related to %s.", category)
}

// TierOf returns the classification tier of a category.
func TierOf(category string) Tier {
	switch {
	case coreTier[category]:
		return TierCore
	case specialTier[category]:
		return TierSpecial
	default:
		return TierExtended
	}
}

// Clock returns the current time.
type Clock func() time.Time

// Manager creates category folders and maintains their metadata records.
type Manager struct {
	now    Clock
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock injects the clock used for metadata timestamps.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.now = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the folder a category maps to under root without touching
// the filesystem.
func Resolve(root, category string) string {
	return filepath.Join(root, category)
}

// RecordPath returns the metadata record path for a category folder.
func RecordPath(folder string) string {
	return filepath.Join(folder, RecordFileName)
}

// HasRecord reports whether folder carries a metadata record.
func HasRecord(folder string) bool {
	info, err := os.Stat(RecordPath(folder))
	return err == nil && info.Mode().IsRegular()
}

// Ensure creates the category folder under root if it is absent and, when
// writeMetadata is set, creates or touches its metadata record.
func (m *Manager) Ensure(root, category string, writeMetadata bool) (string, error) {
	if category == "" {
		return "", errors.New("category name is empty")
	}

	folder := Resolve(root, category)

	info, err := os.Stat(folder)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("category path exists and is not a directory: %s", folder)
	case errors.Is(err, os.ErrNotExist):
		m.logger.Info("creating category folder", "folder", folder)
		if err := os.MkdirAll(folder, 0755); err != nil {
			return "", fmt.Errorf("failed to create category folder: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to stat category folder: %w", err)
	}

	if !writeMetadata {
		return folder, nil
	}

	if err := m.writeRecord(folder, category); err != nil {
		return "", err
	}
	return folder, nil
}

func (m *Manager) writeRecord(folder, category string) error {
	path := RecordPath(folder)
	now := m.now()

	data, err := os.ReadFile(path)
	if err == nil {
		updated, err := touch(string(data), now)
		if err != nil {
			return fmt.Errorf("failed to update metadata record %s: %w", path, err)
		}
		m.logger.Debug("updating category metadata", "path", path)
		return os.WriteFile(path, []byte(updated), 0644)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read metadata record: %w", err)
	}

	stamp := now.Format(TimeLayout)
	record := &Record{
		Category:    category,
		Description: Describe(category),
		Tier:        TierOf(category),
		Created:     stamp,
		LastUpdated: stamp,
	}
	content, err := record.ToMarkdown()
	if err != nil {
		return err
	}

	m.logger.Info("creating category metadata", "path", path)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write metadata record: %w", err)
	}
	return nil
}
