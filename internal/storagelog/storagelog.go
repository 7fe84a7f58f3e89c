// Package storagelog records archive and reorganization batches in the
// memory bank's markdown storage log.
package storagelog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memarchive/internal/orchestrator"
)

const (
	// FileName is the storage log's default name under the bank root.
	FileName = "storage_log.md"
	// Marker is the section heading new entries are inserted under.
	Marker = "## Latest Operations"
	// MaxListedFiles is how many file names each category line shows.
	MaxListedFiles = 5
)

// Kind names the batch type an entry describes.
type Kind string

const (
	KindArchive        Kind = "archive"
	KindReorganization Kind = "reorganization"
)

// ErrLogMissing is returned when the storage log does not exist. The log is
// never created implicitly.
var ErrLogMissing = errors.New("storage log not found")

// ErrNothingToRecord is returned when no successful outcome was supplied.
var ErrNothingToRecord = errors.New("no successful operations to record")

// Update inserts an entry describing the successful outcomes into the log at
// path. The entry goes right after Marker, or at the end of the document when
// the marker is absent.
func Update(path string, outcomes []orchestrator.Outcome, kind Kind, now time.Time) error {
	var succeeded []orchestrator.Outcome
	for _, o := range outcomes {
		if o.Status == orchestrator.StatusSuccess {
			succeeded = append(succeeded, o)
		}
	}
	if len(succeeded) == 0 {
		return ErrNothingToRecord
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrLogMissing, path)
		}
		return fmt.Errorf("failed to read storage log: %w", err)
	}

	content := Insert(string(data), Entry(succeeded, kind, now))

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat storage log: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write storage log: %w", err)
	}
	return nil
}

// Insert places entry under the first Marker in content, or appends it.
func Insert(content, entry string) string {
	if i := strings.Index(content, Marker); i >= 0 {
		at := i + len(Marker)
		return content[:at] + "\n" + entry + content[at:]
	}
	return content + "\n\n" + entry
}

// Entry renders one log entry for the given outcomes.
func Entry(outcomes []orchestrator.Outcome, kind Kind, now time.Time) string {
	var order []string
	files := make(map[string][]string)
	for _, o := range outcomes {
		category := o.Category
		if category == "" {
			category = "uncategorized"
		}
		if _, ok := files[category]; !ok {
			order = append(order, category)
		}
		files[category] = append(files[category], filepath.Base(o.Source))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n### %s: Memory Organization - %s\n\n", now.Format("2006-01-02"), title(string(kind)))
	fmt.Fprintf(&b, "**Operation Type:** Memory Organization (%s)\n", kind)
	fmt.Fprintf(&b, "**Timestamp:** %s\n\n", now.Format(time.RFC3339))
	b.WriteString("**Organization Details:**\n\n")

	switch kind {
	case KindReorganization:
		fmt.Fprintf(&b, "- Reorganized %d files into category folders\n", len(outcomes))
	default:
		fmt.Fprintf(&b, "- Archived %d files\n", len(outcomes))
	}
	for _, category := range order {
		fmt.Fprintf(&b, "- **%s**: %s\n", category, fileList(files[category]))
	}

	b.WriteString("\n**Purpose:** Keep the active memory bank current while preserving prior versions in the archive.\n")
	return b.String()
}

func fileList(names []string) string {
	if len(names) <= MaxListedFiles {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:MaxListedFiles], ", "), len(names)-MaxListedFiles)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
