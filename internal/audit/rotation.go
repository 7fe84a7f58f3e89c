package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// ActiveLogName is the file events are appended to.
	ActiveLogName = "memarchive-audit.jsonl"
	segmentPrefix = "memarchive-audit-"
	segmentSuffix = ".jsonl"
)

// RotationManager decides when the active journal is rotated and names the
// rotated segments.
type RotationManager struct {
	maxSize int64
	seq     int
	now     func() time.Time
}

// NewRotationManager creates a RotationManager. A maxSize of zero disables rotation.
func NewRotationManager(maxSize int64) *RotationManager {
	return &RotationManager{maxSize: maxSize, now: time.Now}
}

// NeedsRotation reports whether the log at logPath has reached the size limit.
func (rm *RotationManager) NeedsRotation(logPath string) (bool, error) {
	if rm.maxSize <= 0 {
		return false, nil
	}
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat log file: %w", err)
	}
	return info.Size() >= rm.maxSize, nil
}

// SegmentName returns a name for a rotated segment. Names sort chronologically;
// the per-manager sequence keeps segments rotated within the same millisecond apart.
func (rm *RotationManager) SegmentName() string {
	now := rm.now().UTC()
	rm.seq++
	return fmt.Sprintf("%s%s-%03d-%04d%s", segmentPrefix, now.Format("20060102-150405"), now.Nanosecond()/1e6, rm.seq, segmentSuffix)
}

// Rotate renames logPath to segment within the same directory.
func (rm *RotationManager) Rotate(logPath, segment string) (string, error) {
	rotated := filepath.Join(filepath.Dir(logPath), segment)
	if _, err := os.Stat(rotated); err == nil {
		return "", fmt.Errorf("rotated segment already exists: %s", rotated)
	}
	if err := os.Rename(logPath, rotated); err != nil {
		return "", fmt.Errorf("failed to rename log file during rotation: %w", err)
	}
	return rotated, nil
}

// DiscoverSegments lists rotated segment file names, oldest first.
func DiscoverSegments(logDir string) ([]string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == ActiveLogName {
			continue
		}
		if strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix) {
			segments = append(segments, name)
		}
	}
	sort.Strings(segments)
	return segments, nil
}

// GetAllLogFiles returns every journal file, rotated segments first and the
// active log last.
func GetAllLogFiles(logDir string) ([]string, error) {
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		return nil, nil
	}

	segments, err := DiscoverSegments(logDir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(segments)+1)
	for _, seg := range segments {
		files = append(files, filepath.Join(logDir, seg))
	}

	active := filepath.Join(logDir, ActiveLogName)
	if _, err := os.Stat(active); err == nil {
		files = append(files, active)
	}
	return files, nil
}
