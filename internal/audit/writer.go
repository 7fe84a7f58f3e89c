package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoActiveRun is returned when an operation event is recorded outside a run.
var ErrNoActiveRun = errors.New("no active run: call StartRun first")

// Writer appends events to the journal. Every write is flushed and synced
// before returning.
type Writer struct {
	mu         sync.Mutex
	file       *os.File
	writer     *bufio.Writer
	logPath    string
	appVersion string
	currentRun *RunID
	rotation   *RotationManager
	now        func() time.Time
}

// NewWriter opens (or creates) the journal in cfg.LogDirectory. A new journal
// starts with a LOG_INITIALIZED event.
func NewWriter(cfg AuditConfig, appVersion string) (*Writer, error) {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(cfg.LogDirectory, ActiveLogName)
	_, statErr := os.Stat(logPath)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	w := &Writer{
		file:       file,
		writer:     bufio.NewWriter(file),
		logPath:    logPath,
		appVersion: appVersion,
		rotation:   NewRotationManager(cfg.RotationSize),
		now:        time.Now,
	}

	if isNew {
		if err := w.writeLocked(AuditEvent{
			Timestamp: w.now(),
			EventType: EventLogInitialized,
			Status:    StatusSuccess,
			Metadata:  map[string]string{"logPath": logPath},
		}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write LOG_INITIALIZED event: %w", err)
		}
	}

	return w, nil
}

// StartRun begins a run and writes its RUN_START event.
func (w *Writer) StartRun(runType RunType, root string) (RunID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runID := RunID(uuid.NewString())
	event := AuditEvent{
		Timestamp: w.now(),
		RunID:     runID,
		EventType: EventRunStart,
		Status:    StatusSuccess,
		Metadata: map[string]string{
			"appVersion": w.appVersion,
			"runType":    string(runType),
			"root":       root,
		},
	}
	if err := w.writeLocked(event); err != nil {
		return "", fmt.Errorf("failed to write RUN_START event: %w", err)
	}

	w.currentRun = &runID
	return runID, nil
}

// Record writes an event for the active run, filling in the run ID and
// timestamp.
func (w *Writer) Record(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentRun == nil {
		return ErrNoActiveRun
	}
	event.RunID = *w.currentRun
	if event.Timestamp.IsZero() {
		event.Timestamp = w.now()
	}
	return w.writeLocked(event)
}

// EndRun writes the RUN_END event and closes the active run.
func (w *Writer) EndRun(status RunStatus, summary RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentRun == nil {
		return ErrNoActiveRun
	}

	opStatus := StatusSuccess
	if status == RunStatusFailed || status == RunStatusCancelled {
		opStatus = StatusFailure
	}

	event := AuditEvent{
		Timestamp: w.now(),
		RunID:     *w.currentRun,
		EventType: EventRunEnd,
		Status:    opStatus,
		Metadata: map[string]string{
			"status":    string(status),
			"planned":   strconv.Itoa(summary.Planned),
			"succeeded": strconv.Itoa(summary.Succeeded),
			"failed":    strconv.Itoa(summary.Failed),
			"skipped":   strconv.Itoa(summary.Skipped),
		},
	}
	if err := w.writeLocked(event); err != nil {
		return fmt.Errorf("failed to write RUN_END event: %w", err)
	}

	w.currentRun = nil
	return nil
}

// CurrentRunID returns the active run ID, or nil between runs.
func (w *Writer) CurrentRunID() *RunID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentRun
}

// LogPath returns the path of the active journal file.
func (w *Writer) LogPath() string {
	return w.logPath
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit log: %w", err)
	}
	return nil
}

func (w *Writer) writeLocked(event AuditEvent) error {
	if err := w.appendLocked(event); err != nil {
		return err
	}
	if event.EventType == EventRotation {
		return nil
	}
	return w.rotateIfNeededLocked()
}

func (w *Writer) appendLocked(event AuditEvent) error {
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := w.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}
	return nil
}

// rotateIfNeededLocked closes the active log with a ROTATION event naming the
// new segment, renames it and reopens a fresh active log.
func (w *Writer) rotateIfNeededLocked() error {
	needed, err := w.rotation.NeedsRotation(w.logPath)
	if err != nil || !needed {
		return err
	}

	segment := w.rotation.SegmentName()
	event := AuditEvent{
		Timestamp: w.now(),
		EventType: EventRotation,
		Status:    StatusSuccess,
		Metadata: map[string]string{
			"previousFile": filepath.Base(w.logPath),
			"segment":      segment,
		},
	}
	if w.currentRun != nil {
		event.RunID = *w.currentRun
	}
	if err := w.appendLocked(event); err != nil {
		return fmt.Errorf("failed to write rotation event: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file for rotation: %w", err)
	}
	if _, err := w.rotation.Rotate(w.logPath, segment); err != nil {
		return err
	}

	file, err := os.OpenFile(w.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new log file after rotation: %w", err)
	}
	w.file = file
	w.writer = bufio.NewWriter(file)
	return nil
}
