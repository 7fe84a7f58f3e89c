// Package audit records every archive batch in an append-only JSON Lines
// journal. Each run gets a RUN_START and RUN_END event; every phase
// transition of every operation in between is one event.
package audit

import "time"

// RunID identifies one batch run. It is a UUID v4 string.
type RunID string

// EventType represents the type of audit event.
type EventType string

const (
	EventRunStart EventType = "RUN_START"
	EventRunEnd   EventType = "RUN_END"

	EventPlan    EventType = "PLAN"
	EventCopy    EventType = "COPY"
	EventVerify  EventType = "VERIFY"
	EventRecycle EventType = "RECYCLE"
	EventRemove  EventType = "REMOVE"
	EventSkip    EventType = "SKIP"
	EventError   EventType = "ERROR"
	EventCancel  EventType = "CANCEL"

	EventRotation       EventType = "ROTATION"
	EventLogInitialized EventType = "LOG_INITIALIZED"
)

// OperationStatus represents the outcome of an operation step.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailure OperationStatus = "FAILURE"
	StatusSkipped OperationStatus = "SKIPPED"
)

// ReasonCode explains a skip or failure.
type ReasonCode string

const (
	ReasonDestinationExists  ReasonCode = "DESTINATION_EXISTS"
	ReasonSourceMissing      ReasonCode = "SOURCE_MISSING"
	ReasonVerificationFailed ReasonCode = "VERIFICATION_FAILED"
	ReasonRecycleFailed      ReasonCode = "RECYCLE_FAILED"
	ReasonNotVerified        ReasonCode = "NOT_VERIFIED"
	ReasonUnsupported        ReasonCode = "UNSUPPORTED_OPERATION"
	ReasonManualCleanup      ReasonCode = "MANUAL_CLEANUP"
	ReasonDeclined           ReasonCode = "DECLINED"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "IN_PROGRESS"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusPartial    RunStatus = "PARTIAL"
	RunStatusCancelled  RunStatus = "CANCELLED"
	RunStatusFailed     RunStatus = "FAILED"
)

// RunType represents the kind of batch a run executed.
type RunType string

const (
	RunTypeArchive    RunType = "ARCHIVE"
	RunTypeRecycle    RunType = "RECYCLE"
	RunTypeReorganize RunType = "REORGANIZE"
	RunTypePlan       RunType = "PLAN"
)

// FileIdentity captures the content identity of an archived copy.
type FileIdentity struct {
	ContentHash string    `json:"contentHash"` // SHA-256 hex string
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"modTime"`
}

// ErrorDetails contains detailed information about an error.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Operation    string `json:"operation"`
}

// AuditEvent is one journal record.
type AuditEvent struct {
	Timestamp       time.Time
	RunID           RunID
	EventType       EventType
	Status          OperationStatus
	SourcePath      string
	DestinationPath string
	Category        string
	MemoryType      string
	ReasonCode      ReasonCode
	FileIdentity    *FileIdentity
	ErrorDetails    *ErrorDetails
	Metadata        map[string]string
}

// RunSummary contains statistics for a completed run.
type RunSummary struct {
	Planned   int `json:"planned"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// RunInfo contains metadata and summary for a run.
type RunInfo struct {
	RunID      RunID      `json:"runId"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Status     RunStatus  `json:"status"`
	RunType    RunType    `json:"runType"`
	AppVersion string     `json:"appVersion"`
	Root       string     `json:"root"`
	Summary    RunSummary `json:"summary"`
}

// AuditConfig holds configuration for the journal.
type AuditConfig struct {
	Enabled      bool   `mapstructure:"enabled" json:"enabled"`
	LogDirectory string `mapstructure:"log_directory" json:"logDirectory"`
	RotationSize int64  `mapstructure:"rotation_size_bytes" json:"rotationSizeBytes"`
}

// DefaultLogDirectory is relative to the memory bank root.
const DefaultLogDirectory = ".memarchive/audit"

// DefaultAuditConfig returns an AuditConfig with sensible defaults.
func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		Enabled:      true,
		LogDirectory: DefaultLogDirectory,
		RotationSize: 10 * 1024 * 1024,
	}
}
