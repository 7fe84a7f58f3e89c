package audit

import (
	"encoding/json"
	"time"
)

// ISO8601Format is the time format used for audit event timestamps.
const ISO8601Format = time.RFC3339Nano

// eventJSON is the wire form of AuditEvent. Empty optional fields are omitted.
type eventJSON struct {
	Timestamp       string            `json:"timestamp"`
	RunID           RunID             `json:"runId,omitempty"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	DestinationPath string            `json:"destinationPath,omitempty"`
	Category        string            `json:"category,omitempty"`
	MemoryType      string            `json:"memoryType,omitempty"`
	ReasonCode      ReasonCode        `json:"reasonCode,omitempty"`
	FileIdentity    *FileIdentity     `json:"fileIdentity,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Timestamp:       e.Timestamp.UTC().Format(ISO8601Format),
		RunID:           e.RunID,
		EventType:       e.EventType,
		Status:          e.Status,
		SourcePath:      e.SourcePath,
		DestinationPath: e.DestinationPath,
		Category:        e.Category,
		MemoryType:      e.MemoryType,
		ReasonCode:      e.ReasonCode,
		FileIdentity:    e.FileIdentity,
		ErrorDetails:    e.ErrorDetails,
		Metadata:        e.Metadata,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *AuditEvent) UnmarshalJSON(data []byte) error {
	var ej eventJSON
	if err := json.Unmarshal(data, &ej); err != nil {
		return err
	}

	t, err := time.Parse(ISO8601Format, ej.Timestamp)
	if err != nil {
		return err
	}

	*e = AuditEvent{
		Timestamp:       t,
		RunID:           ej.RunID,
		EventType:       ej.EventType,
		Status:          ej.Status,
		SourcePath:      ej.SourcePath,
		DestinationPath: ej.DestinationPath,
		Category:        ej.Category,
		MemoryType:      ej.MemoryType,
		ReasonCode:      ej.ReasonCode,
		FileIdentity:    ej.FileIdentity,
		ErrorDetails:    ej.ErrorDetails,
		Metadata:        ej.Metadata,
	}
	return nil
}

// UnmarshalJSONLine parses one journal line.
func UnmarshalJSONLine(data []byte) (*AuditEvent, error) {
	var e AuditEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
