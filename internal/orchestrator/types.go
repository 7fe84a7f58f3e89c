package orchestrator

import (
	"errors"
	"fmt"
	"time"
)

// MoveOperation is the only operation type the orchestrator executes.
const MoveOperation = "move"

// Operation describes one document to archive. Paths are relative to the
// memory bank root unless absolute.
type Operation struct {
	OperationType     string `json:"operation_type" yaml:"operation_type" mapstructure:"operation_type"`
	Source            string `json:"source" yaml:"source" mapstructure:"source"`
	DestinationFolder string `json:"destination_folder" yaml:"destination_folder" mapstructure:"destination_folder"`
	Category          string `json:"category,omitempty" yaml:"category,omitempty" mapstructure:"category"`
	MemoryType        string `json:"memory_type,omitempty" yaml:"memory_type,omitempty" mapstructure:"memory_type"`
	Description       string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
}

// OutcomeStatus is the final disposition of one operation.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
	StatusSkipped OutcomeStatus = "skipped"
)

// Reason explains a failed or skipped outcome.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonDestinationExists    Reason = "destination_exists"
	ReasonSourceMissing        Reason = "source_missing"
	ReasonVerificationFailed   Reason = "verification_failed"
	ReasonCopyFailed           Reason = "copy_failed"
	ReasonPermissionDenied     Reason = "permission_denied"
	ReasonCategoryFailed       Reason = "category_failed"
	ReasonRecycleFailed        Reason = "recycle_failed"
	ReasonRemoveFailed         Reason = "remove_failed"
	ReasonUnsupportedOperation Reason = "unsupported_operation"
	ReasonNotVerified          Reason = "not_verified"
	ReasonNotArchived          Reason = "not_archived"
	ReasonCancelled            Reason = "cancelled"
)

// Outcome is the recorded result of one operation. Later phases replace an
// entry's Outcome with a new value rather than editing it.
type Outcome struct {
	Source      string        `json:"source" yaml:"source"`
	Destination string        `json:"destination" yaml:"destination"`
	Category    string        `json:"category,omitempty" yaml:"category,omitempty"`
	MemoryType  string        `json:"memory_type,omitempty" yaml:"memory_type,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Timestamp   time.Time     `json:"timestamp" yaml:"timestamp"`
	Status      OutcomeStatus `json:"status" yaml:"status"`
	Reason      Reason        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Note        string        `json:"note,omitempty" yaml:"note,omitempty"`
}

// BatchState is the position of a batch in the archive workflow.
type BatchState string

const (
	StatePlanned   BatchState = "PLANNED"
	StateCopied    BatchState = "COPIED"
	StateVerified  BatchState = "VERIFIED"
	StateRecycled  BatchState = "RECYCLED"
	StateRemoved   BatchState = "REMOVED"
	StateCancelled BatchState = "CANCELLED"
	StateFailed    BatchState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s BatchState) Terminal() bool {
	switch s {
	case StateRecycled, StateRemoved, StateCancelled, StateFailed:
		return true
	}
	return false
}

var transitions = map[BatchState][]BatchState{
	StatePlanned:  {StateCopied, StateVerified, StateCancelled, StateFailed},
	StateCopied:   {StateVerified},
	StateVerified: {StateRecycled, StateRemoved, StateCancelled, StateFailed},
}

var (
	// ErrInvalidTransition is returned when a phase is invoked out of order.
	ErrInvalidTransition = errors.New("invalid batch state transition")
	// ErrPlanFailed is returned when every operation of a batch failed to plan.
	ErrPlanFailed = errors.New("all operations failed during planning")
	// ErrNotConfirmed is returned when a gated phase runs without approval.
	ErrNotConfirmed = errors.New("phase requires confirmation")
)

func canTransition(from, to BatchState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (b *Batch) transition(to BatchState) error {
	if !canTransition(b.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.state, to)
	}
	b.state = to
	return nil
}
