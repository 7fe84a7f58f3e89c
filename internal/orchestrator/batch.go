package orchestrator

import (
	"time"

	"memarchive/internal/audit"
)

// Entry tracks one operation through the workflow.
type Entry struct {
	Operation   Operation
	Source      string // absolute source path
	ArchiveDir  string // destination folder named by the operation
	Folder      string // destination folder after categorization
	Destination string // destination file path
	Category    string
	MemoryType  string
	// Phase is the last phase this entry completed successfully.
	Phase   BatchState
	Outcome Outcome
	// Warning is set during planning when the archived document has no
	// successor version beside it.
	Warning string
	// ContentHash is the SHA-256 of the copied bytes.
	ContentHash string
	// ManualCleanup is set when the recycler left the original in place.
	ManualCleanup bool
}

// eligible reports whether the entry completed phase without failure.
func (e *Entry) eligible(phase BatchState) bool {
	return e.Outcome.Status == StatusSuccess && e.Phase == phase
}

// Batch is an ordered set of operations moving through the workflow.
type Batch struct {
	kind    audit.RunType
	state   BatchState
	entries []*Entry
	started time.Time

	executeApproved bool
	recycleApproved bool
	journaled       bool
	finished        bool
}

// State returns the current batch state.
func (b *Batch) State() BatchState {
	return b.state
}

// Kind returns the run type of the batch.
func (b *Batch) Kind() audit.RunType {
	return b.kind
}

// Executed reports whether any phase past planning ran.
func (b *Batch) Executed() bool {
	for _, e := range b.entries {
		if e.Phase != StatePlanned && e.Phase != "" {
			return true
		}
	}
	return false
}

// Entries returns a copy of the batch entries in operation order.
func (b *Batch) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	for i, e := range b.entries {
		out[i] = *e
	}
	return out
}

// Outcomes returns the current outcome of every operation in order.
func (b *Batch) Outcomes() []Outcome {
	out := make([]Outcome, len(b.entries))
	for i, e := range b.entries {
		out[i] = e.Outcome
	}
	return out
}

// Warnings returns the planning warnings in operation order.
func (b *Batch) Warnings() []string {
	var out []string
	for _, e := range b.entries {
		if e.Warning != "" {
			out = append(out, e.Warning)
		}
	}
	return out
}

// count returns the entries that completed phase successfully.
func (b *Batch) count(phase BatchState) int {
	n := 0
	for _, e := range b.entries {
		if e.eligible(phase) {
			n++
		}
	}
	return n
}

// HasFailures reports whether any operation failed.
func (b *Batch) HasFailures() bool {
	for _, e := range b.entries {
		if e.Outcome.Status == StatusFailed {
			return true
		}
	}
	return false
}
