package orchestrator

import (
	"fmt"
	"time"

	"memarchive/internal/audit"
)

// Summary contains statistics from a batch.
type Summary struct {
	State         BatchState
	Planned       int // operations in the batch
	Succeeded     int
	Failed        int
	Skipped       int
	ManualCleanup int // originals left in place by the recycler
	Duration      time.Duration
	// Per-category and per-memory-type success counts, populated only in
	// verbose mode.
	ByCategory   map[string]int
	ByMemoryType map[string]int
}

// GenerateSummary counts the outcomes of b.
func GenerateSummary(b *Batch, duration time.Duration, verbose bool) *Summary {
	if b == nil {
		return &Summary{Duration: duration}
	}

	s := &Summary{
		State:    b.state,
		Planned:  len(b.entries),
		Duration: duration,
	}
	if verbose {
		s.ByCategory = make(map[string]int)
		s.ByMemoryType = make(map[string]int)
	}

	for _, e := range b.entries {
		switch e.Outcome.Status {
		case StatusSuccess:
			s.Succeeded++
			if verbose {
				s.ByCategory[e.Category]++
				s.ByMemoryType[e.MemoryType]++
			}
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
		if e.ManualCleanup {
			s.ManualCleanup++
		}
	}
	return s
}

// String formats the summary as a single line.
func (s *Summary) String() string {
	line := fmt.Sprintf("%s: %d planned, %d succeeded, %d failed, %d skipped",
		s.State, s.Planned, s.Succeeded, s.Failed, s.Skipped)
	if s.ManualCleanup > 0 {
		line += fmt.Sprintf(", %d need manual cleanup", s.ManualCleanup)
	}
	return line
}

func journalSummary(b *Batch) audit.RunSummary {
	s := GenerateSummary(b, 0, false)
	return audit.RunSummary{
		Planned:   s.Planned,
		Succeeded: s.Succeeded,
		Failed:    s.Failed,
		Skipped:   s.Skipped,
	}
}
