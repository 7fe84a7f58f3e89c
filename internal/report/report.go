// Package report aggregates batch outcomes into a markdown operations report.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"memarchive/internal/orchestrator"
)

// Status is the overall state of a reported batch.
type Status string

const (
	StatusPlanned            Status = "Planned"
	StatusCompleted          Status = "Completed"
	StatusPartiallyCompleted Status = "Partially Completed"
)

// TimeLayout formats report timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Counts tallies outcomes by status.
type Counts struct {
	Planned   int `json:"planned" yaml:"planned"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

// Group is the set of outcomes sharing a memory type.
type Group struct {
	MemoryType string                 `json:"memory_type" yaml:"memory_type"`
	Outcomes   []orchestrator.Outcome `json:"outcomes" yaml:"outcomes"`
}

// Report is the aggregated view of one batch.
type Report struct {
	GeneratedAt time.Time              `json:"generated_at" yaml:"generated_at"`
	Status      Status                 `json:"status" yaml:"status"`
	Counts      Counts                 `json:"counts" yaml:"counts"`
	Groups      []Group                `json:"groups" yaml:"groups"`
	ByCategory  map[string]int         `json:"by_category" yaml:"by_category"`
	Failures    []orchestrator.Outcome `json:"failures,omitempty" yaml:"failures,omitempty"`
	Warnings    []string               `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	root        string
}

// Options control how a report is built.
type Options struct {
	// Executed is false for plan-only batches.
	Executed bool
	// Root relativizes paths in the rendered tables.
	Root     string
	Now      time.Time
	Warnings []string
}

// Build aggregates outcomes. Groups keep the order in which memory types
// first appear.
func Build(outcomes []orchestrator.Outcome, opts Options) *Report {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	r := &Report{
		GeneratedAt: opts.Now,
		Counts:      Counts{Planned: len(outcomes)},
		ByCategory:  make(map[string]int),
		Warnings:    opts.Warnings,
		root:        opts.Root,
	}

	index := make(map[string]int)
	cancelled := 0
	for _, o := range outcomes {
		switch {
		case o.Status == orchestrator.StatusSuccess:
			r.Counts.Succeeded++
		case o.Status == orchestrator.StatusFailed:
			r.Counts.Failed++
			r.Failures = append(r.Failures, o)
		case o.Status == orchestrator.StatusSkipped && o.Reason == orchestrator.ReasonCancelled && !opts.Executed:
			// Declined before anything was copied: still a planned operation.
			r.Counts.Succeeded++
		case o.Status == orchestrator.StatusSkipped:
			r.Counts.Skipped++
			if o.Reason == orchestrator.ReasonCancelled {
				cancelled++
			}
		}
		if o.Category != "" {
			r.ByCategory[o.Category]++
		}

		memType := o.MemoryType
		if memType == "" {
			memType = "unknown"
		}
		i, ok := index[memType]
		if !ok {
			i = len(r.Groups)
			index[memType] = i
			r.Groups = append(r.Groups, Group{MemoryType: memType})
		}
		r.Groups[i].Outcomes = append(r.Groups[i].Outcomes, o)
	}

	switch {
	case !opts.Executed:
		r.Status = StatusPlanned
	case r.Counts.Failed > 0, cancelled > 0:
		r.Status = StatusPartiallyCompleted
	default:
		r.Status = StatusCompleted
	}
	return r
}

// Render builds and renders a report in one step.
func Render(outcomes []orchestrator.Outcome, opts Options) string {
	return Build(outcomes, opts).Markdown()
}

// Markdown renders the report document.
func (r *Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Memory Bank Operations Report\n\n")
	fmt.Fprintf(&b, "**Generated:** %s\n", r.GeneratedAt.Format(TimeLayout))
	fmt.Fprintf(&b, "**Status:** %s\n\n", r.Status)

	b.WriteString("## Summary\n\n")
	if r.Status == StatusPlanned {
		fmt.Fprintf(&b, "- **Planned Operations:** %d\n", r.Counts.Succeeded)
		if r.Counts.Skipped > 0 {
			fmt.Fprintf(&b, "- **Skipped Operations:** %d\n", r.Counts.Skipped)
		}
		if r.Counts.Failed > 0 {
			fmt.Fprintf(&b, "- **Unplannable Operations:** %d\n", r.Counts.Failed)
		}
	} else {
		fmt.Fprintf(&b, "- **Total Operations:** %d\n", r.Counts.Planned)
		fmt.Fprintf(&b, "- **Successful Operations:** %d\n", r.Counts.Succeeded)
		if r.Counts.Skipped > 0 {
			fmt.Fprintf(&b, "- **Skipped Operations:** %d\n", r.Counts.Skipped)
		}
		if r.Counts.Failed > 0 {
			fmt.Fprintf(&b, "- **Failed Operations:** %d\n", r.Counts.Failed)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	b.WriteString("\n## Operations by Memory Type\n\n")
	if len(r.Groups) == 0 {
		b.WriteString("No operations planned or executed.\n\n")
	}
	for _, g := range r.Groups {
		fmt.Fprintf(&b, "### %s Memory\n\n", capitalize(g.MemoryType))
		b.WriteString("| Source | Destination | Status | Description |\n")
		b.WriteString("|--------|-------------|--------|-------------|\n")
		for _, o := range g.Outcomes {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				cell(r.rel(o.Source)), cell(r.rel(o.Destination)), r.statusCell(o), cell(o.Description))
		}
		b.WriteString("\n")
	}

	if len(r.ByCategory) > 0 {
		b.WriteString("## Operations by Category\n\n")
		b.WriteString("| Category | Operations |\n")
		b.WriteString("|----------|------------|\n")
		names := make([]string, 0, len(r.ByCategory))
		for name := range r.ByCategory {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "| %s | %d |\n", cell(name), r.ByCategory[name])
		}
		b.WriteString("\n")
	}

	if len(r.Failures) > 0 {
		b.WriteString("## Failed Operations Details\n\n")
		for i, o := range r.Failures {
			fmt.Fprintf(&b, "### Failure %d: %s\n\n", i+1, r.rel(o.Source))
			fmt.Fprintf(&b, "**Destination:** %s\n\n", r.rel(o.Destination))
			fmt.Fprintf(&b, "**Reason:** %s\n\n", o.Reason)
			if o.Note != "" {
				fmt.Fprintf(&b, "**Detail:** %s\n\n", o.Note)
			}
		}
	}

	return b.String()
}

func (r *Report) statusCell(o orchestrator.Outcome) string {
	if r.Status == StatusPlanned && (o.Status == orchestrator.StatusSuccess || o.Reason == orchestrator.ReasonCancelled) {
		return "Planned"
	}
	switch o.Status {
	case orchestrator.StatusSuccess:
		if o.Note != "" {
			return "Success (" + cell(o.Note) + ")"
		}
		return "Success"
	case orchestrator.StatusSkipped:
		return "Skipped (" + string(o.Reason) + ")"
	case orchestrator.StatusFailed:
		return "Failed (" + string(o.Reason) + ")"
	}
	return "Unknown"
}

func (r *Report) rel(path string) string {
	if r.root == "" || path == "" {
		return path
	}
	if rel, err := filepath.Rel(r.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
