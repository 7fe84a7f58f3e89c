package orchestrator

import (
	"context"
	"fmt"

	"memarchive/internal/audit"
	"memarchive/internal/classifier"
	"memarchive/internal/scanner"
)

// Reorganize moves the loose files of one analyzed archive directory into
// their proposed category folders. Each loose original is removed with an
// ordinary delete once its copy is verified; there is no recycle phase.
func (o *Orchestrator) Reorganize(ctx context.Context, analysis *scanner.Analysis) (*Batch, error) {
	ro := o.categorizing()

	b, err := ro.plan(audit.RunTypeReorganize, reorganizeOps(analysis))
	if err != nil {
		return b, err
	}
	defer ro.Finish(b)

	if b.count(StatePlanned) == 0 {
		ro.logger.Info("no loose files to reorganize", "dir", analysis.Dir)
		return b, nil
	}

	ok, err := ro.ConfirmExecute(ctx, b)
	if err != nil || !ok {
		return b, err
	}
	if err := ro.Execute(ctx, b); err != nil {
		return b, err
	}
	if err := ro.Verify(ctx, b); err != nil {
		return b, err
	}
	if b.count(StateVerified) == 0 {
		ro.logger.Warn("no reorganized copies verified, loose files left in place", "dir", analysis.Dir)
		return b, b.transition(StateFailed)
	}
	return b, ro.Remove(ctx, b)
}

// Remove deletes every verified loose original of a reorganization batch.
func (o *Orchestrator) Remove(ctx context.Context, b *Batch) error {
	if b.state != StateVerified || b.kind != audit.RunTypeReorganize {
		return fmt.Errorf("%w: remove in %s", ErrInvalidTransition, b.state)
	}
	if !b.executeApproved {
		return ErrNotConfirmed
	}

	o.eachEligible(b, StateVerified, "remove", func(e *Entry) {
		if err := o.mover.Remove(e.Source, false); err != nil {
			o.fail(e, err)
			return
		}
		e.Phase = StateRemoved
		o.setOutcome(e, StatusSuccess, ReasonNone, "")
		o.record(audit.AuditEvent{EventType: audit.EventRemove, Status: audit.StatusSuccess}, e)
	})

	return b.transition(StateRemoved)
}

// categorizing returns a copy of o that always files into category folders.
func (o *Orchestrator) categorizing() *Orchestrator {
	ro := *o
	ro.opts.OrganizeByCategory = true
	return &ro
}

func reorganizeOps(analysis *scanner.Analysis) []Operation {
	memType := ""
	for _, t := range classifier.MemoryTypes {
		if analysis.Scope == string(t) {
			memType = analysis.Scope
		}
	}

	ops := make([]Operation, 0, len(analysis.LooseFiles))
	for _, f := range analysis.LooseFiles {
		ops = append(ops, Operation{
			OperationType:     MoveOperation,
			Source:            f.Path,
			DestinationFolder: analysis.Dir,
			Category:          f.Category,
			MemoryType:        memType,
			Description:       "reorganize loose file",
		})
	}
	return ops
}
