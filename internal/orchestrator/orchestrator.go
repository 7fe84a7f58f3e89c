// Package orchestrator drives archive batches through the gated workflow
// PLAN, CONFIRM, EXECUTE, VERIFY, CONFIRM-RECYCLE and RECYCLE.
//
// Operations are processed one at a time in list order. Per-operation errors
// become outcomes and never abort the batch. The only cancellation points are
// the two confirmation gates.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"memarchive/internal/audit"
	"memarchive/internal/category"
	"memarchive/internal/classifier"
	"memarchive/internal/normalizer"
	"memarchive/internal/organizer"
	"memarchive/internal/recycle"
)

// DefaultChunkSize bounds how many operations are processed between memory
// checkpoints.
const DefaultChunkSize = 10

// Confirmer approves or declines a gated phase.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Journal receives workflow events. *audit.Writer implements it.
type Journal interface {
	StartRun(runType audit.RunType, root string) (audit.RunID, error)
	Record(event audit.AuditEvent) error
	EndRun(status audit.RunStatus, summary audit.RunSummary) error
}

// Progress observes per-operation progress of a phase.
type Progress interface {
	Begin(phase string, total int)
	Step()
	End()
}

type nopJournal struct{}

func (nopJournal) StartRun(audit.RunType, string) (audit.RunID, error) { return "", nil }
func (nopJournal) Record(audit.AuditEvent) error                       { return nil }
func (nopJournal) EndRun(audit.RunStatus, audit.RunSummary) error      { return nil }

type nopProgress struct{}

func (nopProgress) Begin(string, int) {}
func (nopProgress) Step()             {}
func (nopProgress) End()              {}

// Options are the policy inputs of a batch.
type Options struct {
	// Root is the memory bank root. Relative operation paths resolve
	// against it.
	Root               string
	AllowOverwrite     bool
	OrganizeByCategory bool
	Mode               classifier.Mode
	ChunkSize          int
	// VerifyContent additionally compares SHA-256 hashes during VERIFY.
	VerifyContent bool
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClassifier sets the category classifier.
func WithClassifier(c *classifier.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithFolders sets the category folder manager.
func WithFolders(m *category.Manager) Option {
	return func(o *Orchestrator) { o.folders = m }
}

// WithRecycler sets the recycler used in the RECYCLE phase.
func WithRecycler(r recycle.Recycler) Option {
	return func(o *Orchestrator) { o.recycler = r }
}

// WithJournal records workflow events to j.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) {
		if j != nil {
			o.journal = j
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithProgress reports phase progress to p.
func WithProgress(p Progress) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.progress = p
		}
	}
}

// WithClock sets the time source for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs archive and reorganization batches.
type Orchestrator struct {
	opts       Options
	confirmer  Confirmer
	classifier *classifier.Classifier
	folders    *category.Manager
	mover      *organizer.Mover
	recycler   recycle.Recycler
	journal    Journal
	progress   Progress
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Orchestrator.
func New(opts Options, confirmer Confirmer, options ...Option) *Orchestrator {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Mode == "" {
		opts.Mode = classifier.Smart
	}
	o := &Orchestrator{
		opts:      opts,
		confirmer: confirmer,
		mover:     organizer.NewMover(),
		journal:   nopJournal{},
		progress:  nopProgress{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	if o.classifier == nil {
		o.classifier = classifier.New(classifier.Options{Root: opts.Root, Logger: o.logger})
	}
	if o.folders == nil {
		o.folders = category.NewManager(category.WithLogger(o.logger))
	}
	if o.recycler == nil {
		o.recycler = recycle.Default()
	}
	return o
}

// Run drives ops through every phase with both confirmation gates. A batch
// that plans nothing stops after PLAN.
func (o *Orchestrator) Run(ctx context.Context, ops []Operation) (*Batch, error) {
	b, err := o.Plan(ctx, ops)
	if err != nil {
		return b, err
	}
	defer o.Finish(b)

	if b.count(StatePlanned) == 0 {
		o.logger.Info("nothing to archive")
		return b, nil
	}

	ok, err := o.ConfirmExecute(ctx, b)
	if err != nil || !ok {
		return b, err
	}
	if err := o.Execute(ctx, b); err != nil {
		return b, err
	}
	if err := o.Verify(ctx, b); err != nil {
		return b, err
	}
	if b.count(StateVerified) == 0 {
		o.logger.Warn("no copies verified, originals left untouched")
		return b, b.transition(StateFailed)
	}

	ok, err = o.ConfirmRecycle(ctx, b)
	if err != nil || !ok {
		return b, err
	}
	return b, o.Recycle(ctx, b)
}

// Plan resolves every operation and checks it with a dry-run copy. Nothing on
// disk changes. When every operation fails the batch is FAILED and
// ErrPlanFailed is returned.
func (o *Orchestrator) Plan(ctx context.Context, ops []Operation) (*Batch, error) {
	return o.plan(audit.RunTypeArchive, ops)
}

// Preview plans ops as a plan-only run and closes its journal run. The
// returned batch cannot be executed.
func (o *Orchestrator) Preview(ctx context.Context, ops []Operation) (*Batch, error) {
	b, err := o.plan(audit.RunTypePlan, ops)
	o.Finish(b)
	return b, err
}

// PlanRecycle prepares a recycle-only batch for operations whose copies were
// archived by an earlier run. Destinations must already exist.
func (o *Orchestrator) PlanRecycle(ctx context.Context, ops []Operation) (*Batch, error) {
	return o.plan(audit.RunTypeRecycle, ops)
}

func (o *Orchestrator) plan(kind audit.RunType, ops []Operation) (*Batch, error) {
	b := &Batch{kind: kind, state: StatePlanned, started: o.now()}
	o.startJournal(b)

	o.forEachChunk(b, ops, "plan", func(op Operation) *Entry {
		return o.planOne(kind, op)
	})

	return b, o.settlePlan(b)
}

// RecycleVerified re-verifies previously archived copies and, after
// confirmation, recycles their originals. Nothing is copied.
func (o *Orchestrator) RecycleVerified(ctx context.Context, ops []Operation) (*Batch, error) {
	b, err := o.PlanRecycle(ctx, ops)
	if err != nil {
		return b, err
	}
	defer o.Finish(b)

	if b.count(StatePlanned) == 0 {
		o.logger.Info("nothing to recycle")
		return b, nil
	}
	if err := o.Verify(ctx, b); err != nil {
		return b, err
	}
	if b.count(StateVerified) == 0 {
		o.logger.Warn("no archived copies verified, originals left untouched")
		return b, b.transition(StateFailed)
	}

	ok, err := o.ConfirmRecycle(ctx, b)
	if err != nil || !ok {
		return b, err
	}
	return b, o.Recycle(ctx, b)
}

func (o *Orchestrator) settlePlan(b *Batch) error {
	if len(b.entries) == 0 {
		return nil
	}
	for _, e := range b.entries {
		if e.Outcome.Status != StatusFailed {
			return nil
		}
	}
	_ = b.transition(StateFailed)
	o.logger.Error("planning failed for every operation", "operations", len(b.entries))
	o.Finish(b)
	return ErrPlanFailed
}

// planOne resolves op and dry-runs it. For recycle-only batches the archived
// copy must already exist instead.
func (o *Orchestrator) planOne(kind audit.RunType, op Operation) *Entry {
	e := o.resolve(op)

	if op.OperationType != MoveOperation {
		o.logger.Warn("skipping unsupported operation", "type", op.OperationType, "source", op.Source)
		o.setOutcome(e, StatusSkipped, ReasonUnsupportedOperation, fmt.Sprintf("operation type %q is not supported", op.OperationType))
		o.record(audit.AuditEvent{EventType: audit.EventSkip, Status: audit.StatusSkipped, ReasonCode: audit.ReasonUnsupported}, e)
		return e
	}

	if kind == audit.RunTypeRecycle {
		if _, err := os.Stat(e.Source); err != nil {
			o.fail(e, &organizer.MoveError{Type: organizer.SourceMissing, Path: e.Source, Err: err})
			return e
		}
		if _, err := os.Stat(e.Destination); err != nil {
			o.setOutcome(e, StatusFailed, ReasonNotArchived, "no archived copy at "+e.Destination)
			o.record(audit.AuditEvent{EventType: audit.EventError, Status: audit.StatusFailure, ReasonCode: audit.ReasonNotVerified}, e)
			return e
		}
	} else if _, err := o.mover.Copy(e.Source, e.Destination, true, o.opts.AllowOverwrite); err != nil {
		o.fail(e, err)
		return e
	}

	e.Phase = StatePlanned
	if kind == audit.RunTypeArchive || kind == audit.RunTypePlan {
		e.Warning = o.successorWarning(e)
	}
	o.setOutcome(e, StatusSuccess, ReasonNone, "")
	o.record(audit.AuditEvent{EventType: audit.EventPlan, Status: audit.StatusSuccess}, e)
	o.logger.Debug("planned", "source", e.Source, "destination", e.Destination, "category", e.Category)
	return e
}

// resolve computes source, folder and destination for op without touching
// the filesystem.
func (o *Orchestrator) resolve(op Operation) *Entry {
	source := o.abs(op.Source)
	base := o.abs(op.DestinationFolder)

	cat := op.Category
	if cat == "" {
		cat = o.classifier.Classify(source, o.opts.Mode)
	}
	memType := op.MemoryType
	if memType == "" {
		memType = string(o.classifier.DetectMemoryType(source))
	}

	folder := base
	if o.opts.OrganizeByCategory && cat != "" {
		folder = category.Resolve(base, cat)
	}

	e := &Entry{
		Operation:   op,
		Source:      source,
		ArchiveDir:  base,
		Folder:      folder,
		Destination: filepath.Join(folder, filepath.Base(source)),
		Category:    cat,
		MemoryType:  memType,
	}
	return e
}

func (o *Orchestrator) abs(path string) string {
	if filepath.IsAbs(path) || o.opts.Root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(o.opts.Root, path)
}

// successorWarning returns a warning when no other version of the document
// remains beside the source.
func (o *Orchestrator) successorWarning(e *Entry) string {
	stem := normalizer.BaseName(e.Source)
	entries, err := os.ReadDir(filepath.Dir(e.Source))
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == filepath.Base(e.Source) {
			continue
		}
		if normalizer.BaseName(entry.Name()) == stem {
			return ""
		}
	}
	return fmt.Sprintf("no active version of %s remains after archiving %s", stem, filepath.Base(e.Source))
}

// ConfirmExecute asks for approval to leave PLANNED. A decline, a confirmer
// error or a cancelled context cancels the batch.
func (o *Orchestrator) ConfirmExecute(ctx context.Context, b *Batch) (bool, error) {
	if b.state != StatePlanned || (b.kind != audit.RunTypeArchive && b.kind != audit.RunTypeReorganize) {
		return false, fmt.Errorf("%w: confirm execute in %s", ErrInvalidTransition, b.state)
	}
	prompt := fmt.Sprintf("Copy %d documents into the archive?", b.count(StatePlanned))
	if b.kind == audit.RunTypeReorganize {
		prompt = fmt.Sprintf("Reorganize %d loose documents into category folders?", b.count(StatePlanned))
	}
	ok, err := o.gate(ctx, b, prompt)
	b.executeApproved = ok
	return ok, err
}

// ConfirmRecycle asks for approval before originals are touched.
func (o *Orchestrator) ConfirmRecycle(ctx context.Context, b *Batch) (bool, error) {
	if b.state != StateVerified {
		return false, fmt.Errorf("%w: confirm recycle in %s", ErrInvalidTransition, b.state)
	}
	prompt := fmt.Sprintf("Copies verified. Move %d originals to the recycle bin (%s)?", b.count(StateVerified), o.recycler.Name())
	ok, err := o.gate(ctx, b, prompt)
	b.recycleApproved = ok
	return ok, err
}

func (o *Orchestrator) gate(ctx context.Context, b *Batch, prompt string) (bool, error) {
	var ok bool
	var err error
	if ctx.Err() == nil && o.confirmer != nil {
		ok, err = o.confirmer.Confirm(ctx, prompt)
	}
	if ok && err == nil && ctx.Err() == nil {
		return true, nil
	}

	o.logger.Info("batch cancelled at confirmation", "state", b.state)
	note := "declined before copying"
	if b.state == StateVerified {
		note = "declined before recycling; archive copy kept, original untouched"
	}
	if terr := b.transition(StateCancelled); terr != nil {
		return false, terr
	}
	for _, e := range b.entries {
		if e.Outcome.Status == StatusSuccess {
			o.setOutcome(e, StatusSkipped, ReasonCancelled, note)
			o.record(audit.AuditEvent{EventType: audit.EventCancel, Status: audit.StatusSkipped, ReasonCode: auditReason(ReasonCancelled)}, e)
		}
	}
	return false, err
}

// Execute ensures category folders and copies every planned operation.
func (o *Orchestrator) Execute(ctx context.Context, b *Batch) error {
	if b.state != StatePlanned {
		return fmt.Errorf("%w: execute in %s", ErrInvalidTransition, b.state)
	}
	if !b.executeApproved {
		return ErrNotConfirmed
	}

	o.eachEligible(b, StatePlanned, "copy", func(e *Entry) {
		if o.opts.OrganizeByCategory && e.Category != "" {
			if _, err := o.folders.Ensure(e.ArchiveDir, e.Category, true); err != nil {
				o.setOutcome(e, StatusFailed, ReasonCategoryFailed, err.Error())
				o.record(audit.AuditEvent{EventType: audit.EventError, Status: audit.StatusFailure, ErrorDetails: errorDetails(err, "category")}, e)
				return
			}
		}

		result, err := o.mover.Copy(e.Source, e.Destination, false, o.opts.AllowOverwrite)
		if err != nil {
			o.fail(e, err)
			return
		}
		e.Phase = StateCopied
		e.ContentHash = result.ContentHash
		o.setOutcome(e, StatusSuccess, ReasonNone, "")
		o.record(audit.AuditEvent{
			EventType:    audit.EventCopy,
			Status:       audit.StatusSuccess,
			FileIdentity: &audit.FileIdentity{ContentHash: result.ContentHash, Size: result.Size},
		}, e)
	})

	return b.transition(StateCopied)
}

// Verify independently re-checks every copied destination. A mismatch
// demotes only that operation to failed.
func (o *Orchestrator) Verify(ctx context.Context, b *Batch) error {
	from := StateCopied
	if b.kind == audit.RunTypeRecycle {
		from = StatePlanned
	}
	if b.state != from {
		return fmt.Errorf("%w: verify in %s", ErrInvalidTransition, b.state)
	}

	o.eachEligible(b, from, "verify", func(e *Entry) {
		if err := o.verifyOne(e); err != nil {
			o.fail(e, err)
			return
		}
		e.Phase = StateVerified
		o.record(audit.AuditEvent{EventType: audit.EventVerify, Status: audit.StatusSuccess}, e)
	})

	return b.transition(StateVerified)
}

func (o *Orchestrator) verifyOne(e *Entry) error {
	if err := o.mover.Verify(e.Source, e.Destination); err != nil {
		return err
	}
	if !o.opts.VerifyContent {
		return nil
	}
	match, err := audit.CompareFiles(e.Source, e.Destination)
	if err != nil {
		return &organizer.MoveError{Type: organizer.VerificationFailed, Path: e.Destination, Err: err}
	}
	if match != audit.IdentityMatches {
		return &organizer.MoveError{Type: organizer.VerificationFailed, Path: e.Destination, Err: fmt.Errorf("content check: %s", match)}
	}
	return nil
}

// Recycle moves every verified original to the recycle bin. Operations that
// failed earlier are skipped and their originals left untouched.
func (o *Orchestrator) Recycle(ctx context.Context, b *Batch) error {
	if b.state != StateVerified {
		return fmt.Errorf("%w: recycle in %s", ErrInvalidTransition, b.state)
	}
	if !b.recycleApproved {
		return ErrNotConfirmed
	}

	for _, e := range b.entries {
		if e.Outcome.Status == StatusSuccess && e.Phase != StateVerified {
			o.record(audit.AuditEvent{EventType: audit.EventSkip, Status: audit.StatusSkipped, ReasonCode: audit.ReasonNotVerified}, e)
		}
	}

	o.eachEligible(b, StateVerified, "recycle", func(e *Entry) {
		result, err := o.recycler.Recycle(e.Source, false)
		if err != nil {
			o.setOutcome(e, StatusFailed, ReasonRecycleFailed, err.Error())
			o.record(audit.AuditEvent{EventType: audit.EventError, Status: audit.StatusFailure, ReasonCode: audit.ReasonRecycleFailed, ErrorDetails: errorDetails(err, "recycle")}, e)
			o.logger.Error("recycle failed, original kept", "source", e.Source, "error", err)
			return
		}

		e.Phase = StateRecycled
		event := audit.AuditEvent{EventType: audit.EventRecycle, Status: audit.StatusSuccess}
		note := ""
		if result.ManualCleanup {
			e.ManualCleanup = true
			note = "manual cleanup required: " + result.Message
			event.ReasonCode = audit.ReasonManualCleanup
			o.logger.Warn("original left in place", "source", e.Source, "reason", result.Message)
		} else if result.Location != "" {
			event.Metadata = map[string]string{"location": result.Location}
		}
		o.setOutcome(e, StatusSuccess, ReasonNone, note)
		o.record(event, e)
	})

	return b.transition(StateRecycled)
}

// Finish closes the batch's journal run. It is safe to call more than once.
func (o *Orchestrator) Finish(b *Batch) {
	if b == nil || b.finished || !b.journaled {
		return
	}
	b.finished = true
	if err := o.journal.EndRun(runStatus(b), journalSummary(b)); err != nil {
		o.logger.Warn("failed to close journal run", "error", err)
	}
}

func (o *Orchestrator) startJournal(b *Batch) {
	if _, err := o.journal.StartRun(b.kind, o.opts.Root); err != nil {
		o.logger.Warn("journal unavailable", "error", err)
		return
	}
	b.journaled = true
}

// forEachChunk plans ops in chunks, logging memory statistics between them.
func (o *Orchestrator) forEachChunk(b *Batch, ops []Operation, phase string, plan func(Operation) *Entry) {
	o.progress.Begin(phase, len(ops))
	defer o.progress.End()

	for start := 0; start < len(ops); start += o.opts.ChunkSize {
		end := min(start+o.opts.ChunkSize, len(ops))
		for _, op := range ops[start:end] {
			b.entries = append(b.entries, plan(op))
			o.progress.Step()
		}
		o.logMemory(phase, end, len(ops))
	}
}

// eachEligible applies fn to entries that completed phase, in chunks.
func (o *Orchestrator) eachEligible(b *Batch, phase BatchState, name string, fn func(*Entry)) {
	var eligible []*Entry
	for _, e := range b.entries {
		if e.eligible(phase) {
			eligible = append(eligible, e)
		}
	}

	o.progress.Begin(name, len(eligible))
	defer o.progress.End()

	for start := 0; start < len(eligible); start += o.opts.ChunkSize {
		end := min(start+o.opts.ChunkSize, len(eligible))
		for _, e := range eligible[start:end] {
			fn(e)
			o.progress.Step()
		}
		o.logMemory(name, end, len(eligible))
	}
}

func (o *Orchestrator) logMemory(phase string, done, total int) {
	if !o.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	o.logger.Debug("chunk complete",
		"phase", phase,
		"done", done,
		"total", total,
		"heap_alloc_kb", m.HeapAlloc/1024,
		"sys_kb", m.Sys/1024,
	)
}

func (o *Orchestrator) setOutcome(e *Entry, status OutcomeStatus, reason Reason, note string) {
	e.Outcome = Outcome{
		Source:      e.Source,
		Destination: e.Destination,
		Category:    e.Category,
		MemoryType:  e.MemoryType,
		Description: e.Operation.Description,
		Timestamp:   o.now(),
		Status:      status,
		Reason:      reason,
		Note:        note,
	}
}

// fail records err as the entry's outcome.
func (o *Orchestrator) fail(e *Entry, err error) {
	status, reason := classifyError(err)
	o.setOutcome(e, status, reason, err.Error())

	if status == StatusSkipped {
		o.logger.Info("skipping", "source", e.Source, "reason", reason)
		o.record(audit.AuditEvent{EventType: audit.EventSkip, Status: audit.StatusSkipped, ReasonCode: auditReason(reason)}, e)
		return
	}
	o.logger.Error("operation failed", "source", e.Source, "destination", e.Destination, "reason", reason, "error", err)
	o.record(audit.AuditEvent{
		EventType:    audit.EventError,
		Status:       audit.StatusFailure,
		ReasonCode:   auditReason(reason),
		ErrorDetails: errorDetails(err, string(reason)),
	}, e)
}

func (o *Orchestrator) record(event audit.AuditEvent, e *Entry) {
	event.SourcePath = e.Source
	event.DestinationPath = e.Destination
	event.Category = e.Category
	event.MemoryType = e.MemoryType
	if err := o.journal.Record(event); err != nil && !errors.Is(err, audit.ErrNoActiveRun) {
		o.logger.Warn("failed to journal event", "event", event.EventType, "error", err)
	}
}

// classifyError maps a mover or recycler error to an outcome.
func classifyError(err error) (OutcomeStatus, Reason) {
	var moveErr *organizer.MoveError
	if errors.As(err, &moveErr) {
		switch moveErr.Type {
		case organizer.DestinationExists:
			return StatusSkipped, ReasonDestinationExists
		case organizer.SourceMissing:
			return StatusFailed, ReasonSourceMissing
		case organizer.VerificationFailed:
			return StatusFailed, ReasonVerificationFailed
		case organizer.PermissionDenied:
			return StatusFailed, ReasonPermissionDenied
		case organizer.RemoveFailed:
			return StatusFailed, ReasonRemoveFailed
		}
		return StatusFailed, ReasonCopyFailed
	}
	if errors.Is(err, recycle.ErrRecycleFailed) {
		return StatusFailed, ReasonRecycleFailed
	}
	return StatusFailed, ReasonCopyFailed
}

func auditReason(r Reason) audit.ReasonCode {
	switch r {
	case ReasonDestinationExists:
		return audit.ReasonDestinationExists
	case ReasonSourceMissing:
		return audit.ReasonSourceMissing
	case ReasonVerificationFailed:
		return audit.ReasonVerificationFailed
	case ReasonRecycleFailed:
		return audit.ReasonRecycleFailed
	case ReasonUnsupportedOperation:
		return audit.ReasonUnsupported
	case ReasonCancelled:
		return audit.ReasonDeclined
	}
	return ""
}

func errorDetails(err error, operation string) *audit.ErrorDetails {
	errType := "ERROR"
	var moveErr *organizer.MoveError
	if errors.As(err, &moveErr) {
		errType = string(moveErr.Type)
	}
	return &audit.ErrorDetails{ErrorType: errType, ErrorMessage: err.Error(), Operation: operation}
}

func runStatus(b *Batch) audit.RunStatus {
	switch b.state {
	case StateFailed:
		return audit.RunStatusFailed
	case StateCancelled:
		return audit.RunStatusCancelled
	}
	if b.HasFailures() {
		return audit.RunStatusPartial
	}
	return audit.RunStatusCompleted
}
