package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memarchive/internal/audit"
	"memarchive/internal/category"
	"memarchive/internal/classifier"
	"memarchive/internal/recycle"
	"memarchive/internal/scanner"
)

type scriptedConfirmer struct {
	answers []bool
	prompts []string
	err     error
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return false, c.err
	}
	if len(c.answers) == 0 {
		return false, nil
	}
	answer := c.answers[0]
	c.answers = c.answers[1:]
	return answer, nil
}

func yes(n int) *scriptedConfirmer {
	answers := make([]bool, n)
	for i := range answers {
		answers[i] = true
	}
	return &scriptedConfirmer{answers: answers}
}

type memJournal struct {
	runTypes []audit.RunType
	events   []audit.AuditEvent
	ended    []audit.RunStatus
	summary  audit.RunSummary
}

func (j *memJournal) StartRun(t audit.RunType, root string) (audit.RunID, error) {
	j.runTypes = append(j.runTypes, t)
	return "run", nil
}

func (j *memJournal) Record(e audit.AuditEvent) error {
	j.events = append(j.events, e)
	return nil
}

func (j *memJournal) EndRun(status audit.RunStatus, summary audit.RunSummary) error {
	j.ended = append(j.ended, status)
	j.summary = summary
	return nil
}

func (j *memJournal) eventTypes() []audit.EventType {
	out := make([]audit.EventType, len(j.events))
	for i, e := range j.events {
		out[i] = e.EventType
	}
	return out
}

// stubRecycler moves originals into dir, except those listed in fail.
type stubRecycler struct {
	dir  string
	fail map[string]bool
}

func (r *stubRecycler) Name() string { return "stub" }

func (r *stubRecycler) Recycle(path string, dryRun bool) (recycle.Result, error) {
	if r.fail[filepath.Base(path)] {
		return recycle.Result{Path: path}, fmt.Errorf("%w: %s: device busy", recycle.ErrRecycleFailed, path)
	}
	target := filepath.Join(r.dir, filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		return recycle.Result{Path: path}, fmt.Errorf("%w: %v", recycle.ErrRecycleFailed, err)
	}
	return recycle.Result{Path: path, Recycled: true, Location: target}, nil
}

type countingProgress struct {
	phases []string
	steps  int
}

func (p *countingProgress) Begin(phase string, total int) { p.phases = append(p.phases, phase) }
func (p *countingProgress) Step()                         { p.steps++ }
func (p *countingProgress) End()                          {}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func move(source, folder string) Operation {
	return Operation{OperationType: MoveOperation, Source: source, DestinationFolder: folder}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func newTestOrchestrator(root string, opts Options, c Confirmer, extra ...Option) *Orchestrator {
	opts.Root = root
	base := []Option{
		WithRecycler(recycle.Inert{}),
		WithClock(fixedClock()),
		WithFolders(category.NewManager(category.WithClock(fixedClock()))),
	}
	return New(opts, c, append(base, extra...)...)
}

func TestRun_FreshDestination(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "core", "active", "progress_v1.0.md")
	writeFile(t, src, "# Progress\nall green\n")
	trash := recycle.NewFreedesktopTrash(t.TempDir())
	journal := &memJournal{}

	o := newTestOrchestrator(root, Options{OrganizeByCategory: true}, yes(2),
		WithRecycler(trash), WithJournal(journal))

	b, err := o.Run(context.Background(), []Operation{move("core/active/progress_v1.0.md", "core/archive")})
	require.NoError(t, err)
	assert.Equal(t, StateRecycled, b.State())

	dest := filepath.Join(root, "core", "archive", "progress", "progress_v1.0.md")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "# Progress\nall green\n", string(data))
	assert.True(t, category.HasRecord(filepath.Dir(dest)))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "original should be in the trash")
	_, err = os.Stat(filepath.Join(trash.Dir(), "files", "progress_v1.0.md"))
	assert.NoError(t, err)

	outcomes := b.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusSuccess, outcomes[0].Status)
	assert.Equal(t, dest, outcomes[0].Destination)
	assert.Equal(t, "progress", outcomes[0].Category)
	assert.Equal(t, "core", outcomes[0].MemoryType)

	assert.Equal(t, []audit.RunType{audit.RunTypeArchive}, journal.runTypes)
	assert.Equal(t, []audit.EventType{audit.EventPlan, audit.EventCopy, audit.EventVerify, audit.EventRecycle}, journal.eventTypes())
	assert.Equal(t, []audit.RunStatus{audit.RunStatusCompleted}, journal.ended)
	assert.Equal(t, audit.RunSummary{Planned: 1, Succeeded: 1}, journal.summary)
	assert.NotEmpty(t, b.Entries()[0].ContentHash)
}

func TestRun_ExistingDestinationIsSkipped(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "core", "active", "progress_v1.0.md")
	dest := filepath.Join(root, "core", "archive", "progress_v1.0.md")
	writeFile(t, src, "new content")
	writeFile(t, dest, "old content")

	confirmer := yes(2)
	o := newTestOrchestrator(root, Options{}, confirmer)

	b, err := o.Run(context.Background(), []Operation{move("core/active/progress_v1.0.md", "core/archive")})
	require.NoError(t, err)

	outcome := b.Outcomes()[0]
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, ReasonDestinationExists, outcome.Reason)
	assert.Empty(t, confirmer.prompts, "nothing planned, no gate expected")

	data, _ := os.ReadFile(dest)
	assert.Equal(t, "old content", string(data))
	data, _ = os.ReadFile(src)
	assert.Equal(t, "new content", string(data))
}

func TestRun_AllowOverwrite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "active", "notes_v2.md"), "new content")
	dest := filepath.Join(root, "archive", "notes_v2.md")
	writeFile(t, dest, "old")

	o := newTestOrchestrator(root, Options{AllowOverwrite: true}, yes(2))
	b, err := o.Run(context.Background(), []Operation{move("active/notes_v2.md", "archive")})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, b.Outcomes()[0].Status)
	data, _ := os.ReadFile(dest)
	assert.Equal(t, "new content", string(data))
}

func TestRun_InertRecyclerLeavesOriginal(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "episodic", "active", "session_v1.0.md")
	writeFile(t, src, "session notes")

	o := newTestOrchestrator(root, Options{OrganizeByCategory: true}, yes(2))
	b, err := o.Run(context.Background(), []Operation{move("episodic/active/session_v1.0.md", "episodic/archive")})
	require.NoError(t, err)
	assert.Equal(t, StateRecycled, b.State())

	outcome := b.Outcomes()[0]
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Contains(t, outcome.Note, "manual cleanup")
	assert.Equal(t, "sessions", outcome.Category)

	_, err = os.Stat(src)
	assert.NoError(t, err, "original must remain in place")
	assert.Equal(t, 1, GenerateSummary(b, 0, false).ManualCleanup)
}

func TestRun_DeclineFirstGate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "core", "active", "techContext_v1.0.md"), "stack")
	journal := &memJournal{}

	o := newTestOrchestrator(root, Options{OrganizeByCategory: true}, &scriptedConfirmer{answers: []bool{false}}, WithJournal(journal))
	b, err := o.Run(context.Background(), []Operation{move("core/active/techContext_v1.0.md", "core/archive")})
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, b.State())
	_, err = os.Stat(filepath.Join(root, "core", "archive"))
	assert.True(t, os.IsNotExist(err), "declining must leave no side effects")
	assert.Contains(t, journal.eventTypes(), audit.EventCancel)
	assert.Equal(t, []audit.RunStatus{audit.RunStatusCancelled}, journal.ended)

	outcome := b.Outcomes()[0]
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, ReasonCancelled, outcome.Reason)
	assert.False(t, b.Executed())
}

func TestRun_DeclineRecycleGate(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "core", "active", "techContext_v1.0.md")
	writeFile(t, src, "stack")
	journal := &memJournal{}

	confirmer := &scriptedConfirmer{answers: []bool{true, false}}
	o := newTestOrchestrator(root, Options{}, confirmer, WithJournal(journal))
	b, err := o.Run(context.Background(), []Operation{move("core/active/techContext_v1.0.md", "core/archive")})
	require.NoError(t, err)

	assert.Equal(t, StateCancelled, b.State())
	assert.Len(t, confirmer.prompts, 2)
	_, err = os.Stat(filepath.Join(root, "core", "archive", "techContext_v1.0.md"))
	assert.NoError(t, err)
	_, err = os.Stat(src)
	assert.NoError(t, err)

	outcome := b.Outcomes()[0]
	assert.Equal(t, StatusSkipped, outcome.Status, "a declined recycle is not a success")
	assert.Equal(t, ReasonCancelled, outcome.Reason)
	assert.Contains(t, outcome.Note, "original untouched")
	assert.True(t, b.Executed())

	s := GenerateSummary(b, 0, false)
	assert.Zero(t, s.Succeeded)
	assert.Equal(t, 1, s.Skipped)

	assert.Equal(t, []audit.RunStatus{audit.RunStatusCancelled}, journal.ended)
	assert.Zero(t, journal.summary.Succeeded)
	last := journal.events[len(journal.events)-1]
	assert.Equal(t, audit.EventCancel, last.EventType)
	assert.Equal(t, audit.ReasonDeclined, last.ReasonCode)
}

func TestRun_CancelledContextDeclines(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "doc_v1.md"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	confirmer := yes(2)
	o := newTestOrchestrator(root, Options{}, confirmer)
	b, err := o.Run(ctx, []Operation{move("a/doc_v1.md", "archive")})
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, b.State())
	assert.Empty(t, confirmer.prompts)
}

func TestRun_ConfirmerError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "doc_v1.md"), "x")

	boom := errors.New("stdin closed")
	o := newTestOrchestrator(root, Options{}, &scriptedConfirmer{err: boom})
	b, err := o.Run(context.Background(), []Operation{move("a/doc_v1.md", "archive")})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StateCancelled, b.State())
}

func TestPlan_AllFail(t *testing.T) {
	root := t.TempDir()
	journal := &memJournal{}
	o := newTestOrchestrator(root, Options{}, yes(2), WithJournal(journal))

	b, err := o.Run(context.Background(), []Operation{
		move("missing_a.md", "archive"),
		move("missing_b.md", "archive"),
	})
	assert.ErrorIs(t, err, ErrPlanFailed)
	assert.Equal(t, StateFailed, b.State())
	for _, out := range b.Outcomes() {
		assert.Equal(t, ReasonSourceMissing, out.Reason)
	}
	assert.Equal(t, []audit.RunStatus{audit.RunStatusFailed}, journal.ended)
}

func TestPlan_EmptyBatch(t *testing.T) {
	o := newTestOrchestrator(t.TempDir(), Options{}, yes(2))
	b, err := o.Plan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatePlanned, b.State())
	assert.Empty(t, b.Outcomes())
}

func TestPlan_UnsupportedOperation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "x")
	writeFile(t, filepath.Join(root, "b.md"), "y")

	o := newTestOrchestrator(root, Options{}, yes(2))
	b, err := o.Plan(context.Background(), []Operation{
		{OperationType: "delete", Source: "a.md", DestinationFolder: "archive"},
		move("b.md", "archive"),
	})
	require.NoError(t, err)

	outcomes := b.Outcomes()
	assert.Equal(t, StatusSkipped, outcomes[0].Status)
	assert.Equal(t, ReasonUnsupportedOperation, outcomes[0].Reason)
	assert.Equal(t, StatusSuccess, outcomes[1].Status)
}

func TestRun_PartialFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "active", "progress_v1.0.md"), "ok")

	o := newTestOrchestrator(root, Options{}, yes(2))
	b, err := o.Run(context.Background(), []Operation{
		move("active/missing_v1.0.md", "archive"),
		move("active/progress_v1.0.md", "archive"),
	})
	require.NoError(t, err)

	assert.True(t, b.HasFailures())
	outcomes := b.Outcomes()
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, ReasonSourceMissing, outcomes[0].Reason)
	assert.NotEmpty(t, outcomes[0].Note)
	assert.Equal(t, StatusSuccess, outcomes[1].Status)

	s := GenerateSummary(b, time.Second, true)
	assert.Equal(t, 2, s.Planned)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, map[string]int{"progress": 1}, s.ByCategory)
}

func TestVerify_DemotesDrift(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "active", "a_v1.md"), "aaaa")
	writeFile(t, filepath.Join(root, "active", "b_v1.md"), "bbbb")
	ctx := context.Background()

	o := newTestOrchestrator(root, Options{}, yes(2))
	b, err := o.Plan(ctx, []Operation{move("active/a_v1.md", "archive"), move("active/b_v1.md", "archive")})
	require.NoError(t, err)

	ok, err := o.ConfirmExecute(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, o.Execute(ctx, b))
	assert.Equal(t, StateCopied, b.State())

	writeFile(t, filepath.Join(root, "archive", "a_v1.md"), "tampered with")

	require.NoError(t, o.Verify(ctx, b))
	outcomes := b.Outcomes()
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, ReasonVerificationFailed, outcomes[0].Reason)
	assert.Equal(t, StatusSuccess, outcomes[1].Status)

	ok, err = o.ConfirmRecycle(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, o.Recycle(ctx, b))

	data, _ := os.ReadFile(filepath.Join(root, "archive", "a_v1.md"))
	assert.Equal(t, "tampered with", string(data), "failed destination left for inspection")
	assert.Equal(t, StatusFailed, b.Outcomes()[0].Status)
}

func TestVerify_ContentCheck(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "active", "a_v1.md"), "aaaa")
	ctx := context.Background()

	o := newTestOrchestrator(root, Options{VerifyContent: true}, yes(1))
	b, err := o.Plan(ctx, []Operation{move("active/a_v1.md", "archive")})
	require.NoError(t, err)
	_, err = o.ConfirmExecute(ctx, b)
	require.NoError(t, err)
	require.NoError(t, o.Execute(ctx, b))

	writeFile(t, filepath.Join(root, "archive", "a_v1.md"), "abcd") // same size

	require.NoError(t, o.Verify(ctx, b))
	assert.Equal(t, ReasonVerificationFailed, b.Outcomes()[0].Reason)
}

func TestPhasesOutOfOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_v1.md"), "x")
	ctx := context.Background()

	o := newTestOrchestrator(root, Options{}, yes(2))
	b, err := o.Plan(ctx, []Operation{move("a_v1.md", "archive")})
	require.NoError(t, err)

	assert.ErrorIs(t, o.Execute(ctx, b), ErrNotConfirmed)
	assert.ErrorIs(t, o.Verify(ctx, b), ErrInvalidTransition)
	assert.ErrorIs(t, o.Recycle(ctx, b), ErrInvalidTransition)
	_, err = o.ConfirmRecycle(ctx, b)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	preview, err := o.Preview(ctx, []Operation{move("a_v1.md", "archive")})
	require.NoError(t, err)
	_, err = o.ConfirmExecute(ctx, preview)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPlan_SuccessorWarning(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "active", "activeContext_v1.0.md"), "old")
	writeFile(t, filepath.Join(root, "active", "activeContext_v1.1.md"), "new")
	writeFile(t, filepath.Join(root, "active", "projectbrief_v1.0.md"), "only")

	o := newTestOrchestrator(root, Options{}, nil)
	b, err := o.Preview(context.Background(), []Operation{
		move("active/activeContext_v1.0.md", "archive"),
		move("active/projectbrief_v1.0.md", "archive"),
	})
	require.NoError(t, err)

	warnings := b.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "projectbrief")
}

func TestRecycleVerified(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "core", "active", "progress_v1.0.md")
	writeFile(t, src, "progress")
	ops := []Operation{move("core/active/progress_v1.0.md", "core/archive"), move("core/active/never_v1.md", "core/archive")}
	writeFile(t, filepath.Join(root, "core", "active", "never_v1.md"), "not archived")
	ctx := context.Background()

	first := newTestOrchestrator(root, Options{}, &scriptedConfirmer{answers: []bool{true, false}})
	_, err := first.Run(ctx, ops[:1])
	require.NoError(t, err)

	trash := recycle.NewFreedesktopTrash(t.TempDir())
	journal := &memJournal{}
	confirmer := yes(1)
	second := newTestOrchestrator(root, Options{}, confirmer, WithRecycler(trash), WithJournal(journal))
	b, err := second.RecycleVerified(ctx, ops)
	require.NoError(t, err)

	assert.Equal(t, StateRecycled, b.State())
	assert.Len(t, confirmer.prompts, 1)
	outcomes := b.Outcomes()
	assert.Equal(t, StatusSuccess, outcomes[0].Status)
	assert.Equal(t, ReasonNotArchived, outcomes[1].Reason)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "core", "active", "never_v1.md"))
	assert.NoError(t, err)
	assert.NotContains(t, journal.eventTypes(), audit.EventCopy)
	assert.Equal(t, []audit.RunType{audit.RunTypeRecycle}, journal.runTypes)
}

func TestRun_RecycleFailureIsPerOperation(t *testing.T) {
	root := t.TempDir()
	stuck := filepath.Join(root, "core", "active", "progress_v1.0.md")
	freed := filepath.Join(root, "core", "active", "techContext_v1.0.md")
	writeFile(t, stuck, "progress")
	writeFile(t, freed, "stack")

	recycler := &stubRecycler{dir: t.TempDir(), fail: map[string]bool{"progress_v1.0.md": true}}
	journal := &memJournal{}
	o := newTestOrchestrator(root, Options{}, yes(2), WithRecycler(recycler), WithJournal(journal))

	b, err := o.Run(context.Background(), []Operation{
		move("core/active/progress_v1.0.md", "core/archive"),
		move("core/active/techContext_v1.0.md", "core/archive"),
	})
	require.NoError(t, err)
	assert.Equal(t, StateRecycled, b.State())

	outcomes := b.Outcomes()
	assert.Equal(t, StatusFailed, outcomes[0].Status)
	assert.Equal(t, ReasonRecycleFailed, outcomes[0].Reason)
	assert.Contains(t, outcomes[0].Note, "device busy")
	assert.Equal(t, StatusSuccess, outcomes[1].Status)

	data, err := os.ReadFile(stuck)
	require.NoError(t, err, "original kept when recycling fails")
	assert.Equal(t, "progress", string(data))
	_, err = os.Stat(filepath.Join(root, "core", "archive", "progress_v1.0.md"))
	assert.NoError(t, err, "archive copy kept")

	_, err = os.Stat(freed)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(recycler.dir, "techContext_v1.0.md"))
	assert.NoError(t, err)

	assert.Equal(t, []audit.RunStatus{audit.RunStatusPartial}, journal.ended)
	assert.Equal(t, audit.RunSummary{Planned: 2, Succeeded: 1, Failed: 1}, journal.summary)
	var reasons []audit.ReasonCode
	for _, e := range journal.events {
		if e.EventType == audit.EventError {
			reasons = append(reasons, e.ReasonCode)
		}
	}
	assert.Equal(t, []audit.ReasonCode{audit.ReasonRecycleFailed}, reasons)
}

func TestRecycleVerified_NoCopyVerifiesFailsBatch(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "core", "active", "progress_v1.0.md")
	writeFile(t, src, "progress")
	writeFile(t, filepath.Join(root, "core", "archive", "progress_v1.0.md"), "a different, longer document")

	journal := &memJournal{}
	confirmer := yes(1)
	o := newTestOrchestrator(root, Options{}, confirmer, WithJournal(journal))
	b, err := o.RecycleVerified(context.Background(), []Operation{move("core/active/progress_v1.0.md", "core/archive")})
	require.NoError(t, err)

	assert.Equal(t, StateFailed, b.State())
	assert.True(t, b.State().Terminal())
	assert.Empty(t, confirmer.prompts, "nothing verified, no recycle gate")
	assert.Equal(t, ReasonVerificationFailed, b.Outcomes()[0].Reason)
	assert.Equal(t, []audit.RunStatus{audit.RunStatusFailed}, journal.ended)

	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestTransitions_VerifiedCanFail(t *testing.T) {
	b := &Batch{state: StateVerified}
	require.NoError(t, b.transition(StateFailed))
	assert.Error(t, b.transition(StateRecycled), "FAILED is terminal")
}

func TestRun_Chunking(t *testing.T) {
	root := t.TempDir()
	var ops []Operation
	for i := 0; i < 25; i++ {
		name := "doc" + strings.Repeat("x", i) + "_v1.md"
		writeFile(t, filepath.Join(root, "active", name), "content")
		ops = append(ops, move("active/"+name, "archive"))
	}

	progress := &countingProgress{}
	o := newTestOrchestrator(root, Options{ChunkSize: 10}, yes(2), WithProgress(progress))
	b, err := o.Run(context.Background(), ops)
	require.NoError(t, err)

	assert.Equal(t, 25, GenerateSummary(b, 0, false).Succeeded)
	assert.Equal(t, []string{"plan", "copy", "verify", "recycle"}, progress.phases)
	assert.Equal(t, 100, progress.steps)
}

func TestReorganize(t *testing.T) {
	root := t.TempDir()
	archive := filepath.Join(root, "core", "archive")
	writeFile(t, filepath.Join(archive, "activeContext_v1.0.md"), "ctx")
	writeFile(t, filepath.Join(archive, "progress_v1.0.md"), "progress")
	writeFile(t, filepath.Join(archive, "progress", "progress_v1.0.md"), "older copy")

	c := classifier.New(classifier.Options{Root: root})
	analyzer, err := scanner.NewAnalyzer(c, scanner.AnalyzerOptions{})
	require.NoError(t, err)
	analysis, err := analyzer.AnalyzeDir(archive, "core")
	require.NoError(t, err)
	require.Equal(t, 2, analysis.LooseFileCount())

	journal := &memJournal{}
	confirmer := yes(1)
	o := newTestOrchestrator(root, Options{}, confirmer, WithClassifier(c), WithJournal(journal))
	b, err := o.Reorganize(context.Background(), analysis)
	require.NoError(t, err)

	assert.Equal(t, StateRemoved, b.State())
	assert.Len(t, confirmer.prompts, 1)

	byCategory := make(map[string]Outcome)
	for _, out := range b.Outcomes() {
		byCategory[out.Category] = out
	}
	assert.Equal(t, StatusSuccess, byCategory["activeContext"].Status)
	assert.Equal(t, StatusSkipped, byCategory["progress"].Status)

	_, err = os.Stat(filepath.Join(archive, "activeContext_v1.0.md"))
	assert.True(t, os.IsNotExist(err), "verified loose original is removed")
	_, err = os.Stat(filepath.Join(archive, "activeContext", "activeContext_v1.0.md"))
	assert.NoError(t, err)
	assert.True(t, category.HasRecord(filepath.Join(archive, "activeContext")))

	data, _ := os.ReadFile(filepath.Join(archive, "progress_v1.0.md"))
	assert.Equal(t, "progress", string(data), "skipped loose file stays")

	assert.Contains(t, journal.eventTypes(), audit.EventRemove)
	assert.NotContains(t, journal.eventTypes(), audit.EventRecycle)
	assert.Equal(t, []audit.RunType{audit.RunTypeReorganize}, journal.runTypes)
}
