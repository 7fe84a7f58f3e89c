package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"memarchive/internal/audit"
	"memarchive/internal/classifier"
	"memarchive/internal/config"
	"memarchive/internal/orchestrator"
	"memarchive/internal/output"
	"memarchive/internal/prompt"
	"memarchive/internal/recycle"
	"memarchive/internal/report"
	"memarchive/internal/scanner"
	"memarchive/internal/storagelog"
)

const (
	modePlan = "plan"
	modeAct  = "act"
)

// errNonInteractive is returned when a gate would block on a stdin that is
// not a terminal.
var errNonInteractive = errors.New("stdin is not a terminal: pass --yes to confirm non-interactively or --mode plan to preview")

// gateFlags select how confirmation gates are answered.
type gateFlags struct {
	mode string
	yes  bool
}

func addGateFlags(cmd *cobra.Command, g *gateFlags) {
	cmd.Flags().StringVar(&g.mode, "mode", modeAct, "plan only previews the batch, act executes it (plan, act)")
	cmd.Flags().BoolVarP(&g.yes, "yes", "y", false, "approve every confirmation gate")
	cmd.Flags().BoolVar(&g.yes, "non-interactive", false, "alias for --yes")
}

func (g *gateFlags) planOnly() (bool, error) {
	switch g.mode {
	case modePlan:
		return true, nil
	case modeAct, "":
		return false, nil
	default:
		return false, fmt.Errorf("invalid mode %q: must be %s or %s", g.mode, modePlan, modeAct)
	}
}

func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("force-overwrite", false, "replace existing archive copies instead of skipping them")
	cmd.Flags().Bool("organize-by-category", false, "file archived documents into category folders")
	addDetectionFlag(cmd)
}

func addDetectionFlag(cmd *cobra.Command) {
	cmd.Flags().String("category-detection", "", "category detection mode (basic, smart, content-based)")
}

func addFormatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVar(format, "format", "text", "output format (text, json, yaml)")
}

// applyOverrides layers command-line flags over loaded settings.
func applyOverrides(cmd *cobra.Command, s *config.Settings, flags *globalFlags) error {
	if flags.root != "" {
		s.Root = config.ExpandPath(flags.root)
	}
	if s.Root != "" {
		abs, err := filepath.Abs(s.Root)
		if err != nil {
			return fmt.Errorf("failed to resolve root %s: %w", s.Root, err)
		}
		s.Root = abs
	}

	f := cmd.Flags()
	if f.Changed("force-overwrite") {
		s.ForceOverwrite, _ = f.GetBool("force-overwrite")
	}
	if f.Changed("organize-by-category") {
		s.OrganizeByCategory, _ = f.GetBool("organize-by-category")
	}
	if f.Changed("category-detection") {
		s.CategoryDetection, _ = f.GetString("category-detection")
	}
	return nil
}

// session carries the resolved settings and shared collaborators of one
// command invocation.
type session struct {
	cmd        *cobra.Command
	settings   config.Settings
	out        *output.Output
	classifier *classifier.Classifier
	mode       classifier.Mode
	logger     *slog.Logger
	journal    *audit.Writer
}

func newSession(cmd *cobra.Command, flags *globalFlags, s config.Settings) (*session, error) {
	mode, err := classifier.ParseMode(s.CategoryDetection)
	if err != nil {
		return nil, &config.ConfigError{Type: config.ValidationError, Message: err.Error(), Err: err}
	}

	logger := slog.Default()
	out := output.New(output.Config{
		Verbose:   flags.verbose,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		IsTTY:     isTerminal(cmd.OutOrStdout()),
	})

	return &session{
		cmd:      cmd,
		settings: s,
		out:      out,
		classifier: classifier.New(classifier.Options{
			Root:        s.Root,
			SampleLines: s.ContentSampleLines,
			Logger:      logger,
		}),
		mode:   mode,
		logger: logger,
	}, nil
}

// loadSession reads settings only. Commands that need an operation list use
// loadDocument instead.
func loadSession(cmd *cobra.Command, flags *globalFlags) (*session, error) {
	s, err := config.LoadSettings(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cmd, s, flags); err != nil {
		return nil, err
	}
	sess, err := newSession(cmd, flags, *s)
	if err != nil {
		return nil, err
	}
	if err := sess.validate(config.ValidateEnvironment(&sess.settings)); err != nil {
		return nil, err
	}
	return sess, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// validate prints warnings and returns the first validation error.
func (s *session) validate(result *config.ValidationResult) error {
	for _, w := range result.Warnings {
		s.out.Warning("%s: %s", w.Field, w.Message)
	}
	for _, e := range result.Errors {
		s.logger.Debug("configuration error", "field", e.Field, "message", e.Message)
	}
	return result.Err()
}

// confirmer picks how gates are answered. Plan mode declines everything so no
// phase past PLAN can run.
func (s *session) confirmer(g *gateFlags) (orchestrator.Confirmer, error) {
	planOnly, err := g.planOnly()
	if err != nil {
		return nil, err
	}
	switch {
	case planOnly:
		return prompt.DeclineConfirmer{}, nil
	case g.yes:
		return prompt.AutoConfirmer{Writer: s.out.Writer()}, nil
	case !prompt.IsInteractive():
		return nil, errNonInteractive
	default:
		return prompt.NewInteractiveConfirmer(s.cmd.InOrStdin(), s.out.Writer()), nil
	}
}

// openJournal opens the audit journal unless auditing is disabled.
func (s *session) openJournal() error {
	if !s.settings.Audit.Enabled {
		return nil
	}
	cfg := s.settings.Audit
	cfg.LogDirectory = s.settings.AuditDir()
	w, err := audit.NewWriter(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to open audit journal: %w", err)
	}
	s.journal = w
	return nil
}

func (s *session) close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("failed to close audit journal", "error", err)
		}
	}
}

func (s *session) orchestrator(confirmer orchestrator.Confirmer) *orchestrator.Orchestrator {
	opts := orchestrator.Options{
		Root:               s.settings.Root,
		AllowOverwrite:     s.settings.ForceOverwrite,
		OrganizeByCategory: s.settings.OrganizeByCategory,
		Mode:               s.mode,
		ChunkSize:          s.settings.ChunkSize,
		VerifyContent:      s.settings.VerifyContent,
	}
	options := []orchestrator.Option{
		orchestrator.WithClassifier(s.classifier),
		orchestrator.WithRecycler(recycle.Default()),
		orchestrator.WithProgress(s.out),
		orchestrator.WithLogger(s.logger),
	}
	if s.journal != nil {
		options = append(options, orchestrator.WithJournal(s.journal))
	}
	return orchestrator.New(opts, confirmer, options...)
}

func (s *session) analyzer() (*scanner.Analyzer, error) {
	return scanner.NewAnalyzer(s.classifier, scanner.AnalyzerOptions{
		Mode:          s.mode,
		DocumentGlob:  s.settings.DocumentGlob,
		SymlinkPolicy: s.settings.SymlinkPolicy,
		Logger:        s.logger,
	})
}

// batchResult collects the outcomes of one or more batches for reporting.
type batchResult struct {
	outcomes []orchestrator.Outcome
	warnings []string
	executed bool
	summary  *orchestrator.Summary
}

func (r *batchResult) add(b *orchestrator.Batch) {
	if b == nil {
		return
	}
	r.outcomes = append(r.outcomes, b.Outcomes()...)
	r.warnings = append(r.warnings, b.Warnings()...)
	r.executed = r.executed || b.Executed()
}

func (r *batchResult) failed() int {
	n := 0
	for _, o := range r.outcomes {
		if o.Status == orchestrator.StatusFailed {
			n++
		}
	}
	return n
}

// finish prints the outcome summary, writes the report file and returns an
// error when any operation failed.
func (s *session) finish(r *batchResult, reportFile string) error {
	s.out.Header("Summary")
	if r.summary != nil {
		s.out.Info("%s", r.summary.String())
	}
	for _, w := range r.warnings {
		s.out.Warning("%s", w)
	}
	for _, o := range r.outcomes {
		if o.Status == orchestrator.StatusFailed {
			s.out.Error("%s -> %s: %s %s", o.Source, o.Destination, o.Reason, o.Note)
		}
	}

	if reportFile != "" {
		content := report.Render(r.outcomes, report.Options{
			Executed: r.executed,
			Root:     s.settings.Root,
			Now:      time.Now(),
			Warnings: r.warnings,
		})
		if err := report.WriteFile(config.ExpandPath(reportFile), content); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		s.out.Success("Report written to %s", reportFile)
	}

	if n := r.failed(); n > 0 {
		return fmt.Errorf("%d of %d operations failed", n, len(r.outcomes))
	}
	return nil
}

// recordStorageLog appends an entry for the successful outcomes. A missing
// log is only a warning.
func (s *session) recordStorageLog(r *batchResult, kind storagelog.Kind) {
	if !r.executed {
		return
	}
	path := s.settings.StorageLogPath()
	err := storagelog.Update(path, r.outcomes, kind, time.Now())
	switch {
	case err == nil:
		s.out.Verbose("Storage log updated: %s", path)
	case errors.Is(err, storagelog.ErrNothingToRecord):
	case errors.Is(err, storagelog.ErrLogMissing):
		s.out.Warning("storage log not found, skipping update: %s", path)
	default:
		s.out.Warning("failed to update storage log: %v", err)
	}
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid format %q: must be text, json or yaml", format)
	}
}
