package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"memarchive/internal/classifier"
	"memarchive/internal/config"
	"memarchive/internal/report"
	"memarchive/internal/scanner"
)

type analyzeOptions struct {
	format     string
	reportFile string
	types      []string
}

func analyzeCmd(flags *globalFlags) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report how well each archive directory is organized",
		Long: `Analyze inspects <root>/<type>/archive for every memory type. It counts
loose documents and category folders, proposes a category for each loose
document and lists recommendations. Nothing is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd, flags, opts)
		},
	}

	addFormatFlag(cmd, &opts.format)
	addDetectionFlag(cmd)
	addTypeFlag(cmd, &opts.types)
	cmd.Flags().StringVar(&opts.reportFile, "report-file", "", "write the markdown analysis report to this path")

	return cmd
}

func addTypeFlag(cmd *cobra.Command, types *[]string) {
	cmd.Flags().StringSliceVar(types, "type", nil, "limit to these memory types (core, episodic, semantic, procedural)")
}

func runAnalyze(cmd *cobra.Command, flags *globalFlags, opts *analyzeOptions) error {
	sess, err := loadSession(cmd, flags)
	if err != nil {
		return err
	}
	analyses, err := analyzeBank(sess, opts.types)
	if err != nil {
		return err
	}

	markdown := report.RenderAnalysis(analyses, time.Now())
	if opts.format == "text" {
		sess.out.Plain(markdown)
	} else if err := writeStructured(sess.out.Writer(), opts.format, analyses); err != nil {
		return err
	}

	if opts.reportFile != "" {
		if err := report.WriteFile(config.ExpandPath(opts.reportFile), markdown); err != nil {
			return fmt.Errorf("failed to write analysis report: %w", err)
		}
		sess.out.Success("Analysis written to %s", opts.reportFile)
	}
	return nil
}

// analyzeBank analyzes the archive directory of each selected memory type.
func analyzeBank(sess *session, types []string) ([]*scanner.Analysis, error) {
	selected, err := memoryTypes(types)
	if err != nil {
		return nil, err
	}
	analyzer, err := sess.analyzer()
	if err != nil {
		return nil, &config.ConfigError{Type: config.ValidationError, Message: err.Error(), Err: err}
	}
	if len(types) == 0 {
		return analyzer.AnalyzeBank(sess.settings.Root)
	}

	analyses := make([]*scanner.Analysis, 0, len(selected))
	for _, t := range selected {
		a, err := analyzer.AnalyzeDir(archiveDir(sess.settings.Root, t), string(t))
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

// memoryTypes resolves --type values; none selects every type.
func memoryTypes(names []string) ([]classifier.MemoryType, error) {
	if len(names) == 0 {
		return classifier.MemoryTypes, nil
	}
	var out []classifier.MemoryType
	for _, name := range names {
		t := classifier.MemoryType(strings.ToLower(strings.TrimSpace(name)))
		known := false
		for _, m := range classifier.MemoryTypes {
			if m == t {
				known = true
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown memory type %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}

func archiveDir(root string, t classifier.MemoryType) string {
	return filepath.Join(root, string(t), scanner.ArchiveDirName)
}
