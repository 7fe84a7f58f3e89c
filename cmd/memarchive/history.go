package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"memarchive/internal/audit"
)

type historyOptions struct {
	format string
	limit  int
}

func historyCmd(flags *globalFlags) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs from the audit journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, flags, opts)
		},
	}

	addFormatFlag(cmd, &opts.format)
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "show at most this many recent runs (0 for all)")

	return cmd
}

func runHistory(cmd *cobra.Command, flags *globalFlags, opts *historyOptions) error {
	sess, err := loadSession(cmd, flags)
	if err != nil {
		return err
	}

	dir := sess.settings.AuditDir()
	runs, err := audit.NewReader(dir).ListRuns()
	if err != nil {
		return fmt.Errorf("failed to read audit journal: %w", err)
	}
	if opts.limit > 0 && len(runs) > opts.limit {
		runs = runs[len(runs)-opts.limit:]
	}

	if opts.format != "text" {
		return writeStructured(sess.out.Writer(), opts.format, runs)
	}
	if len(runs) == 0 {
		sess.out.Info("No runs recorded in %s", dir)
		return nil
	}

	tw := tabwriter.NewWriter(sess.out.Writer(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTYPE\tSTATUS\tSTARTED\tPLANNED\tSUCCEEDED\tFAILED\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			shortID(r.RunID),
			r.RunType,
			r.Status,
			r.StartTime.Local().Format("2006-01-02 15:04:05"),
			r.Summary.Planned,
			r.Summary.Succeeded,
			r.Summary.Failed,
			r.Summary.Skipped,
		)
	}
	return tw.Flush()
}

func shortID(id audit.RunID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

