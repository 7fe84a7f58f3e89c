package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"memarchive/internal/orchestrator"
	"memarchive/internal/scanner"
	"memarchive/internal/storagelog"
)

type reorganizeOptions struct {
	gate       gateFlags
	reportFile string
	types      []string
}

func reorganizeCmd(flags *globalFlags) *cobra.Command {
	opts := &reorganizeOptions{}

	cmd := &cobra.Command{
		Use:   "reorganize",
		Short: "Move loose archived documents into category folders",
		Long: `Reorganize analyzes each archive directory and moves its loose documents
into the proposed category folders. Each archive directory is its own batch
with its own confirmation. Loose originals are deleted once their copies are
verified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReorganize(cmd, flags, opts)
		},
	}

	addGateFlags(cmd, &opts.gate)
	addDetectionFlag(cmd)
	addTypeFlag(cmd, &opts.types)
	cmd.Flags().StringVar(&opts.reportFile, "report-file", "", "write a markdown operation report to this path")

	return cmd
}

func runReorganize(cmd *cobra.Command, flags *globalFlags, opts *reorganizeOptions) error {
	if _, err := opts.gate.planOnly(); err != nil {
		return err
	}
	sess, err := loadSession(cmd, flags)
	if err != nil {
		return err
	}
	analyses, err := analyzeBank(sess, opts.types)
	if err != nil {
		return err
	}

	confirmer, err := sess.confirmer(&opts.gate)
	if err != nil {
		return err
	}
	if err := sess.openJournal(); err != nil {
		return err
	}
	defer sess.close()

	orch := sess.orchestrator(confirmer)
	result := &batchResult{}
	planFailures := 0

	for _, a := range analyses {
		if a.Status != scanner.StatusOK || a.LooseFileCount() == 0 {
			sess.out.Verbose("%s: nothing to reorganize", a.Dir)
			continue
		}
		sess.out.Header("Reorganize %s: %d loose documents", a.Scope, a.LooseFileCount())

		batch, err := orch.Reorganize(cmd.Context(), a)
		result.add(batch)
		switch {
		case errors.Is(err, orchestrator.ErrPlanFailed):
			planFailures++
			sess.out.Error("%s: %v", a.Dir, err)
		case err != nil:
			return err
		case batch.State() == orchestrator.StateCancelled:
			sess.out.Warning("%s: reorganization cancelled", a.Scope)
		}
	}

	if len(result.outcomes) == 0 {
		sess.out.Info("All archive directories are organized")
		return nil
	}

	sess.recordStorageLog(result, storagelog.KindReorganization)
	if err := sess.finish(result, opts.reportFile); err != nil {
		return err
	}
	if planFailures > 0 {
		return fmt.Errorf("%w in %d archive directories", orchestrator.ErrPlanFailed, planFailures)
	}
	return nil
}
