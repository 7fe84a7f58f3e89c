package main

import (
	"time"

	"github.com/spf13/cobra"

	"memarchive/internal/config"
	"memarchive/internal/orchestrator"
)

type recycleOptions struct {
	gate       gateFlags
	reportFile string
}

func recycleCmd(flags *globalFlags) *cobra.Command {
	opts := &recycleOptions{}

	cmd := &cobra.Command{
		Use:   "recycle",
		Short: "Recycle originals whose archive copies already exist",
		Long: `Recycle handles an operation document whose copies were archived by an
earlier run. Each archive copy is verified again and, after confirmation, its
original is moved to the recycle bin. Nothing is copied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecycle(cmd, flags, opts)
		},
	}

	addGateFlags(cmd, &opts.gate)
	addPolicyFlags(cmd)
	cmd.Flags().StringVar(&opts.reportFile, "report-file", "", "write a markdown operation report to this path")

	return cmd
}

func runRecycle(cmd *cobra.Command, flags *globalFlags, opts *recycleOptions) error {
	planOnly, err := opts.gate.planOnly()
	if err != nil {
		return err
	}
	if flags.configPath == "" {
		return &config.ConfigError{Type: config.ValidationError, Message: "recycle needs an operation document (--config)"}
	}

	doc, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if err := applyOverrides(cmd, &doc.Settings, flags); err != nil {
		return err
	}
	sess, err := newSession(cmd, flags, doc.Settings)
	if err != nil {
		return err
	}
	if err := sess.validate(config.ValidateConfig(doc)); err != nil {
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
	sess.out.Header("Recycle batch: %d operations", len(doc.Operations))

	started := time.Now()
	var batch *orchestrator.Batch
	if planOnly {
		batch, err = orch.PlanRecycle(cmd.Context(), doc.Operations)
		if batch != nil {
			orch.Finish(batch)
		}
	} else {
		batch, err = orch.RecycleVerified(cmd.Context(), doc.Operations)
	}

	result := &batchResult{summary: orchestrator.GenerateSummary(batch, time.Since(started), flags.verbose)}
	result.add(batch)

	ferr := sess.finish(result, opts.reportFile)
	if err != nil {
		return err
	}
	return ferr
}
