package main

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"memarchive/internal/config"
	"memarchive/internal/discovery"
	"memarchive/internal/orchestrator"
	"memarchive/internal/storagelog"
)

type runOptions struct {
	gate        gateFlags
	reportFile  string
	autoDetect  bool
	autoVersion bool
}

func runCmd(flags *globalFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan, confirm and execute an archive batch",
		Long: `Run archives the documents listed in the operation document given with
--config. Each batch is planned, confirmed, copied, verified, and confirmed
again before originals are moved to the recycle bin.

With --auto-detect, superseded versions in each <type>/active directory are
added to the batch. With --auto-version, a new version of each archived
document is created in its active directory first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd, flags, opts)
		},
	}

	addGateFlags(cmd, &opts.gate)
	addPolicyFlags(cmd)
	cmd.Flags().StringVar(&opts.reportFile, "report-file", "", "write a markdown operation report to this path")
	cmd.Flags().BoolVar(&opts.autoDetect, "auto-detect", false, "add superseded versions found in active directories")
	cmd.Flags().BoolVar(&opts.autoVersion, "auto-version", false, "create the next version of each document before archiving it")

	return cmd
}

func runArchive(cmd *cobra.Command, flags *globalFlags, opts *runOptions) error {
	planOnly, err := opts.gate.planOnly()
	if err != nil {
		return err
	}

	doc, err := loadDocument(flags, opts.autoDetect)
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

	var detector *discovery.Detector
	if opts.autoDetect || opts.autoVersion {
		detector, err = discovery.NewDetector(discovery.Options{
			DocumentGlob:  sess.settings.DocumentGlob,
			SymlinkPolicy: sess.settings.SymlinkPolicy,
			Logger:        sess.logger,
		})
		if err != nil {
			return &config.ConfigError{Type: config.ValidationError, Message: err.Error(), Err: err}
		}
	}

	if opts.autoDetect && sess.settings.Root != "" {
		found, err := detector.AutoDetect(sess.settings.Root)
		if err != nil {
			return err
		}
		sess.out.Info("Auto-detect: %d superseded of %d documents scanned", len(found.Operations), found.Scanned)
		for _, kept := range found.Kept {
			sess.out.Verbose("Keeping %s", kept)
		}
		doc.Operations = append(doc.Operations, found.Operations...)
	}

	if err := sess.validate(config.ValidateConfig(doc)); err != nil {
		return err
	}

	if opts.autoVersion {
		if planOnly {
			sess.out.Info("Plan mode: skipping auto-version")
		} else {
			created, err := detector.AutoVersion(sess.settings.Root, doc.Operations, sess.classifier)
			for _, v := range created {
				if v.Created {
					sess.out.Success("Created %s", filepath.Base(v.Target))
				} else {
					sess.out.Verbose("Version %s already exists", filepath.Base(v.Target))
				}
			}
			if err != nil {
				sess.out.Warning("auto-version: %v", err)
			}
		}
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
	sess.out.Header("Archive batch: %d operations", len(doc.Operations))

	started := time.Now()
	var batch *orchestrator.Batch
	if planOnly {
		batch, err = orch.Preview(cmd.Context(), doc.Operations)
	} else {
		batch, err = orch.Run(cmd.Context(), doc.Operations)
	}

	result := &batchResult{summary: orchestrator.GenerateSummary(batch, time.Since(started), flags.verbose)}
	result.add(batch)
	if batch != nil && batch.State() == orchestrator.StateCancelled {
		sess.out.Warning("Batch cancelled at confirmation")
	}
	sess.recordStorageLog(result, storagelog.KindArchive)

	ferr := sess.finish(result, opts.reportFile)
	if err != nil {
		return err
	}
	return ferr
}

// loadDocument reads the operation document. Auto-detect runs may omit it.
func loadDocument(flags *globalFlags, autoDetect bool) (*config.Document, error) {
	if flags.configPath != "" {
		return config.Load(flags.configPath)
	}
	if !autoDetect {
		return nil, &config.ConfigError{
			Type:    config.ValidationError,
			Message: "run needs an operation document (--config) or --auto-detect",
			Err:     errors.New("no operations"),
		}
	}
	s, err := config.LoadSettings("")
	if err != nil {
		return nil, err
	}
	return &config.Document{Settings: *s}, nil
}
