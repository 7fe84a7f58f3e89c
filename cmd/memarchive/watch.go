package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"memarchive/internal/config"
	"memarchive/internal/watcher"
)

type watchOptions struct {
	types    []string
	debounce time.Duration
}

func watchCmd(flags *globalFlags) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyze archive directories when their documents change",
		Long: `Watch monitors each <type>/archive directory and its category folders.
Once changes settle for the debounce period, the affected archive directory
is analyzed again and a one-line summary is printed. Watch never moves files.
Stop it with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, flags, opts)
		},
	}

	addDetectionFlag(cmd)
	addTypeFlag(cmd, &opts.types)
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "quiet period before re-analysis (default settings.watch.debounce)")

	return cmd
}

func runWatch(cmd *cobra.Command, flags *globalFlags, opts *watchOptions) error {
	sess, err := loadSession(cmd, flags)
	if err != nil {
		return err
	}
	selected, err := memoryTypes(opts.types)
	if err != nil {
		return err
	}
	analyzer, err := sess.analyzer()
	if err != nil {
		return &config.ConfigError{Type: config.ValidationError, Message: err.Error(), Err: err}
	}

	scopes := make(map[string]string, len(selected))
	dirs := make([]string, 0, len(selected))
	for _, t := range selected {
		dir := archiveDir(sess.settings.Root, t)
		scopes[dir] = string(t)
		dirs = append(dirs, dir)
	}

	debounce := sess.settings.Watch.Debounce
	if opts.debounce > 0 {
		debounce = opts.debounce
	}

	w, err := watcher.New(&watcher.WatchConfig{
		Debounce:       debounce,
		IgnorePatterns: sess.settings.Watch.Ignore,
		Logger:         sess.logger,
	}, func(dir string) error {
		a, err := analyzer.AnalyzeDir(dir, scopes[filepath.Clean(dir)])
		if err != nil {
			return err
		}
		sess.out.Info("%s: %d loose, %d categories, %d files, %.1f%% organized",
			a.Scope, a.LooseFileCount(), len(a.Categories), a.TotalFiles, a.OrganizationPercentage)
		return nil
	})
	if err != nil {
		return &config.ConfigError{Type: config.ValidationError, Message: err.Error(), Err: err}
	}
	if err := w.Start(dirs); err != nil {
		return err
	}

	sess.out.Header("Watching %d archive directories", len(w.Roots()))
	for _, root := range w.Roots() {
		sess.out.Verbose("  %s", root)
	}

	<-cmd.Context().Done()
	summary := w.Stop()

	sess.out.Info("Stopped after %s: %d events, %d ignored, %d analyses, %d errors",
		summary.Duration.Round(time.Second), summary.Events, summary.Ignored, summary.Analyses, summary.Errors)
	return nil
}
