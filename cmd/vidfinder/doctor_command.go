package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"vidfinder/internal/preflight"
	"vidfinder/internal/report"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "doctor [directory]",
		Short: "Check external tools and directory permissions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			root, err := filepath.Abs(argOrDot(args))
			if err != nil {
				return err
			}
			plan := preflight.Plan{
				ScanRoot:   root,
				CachePath:  cfg.CachePath(root),
				NeedsMedia: true,
			}
			if cfg.Watched.DBPath != "" {
				plan.WatchedDB = cfg.Watched.DBPath
				plan.WriteWatched = true
			}
			results := preflight.RunAll(cfg, plan)
			if err := report.WriteDoctor(cmd.OutOrStdout(), f, results); err != nil {
				return err
			}
			return preflight.Err(results)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	return cmd
}
