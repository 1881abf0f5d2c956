package main

import (
	"github.com/spf13/cobra"

	"vidfinder/internal/engine"
	"vidfinder/internal/report"
)

func newWatchedCommand(ctx *commandContext) *cobra.Command {
	watchedCmd := &cobra.Command{
		Use:   "watched",
		Short: "Manage the watched database",
	}
	watchedCmd.AddCommand(newWatchedBuildCommand(ctx))
	watchedCmd.AddCommand(newWatchedInspectCommand(ctx))
	return watchedCmd
}

func newWatchedBuildCommand(ctx *commandContext) *cobra.Command {
	var flags scanFlags
	cmd := &cobra.Command{
		Use:   "build <source-directory>",
		Short: "Fingerprint a directory of watched videos into the watched database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(flags.format)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Apply(flags.overrides(cmd)); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger(cfg)
			if err != nil {
				return err
			}
			cwd, err := workingDir()
			if err != nil {
				return err
			}

			eng, progress := ctx.newEngine(cmd, cfg, logger, format == report.FormatTable)
			res, err := eng.BuildWatched(cmd.Context(), engine.BuildRequest{
				Source:           args[0],
				WatchedDB:        cfg.WatchedDBPath(cwd),
				UseWatchedParams: flags.useWatchedParams,
			})
			progress.Finish()
			if err != nil {
				return err
			}
			return report.WriteBuild(cmd.OutOrStdout(), format, res)
		},
	}
	flags.register(cmd)
	for _, name := range []string{"threshold", "update-watched", "move", "yes"} {
		_ = cmd.Flags().MarkHidden(name)
	}
	return cmd
}

func newWatchedInspectCommand(ctx *commandContext) *cobra.Command {
	var (
		list   bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "inspect [database]",
		Short: "Show the parameters and records of a watched database",
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
			logger, err := ctx.ensureLogger(cfg)
			if err != nil {
				return err
			}
			path := ""
			if len(args) > 0 {
				path = args[0]
			} else {
				cwd, err := workingDir()
				if err != nil {
					return err
				}
				path = cfg.WatchedDBPath(cwd)
			}
			eng, _ := ctx.newEngine(cmd, cfg, logger, false)
			in, err := eng.InspectWatched(cmd.Context(), path, list)
			if err != nil {
				return err
			}
			return report.WriteInspection(cmd.OutOrStdout(), f, in)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List every record")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	return cmd
}
