package main

import (
	"github.com/spf13/cobra"

	"vidfinder/internal/engine"
	"vidfinder/internal/report"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	var (
		cacheFile string
		format    string
	)
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune a directory's fingerprint cache",
	}
	cacheCmd.PersistentFlags().StringVar(&cacheFile, "cache-file", "", "Cache file name inside the directory, or an absolute path")
	cacheCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")

	setup := func(cmd *cobra.Command) (report.Format, *engine.Engine, error) {
		f, err := report.ParseFormat(format)
		if err != nil {
			return "", nil, err
		}
		cfg, err := ctx.ensureConfig(cmd)
		if err != nil {
			return "", nil, err
		}
		if cmd.Flags().Changed("cache-file") {
			cfg.Cache.FileName = cacheFile
			if err := cfg.Validate(); err != nil {
				return "", nil, err
			}
		}
		logger, err := ctx.ensureLogger(cfg)
		if err != nil {
			return "", nil, err
		}
		eng, _ := ctx.newEngine(cmd, cfg, logger, false)
		return f, eng, nil
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats [directory]",
		Short: "Show cache entry count and parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			info, err := eng.CacheInfo(argOrDot(args))
			if err != nil {
				return err
			}
			return report.WriteCacheInfo(cmd.OutOrStdout(), f, info)
		},
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "prune [directory]",
		Short: "Drop cache entries for files that no longer exist",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, eng, err := setup(cmd)
			if err != nil {
				return err
			}
			dir := argOrDot(args)
			stats, err := eng.PruneCache(dir)
			if err != nil {
				return err
			}
			info, err := eng.CacheInfo(dir)
			if err != nil {
				return err
			}
			return report.WritePrune(cmd.OutOrStdout(), f, info.Path, stats)
		},
	})
	return cacheCmd
}
