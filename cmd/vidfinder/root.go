package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return buildRootCommand(&commandContext{})
}

func buildRootCommand(ctx *commandContext) *cobra.Command {
	var flags scanFlags

	rootCmd := &cobra.Command{
		Use:   "vidfinder [flags] <directory>",
		Short: "Find visually similar videos",
		Long: "vidfinder samples frames from every video in a directory, fingerprints them with a\n" +
			"difference hash and groups videos whose fingerprints are within the similarity threshold.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, ctx, &flags, args[0])
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	pf.BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&ctx.logFormat, "log-format", "", "Log format (console or json)")

	flags.register(rootCmd)

	rootCmd.AddCommand(newWatchedCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}
