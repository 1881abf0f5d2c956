package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"vidfinder/internal/config"
	"vidfinder/internal/engine"
	"vidfinder/internal/logging"
)

type commandContext struct {
	configFlag string
	verbose    bool
	logFormat  string

	// engineOptions are appended when an engine is built.
	engineOptions []engine.Option

	configOnce sync.Once
	config     *config.Config
	configPath string
	configRead bool
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		overrides := config.Overrides{Verbose: c.verbose}
		if cmd.Flags().Changed("log-format") {
			overrides.LogFormat = &c.logFormat
		}
		if err := cfg.Apply(overrides); err != nil {
			c.configErr = err
			return
		}
		c.config, c.configPath, c.configRead = cfg, path, exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger(cfg *config.Config) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
		if c.loggerErr != nil {
			c.loggerErr = fmt.Errorf("init logging: %w", c.loggerErr)
		}
	})
	return c.logger, c.loggerErr
}

// newEngine builds an engine reporting progress to stderr when it is a
// terminal.
func (c *commandContext) newEngine(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, showProgress bool) (*engine.Engine, *progressObserver) {
	opts := []engine.Option{engine.WithLogger(logger)}
	var progress *progressObserver
	if showProgress && isTerminal(cmd.ErrOrStderr()) {
		progress = newProgressObserver(cmd.ErrOrStderr())
		opts = append(opts, engine.WithObserver(progress))
	}
	opts = append(opts, c.engineOptions...)
	return engine.New(cfg, opts...), progress
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func workingDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return dir, nil
}

func argOrDot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
