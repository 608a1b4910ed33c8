package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-decode/facade"
)

type commandContext struct {
	configPath string
	logLevel   string
	logFormat  string
}

// logger builds a stderr logger. The "auto" format picks text on a terminal
// and JSON otherwise.
func (c *commandContext) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.logLevel))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.logLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	format := c.logFormat
	if format == "auto" {
		format = "json"
		if fd := os.Stderr.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			format = "text"
		}
	}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("log format %q: want auto, text or json", c.logFormat)
}

func (c *commandContext) config() (*facade.Config, error) {
	return facade.LoadConfig(c.configPath)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "hioload-decode",
		Short:         "Decode images on the adaptive decode pool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (TOML)")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "auto", "Log format: auto, text or json")

	rootCmd.AddCommand(newDecodeCommand(ctx))
	rootCmd.AddCommand(newPackCommand(ctx))
	return rootCmd
}
