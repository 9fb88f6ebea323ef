// Package cmd wires the agentwire command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	globalConfigFile string
	globalLogFormat  string
	globalLogLevel   string
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "agentwire",
		Short:         "Agent session server speaking the wire protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Logs go to stderr; stdout may carry the protocol stream.
			return setupLogging(globalLogLevel, globalLogFormat)
		},
	}

	rootCmd.PersistentFlags().StringVar(&globalConfigFile, "config", "", "config file (default: ./agentwire.yaml, fallback: ~/.agentwire/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalLogFormat, "log-format", "text", "log format: text|json")
	rootCmd.PersistentFlags().StringVar(&globalLogLevel, "log-level", "info", "log level: debug|info|warn|error")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewFlowCmd())

	return rootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "", "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unsupported log level: %s", level)
	}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
