package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/avast/apkchannel"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "apkchannel",
	Short:         "apkchannel - write distribution channels into signed APKs",
	Long:          "apkchannel stores ID-value pairs in the APK Signing Block, or the channel in the ZIP comment of JAR signed APKs, without breaking the signature.",
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every rewrite step to stderr")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func options(lowMemory bool) apkchannel.Options {
	return apkchannel.Options{
		LowMemory: lowMemory,
		Logger:    newLogger(),
	}
}

// parseID accepts decimal, 0x hex and 0 octal ids.
func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return uint32(id), nil
}
