package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "imgpress",
	Short: "Multi-engine image compressor",
	Long: `imgpress runs every image through five compression engines
(palette PNG, optimized PNG, zopfli PNG, WebP, AVIF), reports size, ratio
and time per engine, and exports the results.

The slow zopfli engine is optional: without zopflipng in PATH it falls
back to a best-compression PNG encode.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgpress %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[imgpress] "+format+"\n", args...)
	}
}

// logf prints unconditionally, for notifications the user must see.
func logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[imgpress] "+format+"\n", args...)
}

// envOr returns the environment variable key, or def when unset.
func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
