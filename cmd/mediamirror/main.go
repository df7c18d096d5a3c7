// Package main implements the mediamirror command-line tool for
// incrementally syncing a local media tree against a remote autoindex
// directory listing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/mediamirror/mediamirror/internal/syncer"
)

const defaultConfigPath = "/etc/mediamirror/mediamirror.toml"

var (
	version = "dev"
	commit  = "unknown"

	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mediamirror",
	Short: "Incrementally mirror a remote autoindex media library",
	Long: `mediamirror crawls a remote HTTP-served directory tree, downloads files
that are missing or stale, and (optionally) purges local files that no
longer exist remotely, within a safety bound.

Find more information at: https://github.com/mediamirror/mediamirror`,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the configured media library",
	Long: `Runs one full sync pass: pool selection, expected-count fetch, crawl,
and (if enabled) reconciliation against the local inventory.

Examples:
  # Sync using the default configuration file
  mediamirror sync

  # Override the media root and concurrency
  mediamirror sync --media /srv/media --count 50

  # Select a subset of top-level paths by bitmap
  mediamirror sync --paths 0b0000000010

  # Show detailed error information
  mediamirror sync --verbose-errors`,
	RunE: runSync,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("mediamirror %s\n", version)
		fmt.Printf("commit: %s\n", commit)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "configuration file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose-errors", false, "show detailed error information including stack traces")

	syncCmd.Flags().String("media", "", "target media root directory (required, overrides config)")
	syncCmd.Flags().Int64("count", 0, "GET concurrency (default 100, overrides config)")
	syncCmd.Flags().Bool("debug", false, "shorthand for --log-level debug")
	syncCmd.Flags().Bool("db", false, "force regeneration of the local inventory database")
	syncCmd.Flags().Bool("nfo", false, "download .nfo files (overrides config)")
	syncCmd.Flags().String("url", "", "override pool selection with an explicit base URL")
	syncCmd.Flags().Bool("purge", true, "purge local files no longer present remotely (requires a root-mode URL)")
	syncCmd.Flags().Bool("all", false, "select all canonical top-level paths, excluding the first pool candidate; with --purge, forces --db")
	syncCmd.Flags().String("location", "", "database storage directory (default: media root)")
	syncCmd.Flags().String("paths", "", "subset selection: an integer bitmap (e.g. 0b0000000010) or a path to a file of path prefixes")
}

// formatError returns a human-friendly error message, optionally with a
// full stack trace.
func formatError(err error, verbose bool) string {
	if verbose {
		return fmt.Sprintf("%+v", err)
	}
	if flattened := errors.FlattenDetails(err); flattened != "" {
		return flattened
	}
	return err.Error()
}

func runSync(cmd *cobra.Command, _ []string) error {
	verboseErrors, _ := cmd.Flags().GetBool("verbose-errors")

	cfg := syncer.NewConfig()
	if err := cfg.LoadFile(configPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to decode config file", "path", configPath, "error", formatError(err, verboseErrors))
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return errors.Wrap(err, "apply environment overrides")
	}

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		cfg.Log.Level = "debug"
	} else if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	media, _ := cmd.Flags().GetString("media")
	if media != "" {
		cfg.MediaRoot = media
	}
	if nfo, _ := cmd.Flags().GetBool("nfo"); nfo {
		cfg.NFOEnabled = true
	}
	if err := cfg.Check(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	count, _ := cmd.Flags().GetInt64("count")
	forceDB, _ := cmd.Flags().GetBool("db")
	url, _ := cmd.Flags().GetString("url")
	purge, _ := cmd.Flags().GetBool("purge")
	all, _ := cmd.Flags().GetBool("all")
	location, _ := cmd.Flags().GetString("location")
	pathsArg, _ := cmd.Flags().GetString("paths")

	opts := syncer.Options{
		Location: location,
		Count:    count,
		ForceDB:  forceDB,
		NFO:      cfg.NFOEnabled,
		URL:      url,
		Purge:    purge,
		All:      all,
		PathsArg: pathsArg,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := syncer.Run(ctx, cfg, opts); err != nil {
		slog.Error("sync run failed", "error", formatError(err, verboseErrors))
		if !verboseErrors {
			slog.Info("run with --verbose-errors for detailed stack traces")
		}
		return err
	}
	return nil
}

func main() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
