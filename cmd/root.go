package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	dbPath   string
	logLevel string
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "imgdupes",
	Short: "Find visually duplicate images across folders",
	Long: `imgdupes finds images that look the same across a set of folders.

Every image gets a perceptual fingerprint (pHash by default). Images whose
fingerprints are exactly equal are reported together as a duplicate group.
Folders are scanned in parallel and only their top level is read.

Example usage:
  imgdupes scan ./photos ./backup         # Report duplicates in two folders
  imgdupes scan ./photos --collage ./out  # Also render one PNG per group
  imgdupes scan ./photos --save           # Keep the report for 'list'
  imgdupes list                           # Show the last saved report`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultDB := filepath.Join("~", ".imgdupes", "report.db")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Path to the SQLite report database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// newLogger builds a console logger writing to stderr
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Development = false
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// expandPath resolves ~ and makes path absolute
func expandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
