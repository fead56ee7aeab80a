package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imgdupes/internal/aggregate"
	"imgdupes/internal/hash"
	"imgdupes/internal/models"
	"imgdupes/internal/report"
	"imgdupes/internal/scan"
	"imgdupes/internal/storage"
)

var (
	workers       int
	imageTimeout  time.Duration
	folderTimeout time.Duration
	algorithm     string
	mergeOverlap  bool
	jsonOut       string
	collageDir    string
	collageHeight int
	saveReport    bool
	scanVerbose   bool
	noProgress    bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [folder...]",
	Short: "Scan folders for duplicate images",
	Long: `Scan one or more folders for images with identical perceptual fingerprints.

The scan will:
1. List jpg, jpeg, png, bmp and gif files at the top level of each folder
2. Fingerprint every image, one parallel task per folder
3. Report images sharing a fingerprint, within or across folders

Missing folders and unreadable images are logged and skipped.

Example:
  imgdupes scan ./photos ./backup
  imgdupes scan ./photos --algo dhash --json report.json
  imgdupes scan ./a ./b --merge-overlap --collage ./collages`,
	Args: cobra.ArbitraryArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Number of folders processed in parallel")
	scanCmd.Flags().DurationVar(&imageTimeout, "image-timeout", 30*time.Second, "Timeout for hashing one image (0 to disable)")
	scanCmd.Flags().DurationVar(&folderTimeout, "folder-timeout", 0, "Timeout for processing one folder (0 to disable)")
	scanCmd.Flags().StringVar(&algorithm, "algo", "phash", fmt.Sprintf("Fingerprint algorithm %v", hash.Algorithms()))
	scanCmd.Flags().BoolVar(&mergeOverlap, "merge-overlap", false, "Report one group per fingerprint instead of separate intra-folder pairs")
	scanCmd.Flags().StringVar(&jsonOut, "json", "", "Write the report as JSON to this file")
	scanCmd.Flags().StringVar(&collageDir, "collage", "", "Write one collage PNG per group into this folder")
	scanCmd.Flags().IntVar(&collageHeight, "collage-height", 256, "Height in pixels of collage images")
	scanCmd.Flags().BoolVar(&saveReport, "save", false, "Save the report to the database for 'imgdupes list'")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Show image details for each group member")
	scanCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress indicator")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := aggregate.Validate(args); err != nil {
		return err
	}

	folders := make([]string, len(args))
	for i, arg := range args {
		abs, err := expandPath(arg)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", aggregate.ErrInvalidInput, arg, err)
		}
		folders[i] = abs
	}

	fp, err := hash.ForAlgorithm(algorithm)
	if err != nil {
		return err
	}

	opts := []scan.Option{
		scan.WithLogger(logger),
		scan.WithFingerprinter(fp),
		scan.WithTimeout(imageTimeout),
	}

	var bar *progressbar.ProgressBar
	if !noProgress && len(folders) > 0 {
		bar = progressbar.Default(-1, "Hashing images")
		opts = append(opts, scan.WithProgress(func(_, _ int, _ string) {
			_ = bar.Add(1)
		}))
	}

	var dispatcher aggregate.Dispatcher = aggregate.NewParallelDispatcher(workers, folderTimeout)
	if workers == 1 {
		dispatcher = aggregate.NewSequentialDispatcher(folderTimeout)
	}

	scanner := scan.NewScanner(opts...)
	agg := aggregate.New(scanner.ProcessFolder,
		aggregate.WithDispatcher(dispatcher),
		aggregate.WithLogger(logger),
		aggregate.WithMergeOverlap(mergeOverlap),
	)

	logger.Info("Scanning folders",
		zap.Strings("folders", folders),
		zap.String("algorithm", algorithm),
		zap.Int("workers", workers))

	start := time.Now()
	result, err := agg.Run(cmd.Context(), folders)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	logger.Info("Scan complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("images", result.TotalHashed),
		zap.Int("skipped", result.TotalSkipped),
		zap.Int("groups", len(result.Groups)),
		zap.Int("duplicates", result.TotalDuplicates()))

	reporters := []report.Reporter{report.NewText(cmd.OutOrStdout(), scanVerbose)}

	if jsonOut != "" {
		path, err := expandPath(jsonOut)
		if err != nil {
			return fmt.Errorf("invalid --json path: %w", err)
		}
		reporters = append(reporters, report.NewJSON(path))
	}

	if collageDir != "" {
		dir, err := expandPath(collageDir)
		if err != nil {
			return fmt.Errorf("invalid --collage path: %w", err)
		}
		reporters = append(reporters, report.NewCollage(dir, collageHeight, logger))
	}

	if saveReport {
		path, err := expandPath(dbPath)
		if err != nil {
			return fmt.Errorf("invalid --db path: %w", err)
		}
		store, err := storage.NewStorage(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		reporters = append(reporters, report.ReporterFunc(func(r *models.ScanResult) error {
			if err := store.SaveGroups(r.Groups); err != nil {
				return fmt.Errorf("failed to save groups: %w", err)
			}
			return store.RecordScan(r)
		}))
	}

	return report.Multi(reporters...).Report(result)
}
