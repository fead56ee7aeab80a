package aggregate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"imgdupes/internal/models"
	"imgdupes/internal/scan"
)

// ErrInvalidInput is returned when the folder list itself is malformed
var ErrInvalidInput = errors.New("invalid input")

// Aggregator runs the per-folder processing concurrently and groups the
// fingerprints found across all folders.
type Aggregator struct {
	process      TaskFunc
	dispatcher   Dispatcher
	logger       *zap.Logger
	mergeOverlap bool
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithDispatcher sets how folder tasks are scheduled
func WithDispatcher(d Dispatcher) Option {
	return func(a *Aggregator) {
		if d != nil {
			a.dispatcher = d
		}
	}
}

// WithLogger sets the logger used for folder warnings
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMergeOverlap collapses groups that share a path, so each
// fingerprint is reported once.
func WithMergeOverlap(merge bool) Option {
	return func(a *Aggregator) {
		a.mergeOverlap = merge
	}
}

// New creates an Aggregator around a per-folder processing function,
// usually (*scan.Scanner).ProcessFolder.
func New(process TaskFunc, opts ...Option) *Aggregator {
	a := &Aggregator{
		process:    process,
		dispatcher: NewParallelDispatcher(runtime.NumCPU(), 0),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate checks that every folder entry is a usable path string
func Validate(folders []string) error {
	for i, f := range folders {
		if f == "" {
			return fmt.Errorf("%w: folder #%d is empty", ErrInvalidInput, i+1)
		}
		if strings.ContainsRune(f, 0) {
			return fmt.Errorf("%w: folder #%d contains a NUL byte", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// Run processes every folder and returns the duplicate groups. Only an
// invalid folder list is returned as an error; missing folders, failed
// folders and unreadable images are logged and left out of the result.
func (a *Aggregator) Run(ctx context.Context, folders []string) (*models.ScanResult, error) {
	if err := Validate(folders); err != nil {
		return nil, err
	}

	folders = a.uniqueFolders(folders)
	result := &models.ScanResult{Folders: folders}
	if len(folders) == 0 {
		return result, nil
	}

	var collected []*models.FolderResult
	for _, task := range a.dispatcher.Dispatch(ctx, folders, a.process) {
		switch {
		case errors.Is(task.Err, scan.ErrFolderNotFound):
			a.logger.Warn("Folder not found", zap.String("folder", task.Folder), zap.Error(task.Err))
			result.MissingFolders = append(result.MissingFolders, task.Folder)
		case task.Err != nil:
			a.logger.Warn("Folder processing failed", zap.String("folder", task.Folder), zap.Error(task.Err))
			result.FailedFolders = append(result.FailedFolders, task.Folder)
		case task.Result == nil:
			a.logger.Warn("Folder processing returned no result", zap.String("folder", task.Folder))
			result.FailedFolders = append(result.FailedFolders, task.Folder)
		default:
			collected = append(collected, task.Result)
			result.TotalHashed += task.Result.Hashed
			result.TotalSkipped += task.Result.Skipped
		}
	}

	groups := Group(collected)
	if a.mergeOverlap {
		groups = MergeOverlapping(groups)
	}
	for i, g := range groups {
		g.ID = i + 1
	}
	result.Groups = groups

	a.logger.Info("Aggregated folders",
		zap.Int("folders", len(folders)),
		zap.Int("missing", len(result.MissingFolders)),
		zap.Int("failed", len(result.FailedFolders)),
		zap.Int("groups", len(groups)))

	return result, nil
}

// uniqueFolders drops repeated entries that name the same folder, keeping
// the first occurrence.
func (a *Aggregator) uniqueFolders(folders []string) []string {
	seen := make(map[string]bool, len(folders))
	unique := make([]string, 0, len(folders))
	for _, f := range folders {
		clean := filepath.Clean(f)
		if seen[clean] {
			a.logger.Warn("Folder listed more than once", zap.String("folder", f))
			continue
		}
		seen[clean] = true
		unique = append(unique, clean)
	}
	return unique
}

// Group turns per-folder results into duplicate groups. Every intra-folder
// pair becomes a 2-element group first; then every fingerprint held by more
// than one folder map becomes a group of all the paths recorded for it.
// A fingerprint can therefore surface through both routes.
func Group(results []*models.FolderResult) []*models.DuplicateGroup {
	var groups []*models.DuplicateGroup

	for _, r := range results {
		for _, p := range r.Pairs {
			if g, err := models.NewDuplicateGroup(p.Fingerprint, p.First, p.Second); err == nil {
				groups = append(groups, g)
			}
		}
	}

	var (
		order []models.Fingerprint
		paths = make(map[models.Fingerprint][]models.ImagePath)
	)
	for _, r := range results {
		for _, fp := range r.Order {
			if _, seen := paths[fp]; !seen {
				order = append(order, fp)
			}
			paths[fp] = append(paths[fp], r.Paths[fp])
		}
	}

	for _, fp := range order {
		if len(paths[fp]) < 2 {
			continue
		}
		if g, err := models.NewDuplicateGroup(fp, paths[fp]...); err == nil {
			groups = append(groups, g)
		}
	}

	return groups
}
