package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imgdupes/internal/models"
)

// ErrTaskPanic wraps a panic recovered from a folder task
var ErrTaskPanic = errors.New("folder task panicked")

// TaskFunc processes a single folder
type TaskFunc func(ctx context.Context, folder string) (*models.FolderResult, error)

// TaskResult is the outcome of one folder task
type TaskResult struct {
	Folder string
	Result *models.FolderResult
	Err    error
}

// Dispatcher runs fn once per folder and returns every outcome once all
// tasks have finished. Results are in completion order.
type Dispatcher interface {
	Dispatch(ctx context.Context, folders []string, fn TaskFunc) []TaskResult
}

// ParallelDispatcher runs one goroutine per folder, at most workers at a time
type ParallelDispatcher struct {
	workers int
	timeout time.Duration
}

// NewParallelDispatcher creates a ParallelDispatcher. workers <= 0 means
// no limit; timeout <= 0 means no per-folder deadline.
func NewParallelDispatcher(workers int, timeout time.Duration) *ParallelDispatcher {
	return &ParallelDispatcher{workers: workers, timeout: timeout}
}

// Dispatch implements Dispatcher
func (d *ParallelDispatcher) Dispatch(ctx context.Context, folders []string, fn TaskFunc) []TaskResult {
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results = make([]TaskResult, 0, len(folders))
	)
	if d.workers > 0 {
		g.SetLimit(d.workers)
	}

	for _, folder := range folders {
		folder := folder
		g.Go(func() error {
			r := runTask(ctx, folder, d.timeout, fn)

			mu.Lock()
			results = append(results, r)
			mu.Unlock()

			// Failures are carried in the result so one folder never
			// cancels the others.
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// SequentialDispatcher runs folder tasks one after another in input order
type SequentialDispatcher struct {
	timeout time.Duration
}

// NewSequentialDispatcher creates a SequentialDispatcher
func NewSequentialDispatcher(timeout time.Duration) *SequentialDispatcher {
	return &SequentialDispatcher{timeout: timeout}
}

// Dispatch implements Dispatcher
func (d *SequentialDispatcher) Dispatch(ctx context.Context, folders []string, fn TaskFunc) []TaskResult {
	results := make([]TaskResult, 0, len(folders))
	for _, folder := range folders {
		results = append(results, runTask(ctx, folder, d.timeout, fn))
	}
	return results
}

func runTask(ctx context.Context, folder string, timeout time.Duration, fn TaskFunc) (tr TaskResult) {
	tr.Folder = folder

	defer func() {
		if r := recover(); r != nil {
			tr.Result = nil
			tr.Err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tr.Result, tr.Err = fn(ctx, folder)
	if tr.Err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		tr.Err = fmt.Errorf("processing %s: %w", folder, ctx.Err())
	}
	return tr
}
