package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"imgdupes/internal/hash"
	"imgdupes/internal/models"
)

// Scanner lists folders for images and fingerprints them. A Scanner is
// safe to use from several goroutines as long as its progress callback is.
type Scanner struct {
	fs         afero.Fs
	logger     *zap.Logger
	decode     hash.Decoder
	fp         hash.Fingerprinter
	hasher     *hash.Hasher
	timeout    time.Duration
	progressFn func(scanned, total int, current string)
}

// Option configures a Scanner
type Option func(*Scanner)

// WithFs sets the file system images are read from
func WithFs(fsys afero.Fs) Option {
	return func(s *Scanner) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithLogger sets the logger used for skipped files
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDecoder replaces the image decoder
func WithDecoder(decode hash.Decoder) Option {
	return func(s *Scanner) {
		s.decode = decode
	}
}

// WithFingerprinter replaces the fingerprint function
func WithFingerprinter(fp hash.Fingerprinter) Option {
	return func(s *Scanner) {
		s.fp = fp
	}
}

// WithTimeout sets the timeout for hashing each image
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// WithProgress sets a progress callback, called once per candidate
// with the per-folder counts.
func WithProgress(fn func(scanned, total int, current string)) Option {
	return func(s *Scanner) {
		s.progressFn = fn
	}
}

// NewScanner creates a new Scanner
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		fs:      afero.NewReadOnlyFs(afero.NewOsFs()),
		logger:  zap.NewNop(),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hasher = hash.NewHasher(s.decode, s.fp)
	return s
}

// ProcessFolder fingerprints every candidate image in folder. Images that
// cannot be decoded are logged and skipped. If the folder cannot be listed
// the returned result is empty and the error wraps ErrFolderNotFound.
func (s *Scanner) ProcessFolder(ctx context.Context, folder string) (*models.FolderResult, error) {
	result := models.NewFolderResult(folder)

	paths, err := s.ListCandidates(folder)
	if err != nil {
		return result, err
	}
	result.Candidates = len(paths)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("processing %s: %w", folder, err)
		}

		fp, err := s.hasher.HashImageWithTimeout(s.fs, path, s.timeout)
		if err != nil {
			s.logger.Warn("Skipping unreadable image",
				zap.String("folder", folder),
				zap.String("path", path),
				zap.Error(err))
			result.Skipped++
		} else {
			result.Record(fp, path)
			result.Hashed++
		}

		if s.progressFn != nil {
			s.progressFn(i+1, len(paths), path)
		}
	}

	s.logger.Debug("Processed folder",
		zap.String("folder", folder),
		zap.Int("hashed", result.Hashed),
		zap.Int("skipped", result.Skipped),
		zap.Int("pairs", len(result.Pairs)))

	return result, nil
}
