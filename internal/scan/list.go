package scan

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"imgdupes/internal/hash"
)

// ErrFolderNotFound means the folder is missing, not a directory or unreadable
var ErrFolderNotFound = errors.New("folder not found")

// ListCandidates returns the supported images directly inside folder.
// Subdirectories are not descended into.
func (s *Scanner) ListCandidates(folder string) ([]string, error) {
	info, err := s.fs.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFolderNotFound, folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s: not a directory", ErrFolderNotFound, folder)
	}

	entries, err := afero.ReadDir(s.fs, folder)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFolderNotFound, folder, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if hash.IsSupportedImage(entry.Name()) {
			paths = append(paths, filepath.Join(folder, entry.Name()))
		}
	}
	return paths, nil
}
