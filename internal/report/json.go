package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"

	"imgdupes/internal/models"
)

// JSON writes the whole result to a file, replacing it atomically
type JSON struct {
	path string
}

// NewJSON creates a JSON reporter writing to path
func NewJSON(path string) *JSON {
	return &JSON{path: path}
}

// Report implements Reporter
func (j *JSON) Report(result *models.ScanResult) error {
	out := *result
	if out.Groups == nil {
		out.Groups = []*models.DuplicateGroup{}
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(j.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", j.path, err)
	}
	return nil
}
