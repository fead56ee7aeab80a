package report

import (
	"errors"

	"imgdupes/internal/models"
)

// Reporter presents the outcome of a run
type Reporter interface {
	Report(result *models.ScanResult) error
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(result *models.ScanResult) error

// Report calls f(result)
func (f ReporterFunc) Report(result *models.ScanResult) error {
	return f(result)
}

// Multi runs every reporter and joins their errors
func Multi(reporters ...Reporter) Reporter {
	return ReporterFunc(func(result *models.ScanResult) error {
		var errs []error
		for _, r := range reporters {
			if r == nil {
				continue
			}
			if err := r.Report(result); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
