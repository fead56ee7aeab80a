package report

import (
	"fmt"
	"io"
	"strings"

	"imgdupes/internal/models"
)

// Text prints groups as plain text
type Text struct {
	w       io.Writer
	verbose bool
}

// NewText creates a Text reporter. Verbose adds per-image details.
func NewText(w io.Writer, verbose bool) *Text {
	return &Text{w: w, verbose: verbose}
}

// Report implements Reporter
func (t *Text) Report(result *models.ScanResult) error {
	if len(result.Groups) == 0 {
		_, err := fmt.Fprintln(t.w, "No duplicate images found.")
		return err
	}

	fmt.Fprintf(t.w, "Found %d duplicate groups (%d duplicates)\n\n",
		len(result.Groups), result.TotalDuplicates())

	for _, group := range result.Groups {
		if err := t.PrintGroup(group); err != nil {
			return err
		}
	}
	return nil
}

// PrintGroup writes one group
func (t *Text) PrintGroup(group *models.DuplicateGroup) error {
	fmt.Fprintf(t.w, "Group #%d (%d images, hash %s)\n", group.ID, group.Size(), group.Hash)
	fmt.Fprintln(t.w, strings.Repeat("-", 60))

	for _, path := range group.Paths {
		fmt.Fprintf(t.w, "  %s\n", path)
		if !t.verbose {
			continue
		}

		d, err := Describe(path)
		if err != nil {
			fmt.Fprintf(t.w, "      (unavailable: %v)\n", err)
			continue
		}
		fmt.Fprintf(t.w, "      Resolution: %dx%d  Format: %s  Size: %s\n",
			d.Width, d.Height, strings.ToUpper(d.Format), FormatSize(d.FileSize))
		if !d.TakenAt.IsZero() {
			fmt.Fprintf(t.w, "      Taken: %s\n", d.TakenAt.Format("2006-01-02 15:04:05"))
		}
	}

	_, err := fmt.Fprintln(t.w)
	return err
}
