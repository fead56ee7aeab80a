package report

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
)

// Details is what the verbose listing shows about one image
type Details struct {
	Width    int
	Height   int
	Format   string
	FileSize int64
	HasExif  bool
	TakenAt  time.Time
}

// Describe reads the header and EXIF block of an image without decoding
// its pixels.
func Describe(path string) (*Details, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}

	d := &Details{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Format:   strings.ToLower(format),
		FileSize: stat.Size(),
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return d, nil
	}
	if x, err := exif.Decode(file); err == nil {
		d.HasExif = true
		if t, err := x.DateTime(); err == nil {
			d.TakenAt = t
		}
	}

	return d, nil
}
