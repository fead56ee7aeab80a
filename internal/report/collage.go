package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"imgdupes/internal/models"
)

var errNoTiles = errors.New("no image in group could be opened")

// Collage renders each group as one PNG with its images side by side
type Collage struct {
	dir    string
	height int
	logger *zap.Logger
}

// NewCollage creates a Collage writing into dir. Every image is scaled to
// height pixels tall.
func NewCollage(dir string, height int, logger *zap.Logger) *Collage {
	if height <= 0 {
		height = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collage{dir: dir, height: height, logger: logger}
}

// Report implements Reporter
func (c *Collage) Report(result *models.ScanResult) error {
	if len(result.Groups) == 0 {
		return nil
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.dir, err)
	}

	for _, group := range result.Groups {
		img, err := c.Render(group)
		if err != nil {
			c.logger.Warn("Skipping collage", zap.Int("group", group.ID), zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return fmt.Errorf("failed to encode collage for group %d: %w", group.ID, err)
		}

		target := filepath.Join(c.dir, c.FileName(group))
		if err := atomic.WriteFile(target, &buf); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		c.logger.Debug("Wrote collage", zap.Int("group", group.ID), zap.String("path", target))
	}
	return nil
}

// FileName is the collage file name for group
func (c *Collage) FileName(group *models.DuplicateGroup) string {
	return fmt.Sprintf("group-%03d-%s.png", group.ID, group.Hash)
}

// Render builds the collage image for one group. Images that cannot be
// opened are left out.
func (c *Collage) Render(group *models.DuplicateGroup) (image.Image, error) {
	var tiles []image.Image
	for _, path := range group.Paths {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			c.logger.Warn("Cannot open image for collage", zap.String("path", path), zap.Error(err))
			continue
		}
		tiles = append(tiles, imaging.Resize(img, 0, c.height, imaging.Lanczos))
	}
	if len(tiles) == 0 {
		return nil, errNoTiles
	}

	width := 0
	for _, tile := range tiles {
		width += tile.Bounds().Dx()
	}

	canvas := imaging.New(width, c.height, color.Black)
	x := 0
	for _, tile := range tiles {
		canvas = imaging.Paste(canvas, tile, image.Pt(x, 0))
		x += tile.Bounds().Dx()
	}
	return canvas, nil
}
