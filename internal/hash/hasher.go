package hash

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/artyom/phash"
	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"

	"imgdupes/internal/models"
)

// ErrUnsupportedAlgorithm is returned by ForAlgorithm for unknown names
var ErrUnsupportedAlgorithm = errors.New("unsupported fingerprint algorithm")

// Decoder turns encoded image bytes into pixels
type Decoder func(r io.Reader) (image.Image, error)

// Fingerprinter computes a fingerprint from decoded pixels
type Fingerprinter interface {
	Fingerprint(img image.Image) (models.Fingerprint, error)
}

// FingerprintFunc adapts a function to Fingerprinter
type FingerprintFunc func(img image.Image) (models.Fingerprint, error)

// Fingerprint calls f(img)
func (f FingerprintFunc) Fingerprint(img image.Image) (models.Fingerprint, error) {
	return f(img)
}

// Decode decodes any registered format, applying EXIF orientation
func Decode(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

func fromImageHash(h *goimagehash.ImageHash, err error) (models.Fingerprint, error) {
	if err != nil {
		return 0, err
	}
	return models.Fingerprint(h.GetHash()), nil
}

var (
	// Perception is the DCT based pHash from goimagehash
	Perception = FingerprintFunc(func(img image.Image) (models.Fingerprint, error) {
		return fromImageHash(goimagehash.PerceptionHash(img))
	})

	// Average is the mean-luminance aHash
	Average = FingerprintFunc(func(img image.Image) (models.Fingerprint, error) {
		return fromImageHash(goimagehash.AverageHash(img))
	})

	// Difference is the gradient dHash
	Difference = FingerprintFunc(func(img image.Image) (models.Fingerprint, error) {
		return fromImageHash(goimagehash.DifferenceHash(img))
	})

	// DCT is artyom/phash with Lanczos resampling
	DCT = FingerprintFunc(func(img image.Image) (models.Fingerprint, error) {
		x, err := phash.Get(img, func(img image.Image, w, h int) image.Image {
			return imaging.Resize(img, w, h, imaging.Lanczos)
		})
		if err != nil {
			return 0, err
		}
		return models.Fingerprint(x), nil
	})
)

var algorithms = map[string]Fingerprinter{
	"phash": Perception,
	"ahash": Average,
	"dhash": Difference,
	"dct":   DCT,
}

// ForAlgorithm looks up a fingerprinter by name
func ForAlgorithm(name string) (Fingerprinter, error) {
	f, ok := algorithms[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedAlgorithm, name, strings.Join(Algorithms(), ", "))
	}
	return f, nil
}

// Algorithms returns the known algorithm names, sorted
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupportedImage checks the file extension against the allow-list
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".bmp", ".gif":
		return true
	default:
		return false
	}
}

// Hasher decodes images and computes their fingerprints
type Hasher struct {
	decode Decoder
	fp     Fingerprinter
}

// NewHasher creates a Hasher. Nil arguments fall back to Decode and Perception.
func NewHasher(decode Decoder, fp Fingerprinter) *Hasher {
	if decode == nil {
		decode = Decode
	}
	if fp == nil {
		fp = Perception
	}
	return &Hasher{decode: decode, fp: fp}
}

// HashImage decodes path from fsys and fingerprints it. A panic in the
// decoder or fingerprinter is returned as an error.
func (h *Hasher) HashImage(fsys afero.Fs, path string) (fp models.Fingerprint, err error) {
	defer func() {
		if r := recover(); r != nil {
			fp, err = 0, fmt.Errorf("panic hashing %s: %v", path, r)
		}
	}()

	file, err := fsys.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	img, err := h.decode(file)
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}

	fp, err = h.fp.Fingerprint(img)
	if err != nil {
		return 0, fmt.Errorf("failed to compute hash: %w", err)
	}
	return fp, nil
}

// HashImageWithTimeout hashes an image with a timeout. A zero timeout
// waits indefinitely.
func (h *Hasher) HashImageWithTimeout(fsys afero.Fs, path string, timeout time.Duration) (models.Fingerprint, error) {
	if timeout <= 0 {
		return h.HashImage(fsys, path)
	}

	type result struct {
		fp  models.Fingerprint
		err error
	}
	done := make(chan result, 1)

	go func() {
		fp, err := h.HashImage(fsys, path)
		done <- result{fp, err}
	}()

	select {
	case r := <-done:
		return r.fp, r.err
	case <-time.After(timeout):
		return 0, fmt.Errorf("timeout hashing image: %s", path)
	}
}
