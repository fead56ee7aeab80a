package scan

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"imgdupes/internal/hash"
	"imgdupes/internal/models"
)

// writePNG stores a 2x2 PNG whose red channel is shade
func writePNG(t *testing.T, fsys afero.Fs, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: shade, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := afero.WriteFile(fsys, path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
}

// redFingerprint uses the red channel of the top-left pixel as fingerprint
var redFingerprint = hash.FingerprintFunc(func(img image.Image) (models.Fingerprint, error) {
	r, _, _, _ := img.At(0, 0).RGBA()
	return models.Fingerprint(r >> 8), nil
})

func newTestScanner(fsys afero.Fs, opts ...Option) *Scanner {
	base := []Option{WithFs(fsys), WithFingerprinter(redFingerprint)}
	return NewScanner(append(base, opts...)...)
}

func TestNewScanner_Defaults(t *testing.T) {
	s := NewScanner()

	if s.timeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", s.timeout)
	}
	if s.progressFn != nil {
		t.Error("default progressFn should be nil")
	}
	if s.fs == nil || s.logger == nil || s.hasher == nil {
		t.Error("defaults should set fs, logger and hasher")
	}
}

func TestNewScanner_Options(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s := NewScanner(
		WithFs(fsys),
		WithTimeout(5*time.Second),
		WithProgress(func(_, _ int, _ string) {}),
		WithFs(nil),
		WithLogger(nil),
	)

	if s.fs != fsys {
		t.Error("WithFs(nil) should keep the previous file system")
	}
	if s.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", s.timeout)
	}
	if s.progressFn == nil {
		t.Error("progressFn should not be nil")
	}
	if s.logger == nil {
		t.Error("WithLogger(nil) should keep the default logger")
	}
}

func TestListCandidates_EmptyDirectory(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/photos", 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := newTestScanner(fsys).ListCandidates("/photos")
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("expected no candidates, got %v", paths)
	}
}

func TestListCandidates_Filters(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := []string{
		"/photos/a.jpg",
		"/photos/b.JPEG",
		"/photos/c.Png",
		"/photos/d.bmp",
		"/photos/e.gif",
		"/photos/notes.txt",
		"/photos/f.webp",
		"/photos/noext",
		"/photos/sub/nested.png",
	}
	for _, f := range files {
		if err := afero.WriteFile(fsys, f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := fsys.MkdirAll("/photos/album.jpg", 0755); err != nil {
		t.Fatal(err)
	}

	paths, err := newTestScanner(fsys).ListCandidates("/photos")
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	sort.Strings(paths)

	want := []string{"/photos/a.jpg", "/photos/b.JPEG", "/photos/c.Png", "/photos/d.bmp", "/photos/e.gif"}
	if len(paths) != len(want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestListCandidates_NotFound(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/file.png", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestScanner(fsys)

	for _, folder := range []string{"/missing", "/file.png"} {
		paths, err := s.ListCandidates(folder)
		if !errors.Is(err, ErrFolderNotFound) {
			t.Errorf("ListCandidates(%q) error = %v, want ErrFolderNotFound", folder, err)
		}
		if len(paths) != 0 {
			t.Errorf("ListCandidates(%q) = %v, want none", folder, paths)
		}
	}
}

func TestProcessFolder_OnePair(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writePNG(t, fsys, "/photos/a.png", 10)
	writePNG(t, fsys, "/photos/b.png", 20)
	writePNG(t, fsys, "/photos/c.png", 10)

	result, err := newTestScanner(fsys).ProcessFolder(context.Background(), "/photos")
	if err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}

	if result.Hashed != 3 || result.Skipped != 0 || result.Candidates != 3 {
		t.Errorf("hashed/skipped/candidates = %d/%d/%d, want 3/0/3", result.Hashed, result.Skipped, result.Candidates)
	}
	if len(result.Paths) != 2 {
		t.Errorf("expected 2 distinct fingerprints, got %d", len(result.Paths))
	}
	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %v", result.Pairs)
	}
	want := models.Pair{Fingerprint: 10, First: "/photos/a.png", Second: "/photos/c.png"}
	if result.Pairs[0] != want {
		t.Errorf("pair = %+v, want %+v", result.Pairs[0], want)
	}
}

func TestProcessFolder_ChainNotClique(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writePNG(t, fsys, "/photos/a.png", 42)
	writePNG(t, fsys, "/photos/b.png", 42)
	writePNG(t, fsys, "/photos/c.png", 42)

	result, err := newTestScanner(fsys).ProcessFolder(context.Background(), "/photos")
	if err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}

	want := []models.Pair{
		{Fingerprint: 42, First: "/photos/a.png", Second: "/photos/b.png"},
		{Fingerprint: 42, First: "/photos/b.png", Second: "/photos/c.png"},
	}
	if len(result.Pairs) != len(want) {
		t.Fatalf("pairs = %v, want %v", result.Pairs, want)
	}
	for i := range want {
		if result.Pairs[i] != want[i] {
			t.Errorf("pairs[%d] = %+v, want %+v", i, result.Pairs[i], want[i])
		}
	}
	if got := result.Paths[42]; got != "/photos/c.png" {
		t.Errorf("map should hold the last path seen, got %q", got)
	}
}

func TestProcessFolder_SkipsUndecodable(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writePNG(t, fsys, "/photos/a.png", 5)
	if err := afero.WriteFile(fsys, "/photos/broken.jpg", []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, fsys, "/photos/z.png", 5)

	core, logs := observer.New(zap.WarnLevel)
	s := newTestScanner(fsys, WithLogger(zap.New(core)))

	result, err := s.ProcessFolder(context.Background(), "/photos")
	if err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}

	if result.Skipped != 1 || result.Hashed != 2 {
		t.Errorf("skipped/hashed = %d/%d, want 1/2", result.Skipped, result.Hashed)
	}
	for _, p := range result.Paths {
		if p == "/photos/broken.jpg" {
			t.Error("undecodable file should not be recorded")
		}
	}
	if len(result.Pairs) != 1 {
		t.Errorf("siblings of a broken file should still pair, got %v", result.Pairs)
	}

	warnings := logs.FilterMessage("Skipping unreadable image").All()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}
	if got := warnings[0].ContextMap()["path"]; got != "/photos/broken.jpg" {
		t.Errorf("warning path = %v", got)
	}
}

func TestProcessFolder_MissingFolder(t *testing.T) {
	result, err := newTestScanner(afero.NewMemMapFs()).ProcessFolder(context.Background(), "/nowhere")

	if !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("expected ErrFolderNotFound, got %v", err)
	}
	if result == nil {
		t.Fatal("result should not be nil")
	}
	if len(result.Paths) != 0 || len(result.Pairs) != 0 {
		t.Errorf("expected empty result, got %d paths %d pairs", len(result.Paths), len(result.Pairs))
	}
}

func TestProcessFolder_Cancelled(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writePNG(t, fsys, "/photos/a.png", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner(fsys).ProcessFolder(ctx, "/photos")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProcessFolder_ProgressCallback(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for i, name := range []string{"a.png", "b.png", "c.png"} {
		writePNG(t, fsys, "/photos/"+name, uint8(i))
	}

	var callCount int64
	s := newTestScanner(fsys, WithProgress(func(scanned, total int, current string) {
		atomic.AddInt64(&callCount, 1)
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	}))

	if _, err := s.ProcessFolder(context.Background(), "/photos"); err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}
	if callCount != 3 {
		t.Errorf("progress called %d times, want 3", callCount)
	}
}
