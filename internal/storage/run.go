package storage

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
)

// FrameName is the file name of frame n inside a run directory.
func FrameName(n int) string {
	return fmt.Sprintf("out%04d.png", n)
}

// Run is one directory of persisted frames. WriteFrame makes it a
// pipeline.Sink.
type Run struct {
	dir string
	id  string
}

func (r *Run) ID() string  { return r.id }
func (r *Run) Dir() string { return r.dir }

func (r *Run) FramePath(n int) string {
	return filepath.Join(r.dir, FrameName(n))
}

// WriteFrame encodes img as PNG under the frame's name. The file is
// written to a temporary name first so a crash never leaves a truncated
// frame behind.
func (r *Run) WriteFrame(n int, img image.Image) error {
	path := r.FramePath(n)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create frame file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode frame %d: %w", n, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close frame file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename frame %d: %w", n, err)
	}
	return nil
}

func (r *Run) SaveMetadata(meta RunMetadata) error {
	f, err := os.Create(filepath.Join(r.dir, metadataFile))
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		f.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}
	return nil
}

func (r *Run) Metadata() (*RunMetadata, error) {
	return readMetadata(r.dir)
}

// Frames lists the persisted frame files in frame order.
func (r *Run) Frames() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(r.dir, "out[0-9][0-9][0-9][0-9]*.png"))
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return frameNumber(paths[i]) < frameNumber(paths[j])
	})
	return paths, nil
}

func frameNumber(path string) int {
	var n int
	fmt.Sscanf(filepath.Base(path), "out%d.png", &n)
	return n
}

// LoadFrame decodes a persisted frame.
func (r *Run) LoadFrame(n int) (image.Image, error) {
	return decodePNG(r.FramePath(n))
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
