package storage

import (
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/san-kum/gasket/internal/logging"
)

const GIFName = "animation.gif"

// ErrNoFrames is returned when a run has nothing to assemble.
var ErrNoFrames = errors.New("storage: run has no frames")

type GIFOptions struct {
	// FPS sets the frame delay. GIF delays are in hundredths of a second,
	// so rates above 100 fps are clamped.
	FPS float64
	// Width scales frames down before quantizing. Zero keeps full size.
	Width int
}

func (o GIFOptions) delay() int {
	if o.FPS <= 0 {
		return 4
	}
	return max(1, int(math.Round(100/o.FPS)))
}

// AssembleGIF encodes every persisted frame of r, in frame order, as an
// animated GIF on w. It returns the number of frames written.
func (r *Run) AssembleGIF(w io.Writer, opts GIFOptions) (int, error) {
	paths, err := r.Frames()
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoFrames, r.id)
	}

	anim := gif.GIF{LoopCount: 0}
	for _, path := range paths {
		img, err := decodePNG(path)
		if err != nil {
			return 0, err
		}
		anim.Image = append(anim.Image, quantize(img, opts.Width))
		anim.Delay = append(anim.Delay, opts.delay())
	}

	if err := gif.EncodeAll(w, &anim); err != nil {
		return 0, fmt.Errorf("encode gif: %w", err)
	}
	logging.Logger().Info("gif assembled", "run", r.id, "frames", len(paths))
	return len(paths), nil
}

// WriteGIF assembles the run's GIF next to its frames and returns its path.
func (r *Run) WriteGIF(opts GIFOptions) (string, error) {
	path := filepath.Join(r.dir, GIFName)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if _, err := r.AssembleGIF(f, opts); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close gif: %w", err)
	}
	return path, nil
}

func quantize(src image.Image, width int) *image.Paletted {
	b := src.Bounds()
	dst := b
	if width > 0 && b.Dx() > width {
		dst = image.Rect(0, 0, width, max(1, b.Dy()*width/b.Dx()))
	}

	scaled := src
	if dst != b {
		rgba := image.NewRGBA(dst)
		draw.ApproxBiLinear.Scale(rgba, dst, src, b, draw.Src, nil)
		scaled = rgba
	}

	out := image.NewPaletted(image.Rect(0, 0, dst.Dx(), dst.Dy()), palette.Plan9)
	draw.FloydSteinberg.Draw(out, out.Bounds(), scaled, scaled.Bounds().Min)
	return out
}
