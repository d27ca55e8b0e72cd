package render

import (
	"io"
	"sync"
)

// CanvasPool recycles canvases of one size between frame renders so each
// worker does not allocate a fresh pixmap per frame.
type CanvasPool struct {
	pool          sync.Pool
	width, height int
}

func NewCanvasPool(width, height int, newCanvas func(w, h int) Canvas) *CanvasPool {
	if newCanvas == nil {
		newCanvas = func(w, h int) Canvas { return NewGGCanvas(w, h) }
	}
	return &CanvasPool{
		width:  width,
		height: height,
		pool: sync.Pool{
			New: func() interface{} {
				return newCanvas(width, height)
			},
		},
	}
}

func (p *CanvasPool) Get() Canvas {
	return p.pool.Get().(Canvas)
}

// Put returns c to the pool. Canvases of another size are dropped and,
// when they hold resources, closed.
func (p *CanvasPool) Put(c Canvas) {
	if c.Width() == p.width && c.Height() == p.height {
		p.pool.Put(c)
		return
	}
	if cl, ok := c.(io.Closer); ok {
		cl.Close()
	}
}
