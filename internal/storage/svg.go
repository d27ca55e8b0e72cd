package storage

import (
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/san-kum/gasket/internal/render"
)

// AllFrames makes GasketSVG include every circle regardless of its reveal
// frame.
const AllFrames = -1

func hexColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// GasketSVG renders the circles of a visible at frame as an SVG document,
// using the same layout and colours as the raster renderer.
func GasketSVG(a *render.Animation, frame int) string {
	st := a.State
	cols := a.Colors()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, st.Width, st.Height, st.Width, st.Height, hexColor(render.Background)))

	ref := a.Gasket.Reference()
	x, y, r := st.ToCanvas(ref.Center, ref.Radius)
	sb.WriteString(fmt.Sprintf(`<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s"/>
`, x, y, r, hexColor(cols[0])))

	for i, c := range a.Gasket.Generated {
		if frame != AllFrames && !a.Schedule.Visible(i, frame) {
			continue
		}
		x, y, r := st.ToCanvas(c.Center, c.Radius)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s"/>
`, x, y, r, hexColor(cols[i+1])))
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

// WriteSVG writes GasketSVG to w.
func WriteSVG(w io.Writer, a *render.Animation, frame int) error {
	_, err := io.WriteString(w, GasketSVG(a, frame))
	return err
}
