// Package viz draws run progress in the terminal.
//
//   - [ProgressModel]: Bubble Tea model following a controller run, with a
//     throughput sparkline and a braille preview of the latest frame
//   - [Canvas]: braille pixel canvas the preview is sampled onto
//   - [RevealCurve]: asciigraph plot of visible circles per frame
//
// # Key Bindings
//
//	q, Esc, Ctrl+C - cancel the run, then exit once it has wound down
package viz
