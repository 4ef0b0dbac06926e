package binmedian

import (
	"errors"
	"math"
)

// ErrBadWidth is returned for window widths other than 3 and 5.
var ErrBadWidth = errors.New("binmedian: window width must be 3 or 5")

// maxWidth bounds the window side so cells can live in a fixed array.
const maxWidth = 5

// GapPolicy selects how a window treats cells that hold the fill value.
type GapPolicy int

const (
	// RejectGaps discards the whole window when any cell is missing.
	RejectGaps GapPolicy = iota
	// FillGaps replaces missing cells with the median of the valid cells.
	FillGaps
)

// Window is a square neighbourhood of bins, stored row-major: cell (i, j) is
// cells[i*width+j]. Window row i comes from grid row row+i-center, and column
// j is the (j-center)th bin along that row from the anchor bin, so columns do
// not line up with fixed longitudes across rows.
type Window struct {
	width int
	cells [maxWidth * maxWidth]float64
}

// NewWindow returns an empty window of the given width.
func NewWindow(width int) (*Window, error) {
	if width != 3 && width != 5 {
		return nil, ErrBadWidth
	}
	return &Window{width: width}, nil
}

// Width returns the side length of the window.
func (w *Window) Width() int { return w.width }

// Center returns the index of the middle row and column.
func (w *Window) Center() int { return (w.width - 1) / 2 }

// At returns cell (i, j).
func (w *Window) At(i, j int) float64 { return w.cells[i*w.width+j] }

// Set stores v in cell (i, j).
func (w *Window) Set(i, j int, v float64) { w.cells[i*w.width+j] = v }

// Values returns the width*width cells in row-major order.
// The slice aliases the window and is overwritten by the next extraction.
func (w *Window) Values() []float64 { return w.cells[:w.width*w.width] }

// Window fills dst with the values around bin, which lies in row.
// data is indexed by bin-1. Columns that run off the west end of a row read
// from its east end and those past the east end read from its west end; a
// wrapped column may land in the next row, and one beyond the grid reads as
// fill. It reports false, leaving dst unspecified, when the centre bin holds
// fill, when row lacks dst.Width()/2 rows of margin on either side, or when
// policy is RejectGaps and any cell holds fill.
//
// Under FillGaps every missing cell receives the same value: the median of
// the valid cells, taken once when the first gap is met. Cells patched
// earlier in the window do not feed into that median.
func (g *Grid) Window(dst *Window, bin, row int, data []float64, fill float64, policy GapPolicy) bool {
	if isFill(data[bin-1], fill) {
		return false
	}
	width := dst.width
	half := (width - 1) / 2
	if row-half < 0 || row+half >= g.Rows() {
		return false
	}

	gaps := false
	for i := 0; i < width; i++ {
		nrow := row + i - half
		anchor := g.NeighborBin(bin, row, i-half)
		for j := 0; j < width; j++ {
			v := fill
			if b := g.columnBin(anchor, j-half, nrow); g.Contains(b) {
				v = data[b-1]
			}
			if isFill(v, fill) {
				if policy == RejectGaps {
					return false
				}
				gaps = true
			}
			dst.cells[i*width+j] = v
		}
	}
	if gaps {
		dst.patchGaps(fill)
	}
	return true
}

// patchGaps overwrites fill cells with the median of the non-fill cells.
func (w *Window) patchGaps(fill float64) {
	var buf [maxWidth * maxWidth]float64
	valid := buf[:0]
	for _, v := range w.Values() {
		if !isFill(v, fill) {
			valid = append(valid, v)
		}
	}
	var mdn float64
	computed := false
	cells := w.Values()
	for k, v := range cells {
		if !isFill(v, fill) {
			continue
		}
		if !computed {
			// The centre is never fill, so valid is non-empty.
			mdn, _ = Median(valid)
			computed = true
		}
		cells[k] = mdn
	}
}

// isFill reports whether v is the fill value. A NaN fill matches NaN data.
func isFill(v, fill float64) bool {
	if math.IsNaN(fill) {
		return math.IsNaN(v)
	}
	return v == fill
}
