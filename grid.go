// Package binmedian applies a contextual median filter to data stored on
// row-organized binned grids, such as the integerized sinusoidal grids used
// for level-3 ocean colour products.
package binmedian

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMalformedGrid is wrapped by every grid table validation failure.
var ErrMalformedGrid = errors.New("binmedian: malformed grid")

// maxRows caps the row count accepted from external tables.
// The finest standard ocean colour grid (SeaWiFS 1 km) has 17280 rows.
const maxRows = 1 << 20

// maxBins caps the total bin count, which sizes every dense data array.
const maxBins = 1 << 29

// Grid describes an irregular binned grid: every row holds a different number
// of bins, and bins are numbered contiguously from baseBin[0] across rows.
// Bin ids are 1-based; bin b is stored at data index b-1.
type Grid struct {
	binsInRow []int
	baseBin   []int
}

// NewGrid validates the per-row tables and returns a Grid.
// The tables are copied; later changes by the caller have no effect.
func NewGrid(binsInRow, baseBin []int) (*Grid, error) {
	if len(binsInRow) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformedGrid)
	}
	if len(binsInRow) != len(baseBin) {
		return nil, fmt.Errorf("%w: %d row counts but %d base bins",
			ErrMalformedGrid, len(binsInRow), len(baseBin))
	}
	if len(binsInRow) > maxRows {
		return nil, fmt.Errorf("%w: %d rows exceeds maximum %d", ErrMalformedGrid, len(binsInRow), maxRows)
	}
	if baseBin[0] < 1 {
		return nil, fmt.Errorf("%w: first base bin %d, bin ids are 1-based", ErrMalformedGrid, baseBin[0])
	}
	for r, n := range binsInRow {
		if n < 1 {
			return nil, fmt.Errorf("%w: row %d has %d bins", ErrMalformedGrid, r, n)
		}
		if r > 0 && baseBin[r] != baseBin[r-1]+binsInRow[r-1] {
			return nil, fmt.Errorf("%w: row %d starts at bin %d, want %d",
				ErrMalformedGrid, r, baseBin[r], baseBin[r-1]+binsInRow[r-1])
		}
		if n > maxBins || baseBin[r] > maxBins-n {
			return nil, fmt.Errorf("%w: more than %d bins", ErrMalformedGrid, maxBins)
		}
	}
	g := &Grid{
		binsInRow: append([]int(nil), binsInRow...),
		baseBin:   append([]int(nil), baseBin...),
	}
	return g, nil
}

// Rows returns the number of rows in the grid.
func (g *Grid) Rows() int { return len(g.binsInRow) }

// BinsInRow returns the bin count of row.
func (g *Grid) BinsInRow(row int) int { return g.binsInRow[row] }

// BaseBin returns the id of the first bin in row.
func (g *Grid) BaseBin(row int) int { return g.baseBin[row] }

// FirstBin returns the lowest bin id in the grid.
func (g *Grid) FirstBin() int { return g.baseBin[0] }

// LastBin returns the highest bin id in the grid.
func (g *Grid) LastBin() int {
	last := len(g.baseBin) - 1
	return g.baseBin[last] + g.binsInRow[last] - 1
}

// TotalBins returns the length a dense data array must have to be indexed by
// bin-1 for every bin in the grid.
func (g *Grid) TotalBins() int { return g.LastBin() }

// Contains reports whether bin is a valid id for this grid.
func (g *Grid) Contains(bin int) bool {
	return bin >= g.FirstBin() && bin <= g.LastBin()
}

// rowEnd returns the id one past the last bin of row.
func (g *Grid) rowEnd(row int) int { return g.baseBin[row] + g.binsInRow[row] }

// RowOf returns the row holding bin.
func (g *Grid) RowOf(bin int) (int, bool) {
	if !g.Contains(bin) {
		return 0, false
	}
	// First row whose successor starts past bin.
	row := sort.Search(len(g.baseBin), func(r int) bool { return g.rowEnd(r) > bin })
	return row, true
}

// NeighborBin returns the bin in row+rowOffset that sits at the same relative
// position along its row as bin does along row. Positions are matched by the
// ratio of the offset from the row start to the row length, rounded half away
// from zero, so the result may be off by one bin from the geometric neighbour.
// row+rowOffset must be a valid row; no bounds checks are made.
func (g *Grid) NeighborBin(bin, row, rowOffset int) int {
	ratio := float64(bin-g.baseBin[row]) / float64(g.binsInRow[row])
	other := row + rowOffset
	return int(math.Round(ratio*float64(g.binsInRow[other]))) + g.baseBin[other]
}

// columnBin resolves the bin off columns from anchor along row, wrapping
// candidates that fall outside the row:
//   - west of the row start, the result is rowEnd(row)+off+1, so one step
//     west lands on the first bin of the next row and two steps on the last
//     bin of row;
//   - more than one bin past the row end, the result is baseBin[row]+off;
//   - otherwise, including one bin past the end, the candidate is used as is.
//
// Near the last row the result can lie past LastBin; callers treat such
// bins as missing.
func (g *Grid) columnBin(anchor, off, row int) int {
	c := anchor + off
	switch {
	case c < g.baseBin[row]:
		return g.rowEnd(row) + off + 1
	case c-1 >= g.rowEnd(row):
		return g.baseBin[row] + off
	}
	return c
}
