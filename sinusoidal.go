package binmedian

import (
	"fmt"
	"math"
)

// NewSinusoidalGrid builds the integerized sinusoidal grid used by level-3
// ocean colour binned products. Rows are equal-latitude bands ordered south
// to north; row r holds round(2*nrows*cos(lat_r)) bins, so bins keep a near
// constant area. Common row counts are 2160 (4.6 km) and 4320 (2.3 km).
func NewSinusoidalGrid(nrows int) (*Grid, error) {
	if nrows < 1 || nrows > maxRows {
		return nil, fmt.Errorf("%w: sinusoidal grid with %d rows", ErrMalformedGrid, nrows)
	}
	binsInRow := make([]int, nrows)
	baseBin := make([]int, nrows)
	next := 1
	for r := 0; r < nrows; r++ {
		lat := rowLatitude(r, nrows)
		binsInRow[r] = int(2*float64(nrows)*math.Cos(toRad(lat)) + 0.5)
		baseBin[r] = next
		next += binsInRow[r]
	}
	return NewGrid(binsInRow, baseBin)
}

// rowLatitude returns the centre latitude of row r in an nrows sinusoidal grid.
func rowLatitude(r, nrows int) float64 {
	return (float64(r)+0.5)*180/float64(nrows) - 90
}

// BinCenter returns the centre (lat°N, lon°E) of bin, assuming the grid rows
// are equal-latitude bands from the south pole and every row spans -180..180.
func (g *Grid) BinCenter(bin int) (lat, lon float64, ok bool) {
	row, ok := g.RowOf(bin)
	if !ok {
		return 0, 0, false
	}
	lat = rowLatitude(row, g.Rows())
	lon = 360*(float64(bin-g.baseBin[row])+0.5)/float64(g.binsInRow[row]) - 180
	return lat, lon, true
}

// BinAt returns the bin whose cell contains (lat°N, lon°E).
// Latitudes are clamped to the poles; longitudes may use either the
// -180..180 or the 0..360 convention.
func (g *Grid) BinAt(lat, lon float64) int {
	nrows := g.Rows()
	row := int(math.Floor((lat + 90) * float64(nrows) / 180))
	row = clamp(row, 0, nrows-1)

	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	n := g.binsInRow[row]
	col := clamp(int(math.Floor(lon*float64(n)/360)), 0, n-1)
	return g.baseBin[row] + col
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
