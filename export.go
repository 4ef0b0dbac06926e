package binmedian

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Bounds is a latitude/longitude box in signed degrees, inclusive.
type Bounds struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// World covers the whole globe.
var World = Bounds{LatMin: -90, LatMax: 90, LonMin: -180, LonMax: 180}

// Contains reports whether (lat, lon) lies inside b.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// WriteCSV writes a lat,lon,value row for every bin of field whose value is
// not fill, is below limit, and whose centre falls inside box. Pass
// math.Inf(1) to keep every value. It returns the rows written.
func WriteCSV(w io.Writer, field *BinnedField, box Bounds, limit float64) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"lat", "lon", "value"}); err != nil {
		return 0, err
	}
	n := 0
	for _, b := range field.Bins {
		v := field.Data[b-1]
		if isFill(v, field.FillValue) || !(v < limit) {
			continue
		}
		lat, lon, ok := field.Grid.BinCenter(b)
		if !ok || !box.Contains(lat, lon) {
			continue
		}
		rec := []string{
			strconv.FormatFloat(lat, 'f', 5, 64),
			strconv.FormatFloat(lon, 'f', 5, 64),
			strconv.FormatFloat(v, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return n, fmt.Errorf("csv: %w", err)
		}
		n++
	}
	cw.Flush()
	return n, cw.Error()
}
