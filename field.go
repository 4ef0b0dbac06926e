package binmedian

import (
	"context"
	"fmt"
	"math"
)

// BinnedField is one variable of a binned product: the grid, the bins that
// carry data, and a dense value array indexed by bin-1 in which bins without
// data hold FillValue.
type BinnedField struct {
	Grid      *Grid
	Bins      []int
	Data      []float64
	FillValue float64
}

// NewBinnedField expands sparse (bin, value) pairs onto grid.
// bins must be strictly increasing ids on the grid.
func NewBinnedField(grid *Grid, bins []int, values []float64, fill float64) (*BinnedField, error) {
	if len(bins) != len(values) {
		return nil, fmt.Errorf("%d bins but %d values", len(bins), len(values))
	}
	data := make([]float64, grid.TotalBins())
	for i := range data {
		data[i] = fill
	}
	for i, b := range bins {
		if !grid.Contains(b) || (i > 0 && b <= bins[i-1]) {
			return nil, fmt.Errorf("%w: bins[%d]=%d", ErrBinOrder, i, b)
		}
		data[b-1] = values[i]
	}
	return &BinnedField{
		Grid:      grid,
		Bins:      append([]int(nil), bins...),
		Data:      data,
		FillValue: fill,
	}, nil
}

// Values returns the values of f.Bins in order.
func (f *BinnedField) Values() []float64 {
	out := make([]float64, len(f.Bins))
	for i, b := range f.Bins {
		out[i] = f.Data[b-1]
	}
	return out
}

// Lookup returns the value of the bin containing (lat°N, lon°E).
// Returns math.NaN() if that bin holds the fill value.
func (f *BinnedField) Lookup(lat, lon float64) float64 {
	v := f.Data[f.Grid.BinAt(lat, lon)-1]
	if isFill(v, f.FillValue) {
		return math.NaN()
	}
	return v
}

// Log returns a copy of f holding the natural logarithm of every bin value.
// Bins whose value is zero or negative have no logarithm and become fill.
func (f *BinnedField) Log() *BinnedField {
	out := &BinnedField{
		Grid:      f.Grid,
		Bins:      append([]int(nil), f.Bins...),
		Data:      append([]float64(nil), f.Data...),
		FillValue: f.FillValue,
	}
	for _, b := range out.Bins {
		v := out.Data[b-1]
		switch {
		case isFill(v, f.FillValue):
		case v > 0:
			out.Data[b-1] = math.Log(v)
		default:
			out.Data[b-1] = f.FillValue
		}
	}
	return out
}

// Filtered runs the contextual median filter over f and returns a new field
// on the same grid and bins holding the filtered values.
func (f *BinnedField) Filtered(ctx context.Context, opts ...Option) (*BinnedField, Stats, error) {
	flt, err := NewFilter(f.Grid, f.FillValue, opts...)
	if err != nil {
		return nil, Stats{}, err
	}
	vals, st, err := flt.RunParallel(ctx, f.Bins, f.Data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("filtering: %w", err)
	}
	out, err := NewBinnedField(f.Grid, f.Bins, vals, f.FillValue)
	if err != nil {
		return nil, Stats{}, err
	}
	return out, st, nil
}
