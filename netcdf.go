package binmedian

import (
	"fmt"

	"github.com/ctessum/cdf"
)

// DefaultFillValue is the fill used when a file carries no _FillValue.
const DefaultFillValue = -999.0

// Variable and dimension names of the netCDF-3 binned layout.
const (
	ncRowDim    = "rows"
	ncBinDim    = "bins"
	ncNumBin    = "numbin"
	ncBaseBin   = "basebin"
	ncBinNum    = "bin_num"
	ncFillAttr  = "_FillValue"
	ncNRowsAttr = "nrows"
)

// ReadOption configures ReadNetCDF.
type ReadOption func(*readConfig)

type readConfig struct {
	weights string
}

// WithWeights names a per-bin weights variable. The data variable then holds
// weighted sums, and each bin's value is its sum divided by its weight. Bins
// with a weight of zero or less become fill.
func WithWeights(variable string) ReadOption {
	return func(c *readConfig) { c.weights = variable }
}

// ReadNetCDF loads variable from a netCDF-3 binned file.
//
// The file holds a "bins" dimension with int32 variable bin_num (the ids of
// bins that carry data) and the float32 data variable over the same
// dimension. Grid tables come from int32 variables numbin and basebin over a
// "rows" dimension; when those are absent the standard sinusoidal grid with
// as many rows as the global nrows attribute is used.
func ReadNetCDF(rw cdf.ReaderWriterAt, variable string, opts ...ReadOption) (*BinnedField, error) {
	var rc readConfig
	for _, opt := range opts {
		opt(&rc)
	}

	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("opening netcdf: %w", err)
	}
	h := f.Header

	has := make(map[string]bool)
	for _, v := range h.Variables() {
		has[v] = true
	}
	if !has[ncBinNum] {
		return nil, fmt.Errorf("netcdf: no %s variable", ncBinNum)
	}
	if !has[variable] {
		return nil, fmt.Errorf("netcdf: no %s variable", variable)
	}

	grid, err := readGrid(f, has)
	if err != nil {
		return nil, err
	}

	nbins := h.Lengths(ncBinNum)[0]
	binNums := make([]int32, nbins)
	if _, err := f.Reader(ncBinNum, nil, nil).Read(binNums); err != nil {
		return nil, fmt.Errorf("netcdf: reading %s: %w", ncBinNum, err)
	}
	raw, err := readFloats(f, variable, nbins)
	if err != nil {
		return nil, err
	}
	var weights []float32
	if rc.weights != "" {
		if !has[rc.weights] {
			return nil, fmt.Errorf("netcdf: no %s variable", rc.weights)
		}
		if weights, err = readFloats(f, rc.weights, nbins); err != nil {
			return nil, err
		}
	}

	fill := DefaultFillValue
	switch a := h.GetAttribute(variable, ncFillAttr).(type) {
	case []float32:
		if len(a) > 0 {
			fill = float64(a[0])
		}
	case []float64:
		if len(a) > 0 {
			fill = a[0]
		}
	}

	bins := make([]int, nbins)
	vals := make([]float64, nbins)
	for i := range binNums {
		bins[i] = int(binNums[i])
		vals[i] = float64(raw[i])
		if weights == nil || isFill(vals[i], fill) {
			continue
		}
		if w := float64(weights[i]); w > 0 {
			vals[i] /= w
		} else {
			vals[i] = fill
		}
	}
	field, err := NewBinnedField(grid, bins, vals, fill)
	if err != nil {
		return nil, fmt.Errorf("netcdf: %w", err)
	}
	return field, nil
}

// readFloats reads a float32 variable over the bins dimension.
func readFloats(f *cdf.File, variable string, nbins int) ([]float32, error) {
	if got := f.Header.Lengths(variable); len(got) != 1 || got[0] != nbins {
		return nil, fmt.Errorf("netcdf: %s has shape %v, want [%d]", variable, got, nbins)
	}
	out := make([]float32, nbins)
	if _, err := f.Reader(variable, nil, nil).Read(out); err != nil {
		return nil, fmt.Errorf("netcdf: reading %s: %w", variable, err)
	}
	return out, nil
}

// readGrid builds the grid from the row tables, or from the row count alone.
func readGrid(f *cdf.File, has map[string]bool) (*Grid, error) {
	if !has[ncNumBin] || !has[ncBaseBin] {
		nrows, err := rowCount(f.Header)
		if err != nil {
			return nil, err
		}
		return NewSinusoidalGrid(nrows)
	}
	nrows := f.Header.Lengths(ncNumBin)[0]
	numbin := make([]int32, nrows)
	basebin := make([]int32, nrows)
	if _, err := f.Reader(ncNumBin, nil, nil).Read(numbin); err != nil {
		return nil, fmt.Errorf("netcdf: reading %s: %w", ncNumBin, err)
	}
	if _, err := f.Reader(ncBaseBin, nil, nil).Read(basebin); err != nil {
		return nil, fmt.Errorf("netcdf: reading %s: %w", ncBaseBin, err)
	}
	return NewGrid(toInts(numbin), toInts(basebin))
}

// rowCount reads the nrows global attribute.
func rowCount(h *cdf.Header) (int, error) {
	switch a := h.GetAttribute("", ncNRowsAttr).(type) {
	case []int32:
		if len(a) > 0 {
			return int(a[0]), nil
		}
	case []int16:
		if len(a) > 0 {
			return int(a[0]), nil
		}
	}
	return 0, fmt.Errorf("netcdf: no grid tables and no %s attribute", ncNRowsAttr)
}

// WriteNetCDF writes field to w in the layout read by ReadNetCDF, storing the
// values of field.Bins under variable and the grid row tables alongside.
func WriteNetCDF(w cdf.ReaderWriterAt, field *BinnedField, variable string) error {
	if len(field.Bins) == 0 {
		return fmt.Errorf("netcdf: field has no bins to write")
	}
	g := field.Grid
	h := cdf.NewHeader([]string{ncRowDim, ncBinDim}, []int{g.Rows(), len(field.Bins)})
	h.AddAttribute("", "comment", "contextual median filtered binned data")
	h.AddAttribute("", ncNRowsAttr, []int32{int32(g.Rows())})
	h.AddVariable(ncNumBin, []string{ncRowDim}, []int32{0})
	h.AddVariable(ncBaseBin, []string{ncRowDim}, []int32{0})
	h.AddVariable(ncBinNum, []string{ncBinDim}, []int32{0})
	h.AddVariable(variable, []string{ncBinDim}, []float32{0})
	h.AddAttribute(variable, ncFillAttr, []float32{float32(field.FillValue)})
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("netcdf: creating: %w", err)
	}

	numbin := make([]int32, g.Rows())
	basebin := make([]int32, g.Rows())
	for r := range numbin {
		numbin[r] = int32(g.BinsInRow(r))
		basebin[r] = int32(g.BaseBin(r))
	}
	binNums := make([]int32, len(field.Bins))
	vals := make([]float32, len(field.Bins))
	for i, b := range field.Bins {
		binNums[i] = int32(b)
		vals[i] = float32(field.Data[b-1])
	}

	writes := []struct {
		name string
		data interface{}
	}{
		{ncNumBin, numbin},
		{ncBaseBin, basebin},
		{ncBinNum, binNums},
		{variable, vals},
	}
	for _, wr := range writes {
		if err := writeVar(f, wr.name, wr.data); err != nil {
			return fmt.Errorf("netcdf: writing %s: %w", wr.name, err)
		}
	}
	return nil
}

func writeVar(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	_, err := f.Writer(name, start, end).Write(data)
	return err
}

func toInts(v []int32) []int {
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
