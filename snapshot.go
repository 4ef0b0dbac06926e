package binmedian

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshot is the msgpack form of a BinnedField. Only bins that carry data
// are stored; Data is rebuilt on decode.
type snapshot struct {
	BinsInRow []int     `msgpack:"rows_bins"`
	BaseBin   []int     `msgpack:"base_bins"`
	Bins      []int     `msgpack:"bins"`
	Values    []float64 `msgpack:"values"`
	FillValue float64   `msgpack:"fill_value"`
}

// EncodeSnapshot writes field to w as msgpack.
func EncodeSnapshot(w io.Writer, field *BinnedField) error {
	g := field.Grid
	s := snapshot{
		BinsInRow: g.binsInRow,
		BaseBin:   g.baseBin,
		Bins:      field.Bins,
		Values:    field.Values(),
		FillValue: field.FillValue,
	}
	if err := msgpack.NewEncoder(w).Encode(&s); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads a field written by EncodeSnapshot, validating the
// grid tables and bin order as NewGrid and NewBinnedField do.
func DecodeSnapshot(r io.Reader) (*BinnedField, error) {
	var s snapshot
	if err := msgpack.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	grid, err := NewGrid(s.BinsInRow, s.BaseBin)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	field, err := NewBinnedField(grid, s.Bins, s.Values, s.FillValue)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return field, nil
}
