package binmedian

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

// FuzzFilterRun feeds arbitrary bytes, read as float32 values, to Run over a
// small sinusoidal grid. The invariant is that it must never panic, and every
// output is either the input value, the fill value, or a value taken from the
// input.
// Run with: go test -fuzz=FuzzFilterRun -fuzztime=60s ./...
func FuzzFilterRun(f *testing.F) {
	seeds := [][]byte{
		{},
		{0x00, 0x00, 0x80, 0x3F},
		bytes.Repeat([]byte{0x00, 0x00, 0x7A, 0xC4}, 64), // -1000
		bytes.Repeat([]byte{0x00, 0x00, 0xC0, 0x7F}, 32), // NaN
		bytes.Repeat([]byte{0xFF}, 256),
		make([]byte, 1024),
	}
	for _, s := range seeds {
		f.Add(s)
	}

	g, err := NewSinusoidalGrid(12)
	if err != nil {
		f.Fatal(err)
	}
	flt, err := NewFilter(g, -999)
	if err != nil {
		f.Fatal(err)
	}
	bins := make([]int, g.TotalBins())
	for i := range bins {
		bins[i] = i + 1
	}

	f.Fuzz(func(t *testing.T, raw []byte) {
		data := make([]float64, g.TotalBins())
		seen := map[float64]bool{-999: true}
		for i := range data {
			data[i] = -999
			if off := 4 * i; off+4 <= len(raw) {
				v := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off:])))
				if math.IsNaN(v) || math.IsInf(v, 0) {
					v = -999
				}
				data[i] = v
				seen[v] = true
			}
		}

		out, st, err := flt.Run(bins, data)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if st.Bins != len(bins) {
			t.Fatalf("Stats.Bins = %d, want %d", st.Bins, len(bins))
		}
		for i, v := range out {
			if !seen[v] {
				t.Fatalf("out[%d] = %g does not occur in the input", i, v)
			}
		}
	})
}

// FuzzDecodeSnapshot feeds arbitrary bytes to DecodeSnapshot.
// The invariant: no panic, only an error or a valid field.
// Run with: go test -fuzz=FuzzDecodeSnapshot -fuzztime=60s ./...
func FuzzDecodeSnapshot(f *testing.F) {
	g, err := NewSinusoidalGrid(6)
	if err != nil {
		f.Fatal(err)
	}
	field, err := NewBinnedField(g, []int{2, 9, 10}, []float64{1, 2, 3}, -999)
	if err != nil {
		f.Fatal(err)
	}
	var good bytes.Buffer
	if err := EncodeSnapshot(&good, field); err != nil {
		f.Fatal(err)
	}
	seeds := [][]byte{
		good.Bytes(),
		{},
		{0x80},
		{0x85, 0xA9, 'r', 'o', 'w', 's', '_', 'b', 'i', 'n', 's', 0xC0},
		bytes.Repeat([]byte{0xFF}, 16),
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		fld, err := DecodeSnapshot(bytes.NewReader(data))
		if err != nil {
			return
		}
		if len(fld.Data) != fld.Grid.TotalBins() {
			t.Fatalf("len(Data) = %d, want %d", len(fld.Data), fld.Grid.TotalBins())
		}
	})
}
