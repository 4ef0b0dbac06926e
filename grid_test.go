package binmedian

import (
	"errors"
	"testing"
)

// uniformGrid returns a grid with rows rows of cols bins each. On such a grid
// neighbour resolution is exact, so windows are plain rectangles.
func uniformGrid(t testing.TB, rows, cols int) *Grid {
	t.Helper()
	counts := make([]int, rows)
	bases := make([]int, rows)
	for r := range counts {
		counts[r] = cols
		bases[r] = 1 + r*cols
	}
	g, err := NewGrid(counts, bases)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func TestNewGridValidation(t *testing.T) {
	cases := []struct {
		name      string
		binsInRow []int
		baseBin   []int
		ok        bool
	}{
		{"valid", []int{3, 5, 3}, []int{1, 4, 9}, true},
		{"valid offset start", []int{2, 2}, []int{10, 12}, true},
		{"no rows", nil, nil, false},
		{"length mismatch", []int{3, 5}, []int{1}, false},
		{"zero based", []int{3, 5}, []int{0, 3}, false},
		{"empty row", []int{3, 0, 3}, []int{1, 4, 4}, false},
		{"gap between rows", []int{3, 5}, []int{1, 5}, false},
		{"overlapping rows", []int{3, 5}, []int{1, 3}, false},
	}
	for _, c := range cases {
		_, err := NewGrid(c.binsInRow, c.baseBin)
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && !errors.Is(err, ErrMalformedGrid) {
			t.Errorf("%s: error = %v, want ErrMalformedGrid", c.name, err)
		}
	}
}

func TestNewGridCopiesTables(t *testing.T) {
	counts := []int{3, 5}
	bases := []int{1, 4}
	g, err := NewGrid(counts, bases)
	if err != nil {
		t.Fatal(err)
	}
	counts[0] = 100
	bases[1] = 100
	if g.BinsInRow(0) != 3 || g.BaseBin(1) != 4 {
		t.Fatal("grid aliases caller tables")
	}
}

func TestGridBounds(t *testing.T) {
	g, err := NewGrid([]int{3, 5, 3}, []int{1, 4, 9})
	if err != nil {
		t.Fatal(err)
	}
	if g.Rows() != 3 {
		t.Errorf("Rows = %d, want 3", g.Rows())
	}
	if g.FirstBin() != 1 || g.LastBin() != 11 || g.TotalBins() != 11 {
		t.Errorf("bins [%d, %d] total %d, want [1, 11] total 11", g.FirstBin(), g.LastBin(), g.TotalBins())
	}
	for _, b := range []int{0, 12, -3} {
		if g.Contains(b) {
			t.Errorf("Contains(%d) = true", b)
		}
	}
}

func TestRowOf(t *testing.T) {
	g, err := NewGrid([]int{3, 5, 3}, []int{1, 4, 9})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		bin, row int
		ok       bool
	}{
		{1, 0, true},
		{3, 0, true},
		{4, 1, true},
		{8, 1, true},
		{9, 2, true},
		{11, 2, true},
		{0, 0, false},
		{12, 0, false},
	}
	for _, c := range cases {
		row, ok := g.RowOf(c.bin)
		if ok != c.ok || (ok && row != c.row) {
			t.Errorf("RowOf(%d) = (%d, %v), want (%d, %v)", c.bin, row, ok, c.row, c.ok)
		}
	}
}

func TestNeighborBin(t *testing.T) {
	// Row 0: bins 1-4, row 1: bins 5-12.
	g, err := NewGrid([]int{4, 8}, []int{1, 5})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		bin, row, offset int
		want             int
	}{
		{1, 0, 1, 5},   // ratio 0
		{2, 0, 1, 7},   // ratio 1/4 → 2
		{3, 0, 1, 9},   // ratio 1/2 → 4
		{6, 1, -1, 2},  // ratio 1/8 → 0.5 rounds away from zero → 1
		{8, 1, -1, 3},  // ratio 3/8 → 1.5 → 2
		{12, 1, -1, 5}, // ratio 7/8 → 3.5 → 4: one past the row end
		{7, 1, 0, 7},   // same row is the identity
	}
	for _, c := range cases {
		got := g.NeighborBin(c.bin, c.row, c.offset)
		if got != c.want {
			t.Errorf("NeighborBin(%d, %d, %d) = %d, want %d", c.bin, c.row, c.offset, got, c.want)
		}
	}
}

func TestColumnBin(t *testing.T) {
	// Row 1 holds bins 4-8; row 2 starts at 9.
	g, err := NewGrid([]int{3, 5, 3}, []int{1, 4, 9})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name        string
		anchor, off int
		want        int
	}{
		{"inside", 6, 1, 7},
		{"first bin", 4, 0, 4},
		{"last bin", 8, 0, 8},
		{"one west lands on the next row start", 4, -1, 9},
		{"two west lands on the row end", 4, -2, 8},
		{"two west, one short", 5, -2, 8},
		{"one past the end is read as is", 8, 1, 9},
		{"two past the end restarts the row", 8, 2, 6},
		{"anchor past the end", 9, 1, 5},
		{"anchor past the end, back", 9, -1, 8},
	}
	for _, c := range cases {
		if got := g.columnBin(c.anchor, c.off, 1); got != c.want {
			t.Errorf("%s: columnBin(%d, %d, 1) = %d, want %d", c.name, c.anchor, c.off, got, c.want)
		}
	}
}

func TestColumnBinLastRow(t *testing.T) {
	g, err := NewGrid([]int{3, 5, 3}, []int{1, 4, 9})
	if err != nil {
		t.Fatal(err)
	}
	// One west of the last row's start resolves one past the grid.
	if got := g.columnBin(9, -1, 2); got != g.LastBin()+1 || g.Contains(got) {
		t.Errorf("columnBin(9, -1, 2) = %d, want %d off the grid", got, g.LastBin()+1)
	}
}
