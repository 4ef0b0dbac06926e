package binmedian

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrDataLength is returned when the data array does not cover the grid.
	ErrDataLength = errors.New("binmedian: data length does not match grid")
	// ErrBinOrder is returned when bins are unsorted, repeated or off the grid.
	ErrBinOrder = errors.New("binmedian: bins must be strictly increasing grid ids")
)

// edgeRows is the margin needed above and below a bin for a 5×5 window.
const edgeRows = 2

// Outcome records what the filter did with a single bin.
type Outcome uint8

const (
	// Unchanged bins keep their original value.
	Unchanged Outcome = iota
	// Substituted bins were replaced by their 3×3 median.
	Substituted
	// InsufficientMargin bins lie within two rows of the grid edge.
	InsufficientMargin
	// MissingCenter bins hold the fill value themselves.
	MissingCenter
	// GapInPrimaryWindow bins have a fill value somewhere in their 5×5 window.
	GapInPrimaryWindow

	numOutcomes
)

var outcomeNames = [numOutcomes]string{
	"unchanged", "substituted", "insufficient-margin", "missing-center", "gap-in-primary-window",
}

func (o Outcome) String() string {
	if o < numOutcomes {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", o)
}

// Filter is a contextual median filter bound to one grid and fill value.
// A Filter holds no per-run state and may be used from several goroutines.
type Filter struct {
	grid    *Grid
	fill    float64
	log     *zap.Logger
	workers int
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger used for run summaries. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.log = l
		}
	}
}

// WithWorkers caps the goroutines used by RunParallel.
// Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(f *Filter) { f.workers = n }
}

// NewFilter returns a filter for data on grid, where fillValue marks bins
// without data. fillValue may be NaN.
func NewFilter(grid *Grid, fillValue float64, opts ...Option) (*Filter, error) {
	if grid == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrMalformedGrid)
	}
	f := &Filter{grid: grid, fill: fillValue, log: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	if f.workers < 1 {
		f.workers = runtime.NumCPU()
	}
	return f, nil
}

// Grid returns the grid the filter was built for.
func (f *Filter) Grid() *Grid { return f.grid }

// FillValue returns the sentinel marking missing data.
func (f *Filter) FillValue() float64 { return f.fill }

// Run filters the listed bins in a single pass and returns one output value
// per bin: the bin's own value, its 3×3 median, or the fill value.
// bins must be strictly increasing ids on the grid; data is dense and indexed
// by bin-1, so len(data) must equal Grid().TotalBins().
//
// A bin is replaced by its 3×3 median only when it is an extremum of its 3×3
// window but not of its 5×5 window. Bins within two rows of the grid edge,
// bins holding fill, and bins whose 5×5 window has any fill become fill.
func (f *Filter) Run(bins []int, data []float64) ([]float64, Stats, error) {
	if err := f.validate(bins, data); err != nil {
		return nil, Stats{}, err
	}
	start := time.Now()
	out := make([]float64, len(bins))
	var t tally
	if len(bins) > 0 {
		row, _ := f.grid.RowOf(bins[0])
		t = f.filterSpan(bins, data, out, row)
	}
	st := t.stats(len(bins))
	f.logRun(st, 1, time.Since(start))
	return out, st, nil
}

// RunParallel is Run with the bins split into row-aligned spans that are
// filtered concurrently, each with its own window buffers. The output is
// identical to Run. It stops early and returns ctx.Err() if ctx is cancelled.
func (f *Filter) RunParallel(ctx context.Context, bins []int, data []float64) ([]float64, Stats, error) {
	if err := f.validate(bins, data); err != nil {
		return nil, Stats{}, err
	}
	start := time.Now()
	out := make([]float64, len(bins))
	spans := f.spans(bins, f.workers*4)
	tallies := make([]tally, len(spans))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for k, sp := range spans {
		k, sp := k, sp
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, _ := f.grid.RowOf(bins[sp.lo])
			tallies[k] = f.filterSpan(bins[sp.lo:sp.hi], data, out[sp.lo:sp.hi], row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var t tally
	for _, p := range tallies {
		t.merge(p)
	}
	st := t.stats(len(bins))
	f.logRun(st, len(spans), time.Since(start))
	return out, st, nil
}

// validate checks the run inputs against the grid contract.
func (f *Filter) validate(bins []int, data []float64) error {
	if len(data) != f.grid.TotalBins() {
		return fmt.Errorf("%w: %d values for %d bins", ErrDataLength, len(data), f.grid.TotalBins())
	}
	prev := 0
	for i, b := range bins {
		if !f.grid.Contains(b) {
			return fmt.Errorf("%w: bins[%d]=%d outside [%d, %d]", ErrBinOrder, i, b, f.grid.FirstBin(), f.grid.LastBin())
		}
		if i > 0 && b <= prev {
			return fmt.Errorf("%w: bins[%d]=%d follows %d", ErrBinOrder, i, b, prev)
		}
		prev = b
	}
	return nil
}

type span struct{ lo, hi int }

// spans cuts bins into about n pieces, moving each cut forward to the next
// row boundary so no row is split between workers.
func (f *Filter) spans(bins []int, n int) []span {
	if len(bins) == 0 {
		return nil
	}
	size := (len(bins) + n - 1) / n
	var out []span
	for lo := 0; lo < len(bins); {
		hi := lo + size
		if hi >= len(bins) {
			out = append(out, span{lo, len(bins)})
			break
		}
		row, _ := f.grid.RowOf(bins[hi-1])
		end := f.grid.rowEnd(row)
		for hi < len(bins) && bins[hi] < end {
			hi++
		}
		out = append(out, span{lo, hi})
		lo = hi
	}
	return out
}

// scratch holds the window buffers reused across the bins of one span.
type scratch struct {
	five, three Window
}

func newScratch() *scratch {
	return &scratch{five: Window{width: 5}, three: Window{width: 3}}
}

// filterSpan filters bins into out. row must be the row of bins[0]; the
// counter then only moves forward as bins cross row ends.
func (f *Filter) filterSpan(bins []int, data, out []float64, row int) tally {
	s := newScratch()
	var t tally
	for i, bin := range bins {
		for bin >= f.grid.rowEnd(row) {
			row++
		}
		v, o := f.filterBin(s, bin, row, data)
		out[i] = v
		t.add(o, v-data[bin-1])
	}
	return t
}

// filterBin applies the contextual median filter to one bin.
func (f *Filter) filterBin(s *scratch, bin, row int, data []float64) (float64, Outcome) {
	if row < edgeRows || row > f.grid.Rows()-1-edgeRows {
		return f.fill, InsufficientMargin
	}
	value := data[bin-1]
	if isFill(value, f.fill) {
		return f.fill, MissingCenter
	}
	if !f.grid.Window(&s.five, bin, row, data, f.fill, RejectGaps) {
		return f.fill, GapInPrimaryWindow
	}
	f.grid.Window(&s.three, bin, row, data, f.fill, FillGaps)

	isFivePeak := IsWindowExtremum(&s.five)
	isThreePeak := IsWindowExtremum(&s.three)
	if isThreePeak && !isFivePeak {
		m, _ := Median(s.three.Values())
		return m, Substituted
	}
	return value, Unchanged
}

func (f *Filter) logRun(st Stats, spans int, elapsed time.Duration) {
	f.log.Debug("contextual median filter run",
		zap.Int("bins", st.Bins),
		zap.Int("spans", spans),
		zap.Int("substituted", st.Count(Substituted)),
		zap.Int("unchanged", st.Count(Unchanged)),
		zap.Int("insufficient_margin", st.Count(InsufficientMargin)),
		zap.Int("missing_center", st.Count(MissingCenter)),
		zap.Int("gap_in_primary_window", st.Count(GapInPrimaryWindow)),
		zap.Duration("elapsed", elapsed),
	)
}

// Stats summarises a filter run.
type Stats struct {
	Bins   int
	counts [numOutcomes]int

	// MeanShift and StdShift describe filtered-minus-original over the
	// substituted bins. They are NaN when too few bins were substituted.
	MeanShift float64
	StdShift  float64
}

// Count returns how many bins ended with outcome o.
func (s Stats) Count(o Outcome) int {
	if o >= numOutcomes {
		return 0
	}
	return s.counts[o]
}

// tally accumulates per-span results before they are merged into Stats.
type tally struct {
	counts [numOutcomes]int
	shifts []float64
}

func (t *tally) add(o Outcome, shift float64) {
	t.counts[o]++
	if o == Substituted {
		t.shifts = append(t.shifts, shift)
	}
}

func (t *tally) merge(o tally) {
	for i, c := range o.counts {
		t.counts[i] += c
	}
	t.shifts = append(t.shifts, o.shifts...)
}

func (t *tally) stats(bins int) Stats {
	st := Stats{Bins: bins, counts: t.counts, MeanShift: math.NaN(), StdShift: math.NaN()}
	switch {
	case len(t.shifts) > 1:
		st.MeanShift, st.StdShift = stat.MeanStdDev(t.shifts, nil)
	case len(t.shifts) == 1:
		st.MeanShift = t.shifts[0]
	}
	return st
}
