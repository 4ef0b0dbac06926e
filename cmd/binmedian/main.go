// Command binmedian applies the contextual median filter to level-3 binned
// files and writes the filtered result.
//
// Usage:
//
//	binmedian [flags] <file.nc | URL>
//	binmedian [flags] -dir <directory>
//
// Examples:
//
//	binmedian A2020001.L3b_DAY_CHL.nc
//	binmedian https://example.org/data/A2020001.L3b_DAY_CHL.nc
//	binmedian -var chlor_a -format csv -latmin 25 -latmax 75 -lonmin -180 -lonmax -120 in.nc
//	binmedian -var chlor_a_sum -weights weights -log -vmax 40 -format csv in.nc
//	binmedian -dir input -format msgpack -json
//	binmedian -config job.yaml -dir input
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geal-ai/binmedian"
	"github.com/geal-ai/binmedian/internal/log"
)

// fileResult is one processed file's outcome.
type fileResult struct {
	In      string
	Out     string
	Stats   binmedian.Stats
	Rows    int // CSV rows, when writing CSV
	Elapsed time.Duration
	Err     error
}

// jsonResult is a single file in JSON output.
type jsonResult struct {
	Input     string         `json:"input"`
	Output    string         `json:"output,omitempty"`
	Bins      int            `json:"bins"`
	Outcomes  map[string]int `json:"outcomes,omitempty"`
	MeanShift *float64       `json:"mean_shift,omitempty"`
	StdShift  *float64       `json:"std_shift,omitempty"`
	ElapsedMs int64          `json:"elapsed_ms"`
	Error     string         `json:"error,omitempty"`
}

var outcomes = []binmedian.Outcome{
	binmedian.Unchanged,
	binmedian.Substituted,
	binmedian.InsufficientMargin,
	binmedian.MissingCenter,
	binmedian.GapInPrimaryWindow,
}

func main() {
	configPath := flag.String("config", "", "YAML job file; flags given explicitly override it")
	variable := flag.String("var", "chlor_a", "data variable to filter")
	weights := flag.String("weights", "", "weights variable; -var then holds weighted sums")
	logTransform := flag.Bool("log", false, "filter the natural logarithm of the data")
	valueMax := flag.Float64("vmax", math.Inf(1), "CSV output: drop values at or above this")
	format := flag.String("format", "nc", "output format: nc, msgpack or csv")
	outPath := flag.String("out", "", "output file (single-file mode; default under -outdir)")
	outDir := flag.String("outdir", "out", "output directory")
	dir := flag.String("dir", "", "filter every .nc file in this directory")
	workers := flag.Int("workers", 0, "goroutines per file (0 = number of CPUs)")
	parallel := flag.Int("parallel", 2, "files filtered concurrently in -dir mode")
	latMin := flag.Float64("latmin", -90, "CSV output: minimum latitude")
	latMax := flag.Float64("latmax", 90, "CSV output: maximum latitude")
	lonMin := flag.Float64("lonmin", -180, "CSV output: minimum longitude")
	lonMax := flag.Float64("lonmax", 180, "CSV output: maximum longitude")
	debug := flag.Bool("debug", false, "development logging at debug level")
	asJSON := flag.Bool("json", false, "print the run summary as JSON")
	flag.Usage = usage
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			fatalf("%v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "var":
			cfg.Variable = *variable
		case "weights":
			cfg.Weights = *weights
		case "log":
			cfg.LogTransform = *logTransform
		case "vmax":
			cfg.ValueMax = *valueMax
		case "format":
			cfg.Format = *format
		case "outdir":
			cfg.OutDir = *outDir
		case "workers":
			cfg.Workers = *workers
		case "parallel":
			cfg.ParallelFiles = *parallel
		case "latmin":
			cfg.Bounds.LatMin = *latMin
		case "latmax":
			cfg.Bounds.LatMax = *latMax
		case "lonmin":
			cfg.Bounds.LonMin = *lonMin
		case "lonmax":
			cfg.Bounds.LonMax = *lonMax
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := cfg.validate(); err != nil {
		fatalf("%v", err)
	}

	if err := log.Init(cfg.Debug); err != nil {
		fatalf("%v", err)
	}
	defer log.Sync()

	var inputs []string
	switch {
	case *dir != "":
		var err error
		inputs, err = listInputs(*dir)
		if err != nil {
			fatalf("%v", err)
		}
		if len(inputs) == 0 {
			fatalf("no .nc files in %s", *dir)
		}
	case flag.NArg() == 1:
		inputs = []string{flag.Arg(0)}
	default:
		fmt.Fprintln(os.Stderr, "error: an input file or -dir is required")
		usage()
		exit(2)
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		fatalf("creating %s: %v", cfg.OutDir, err)
	}

	ctx := context.Background()
	results := make([]fileResult, len(inputs))

	if *outPath != "" && len(inputs) > 1 {
		log.Warnw("-out ignored with several inputs", "out", *outPath, "inputs", len(inputs))
	}
	client := binmedian.NewClient()

	// Bounded fan-out over files; each file also fans out over rows.
	// Per-file failures are recorded in results, not returned.
	var g errgroup.Group
	g.SetLimit(cfg.ParallelFiles)
	for i, in := range inputs {
		i, in := i, in
		out := outputPath(cfg, in)
		if len(inputs) == 1 && *outPath != "" {
			out = *outPath
		}
		g.Go(func() error {
			results[i] = processFile(ctx, client, cfg, in, out)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Errorw("filtering failed", "input", r.In, "error", r.Err)
		}
	}

	if *asJSON {
		emitJSON(results)
	} else {
		printResults(results)
	}
	if failed > 0 {
		exit(1)
	}
}

// processFile reads, filters and writes one file.
func processFile(ctx context.Context, client *binmedian.Client, cfg Config, in, out string) (res fileResult) {
	res = fileResult{In: in, Out: out}
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	local, cleanup, err := localInput(ctx, client, in)
	if err != nil {
		res.Err = err
		return res
	}
	defer cleanup()

	field, err := readField(local, cfg)
	if err != nil {
		res.Err = err
		return res
	}
	if cfg.LogTransform {
		field = field.Log()
	}
	log.Debugw("loaded binned field", "input", in, "rows", field.Grid.Rows(), "bins", len(field.Bins))

	filtered, st, err := field.Filtered(ctx,
		binmedian.WithLogger(log.Logger()),
		binmedian.WithWorkers(cfg.Workers),
	)
	if err != nil {
		res.Err = err
		return res
	}
	res.Stats = st

	res.Rows, res.Err = writeField(out, cfg, filtered)
	if res.Err == nil {
		log.Infow("filtered", "input", in, "output", out,
			"bins", st.Bins, "substituted", st.Count(binmedian.Substituted))
	}
	return res
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// localInput returns a local path for in, downloading it to a temporary
// file first when it is a URL. cleanup removes any temporary file.
func localInput(ctx context.Context, client *binmedian.Client, in string) (p string, cleanup func(), err error) {
	if !isURL(in) {
		return in, func() {}, nil
	}
	tmp, err := os.CreateTemp("", "binmedian-*"+path.Ext(urlPath(in)))
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { os.Remove(tmp.Name()) }

	n, err := client.Download(ctx, in, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, err
	}
	log.Debugw("downloaded input", "url", in, "bytes", n, "path", tmp.Name())
	return tmp.Name(), cleanup, nil
}

// urlPath returns the path component of a URL, or s unchanged if it does
// not parse.
func urlPath(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	return u.Path
}

// readField loads a netCDF file, or a msgpack snapshot by extension.
func readField(path string, cfg Config) (*binmedian.BinnedField, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return binmedian.DecodeSnapshot(f)
	default:
		var opts []binmedian.ReadOption
		if cfg.Weights != "" {
			opts = append(opts, binmedian.WithWeights(cfg.Weights))
		}
		return binmedian.ReadNetCDF(f, cfg.Variable, opts...)
	}
}

// writeField writes field to path in the configured format.
// It returns the number of CSV rows written, or 0 for other formats.
func writeField(path string, cfg Config, field *binmedian.BinnedField) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch cfg.Format {
	case "csv":
		return binmedian.WriteCSV(f, field, cfg.bounds(), cfg.ValueMax)
	case "msgpack":
		return 0, binmedian.EncodeSnapshot(f, field)
	default:
		return 0, binmedian.WriteNetCDF(f, field, cfg.Variable)
	}
}

// listInputs returns the sorted .nc files directly inside dir.
func listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".nc") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// outputPath names the output for in under the configured directory.
func outputPath(cfg Config, in string) string {
	name := filepath.Base(in)
	if isURL(in) {
		name = path.Base(urlPath(in))
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(cfg.OutDir, base+"_cmf."+cfg.Format)
}

func emitJSON(results []fileResult) {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		j := jsonResult{Input: r.In, ElapsedMs: r.Elapsed.Milliseconds()}
		if r.Err != nil {
			j.Error = r.Err.Error()
			out[i] = j
			continue
		}
		j.Output = r.Out
		j.Bins = r.Stats.Bins
		j.Outcomes = make(map[string]int, len(outcomes))
		for _, o := range outcomes {
			j.Outcomes[o.String()] = r.Stats.Count(o)
		}
		if !math.IsNaN(r.Stats.MeanShift) {
			m := r.Stats.MeanShift
			j.MeanShift = &m
		}
		if !math.IsNaN(r.Stats.StdShift) {
			s := r.Stats.StdShift
			j.StdShift = &s
		}
		out[i] = j
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatalf("json encode: %v", err)
	}
}

func printResults(results []fileResult) {
	fmt.Printf("\n")
	for _, r := range results {
		fmt.Printf("  Input    : %s\n", r.In)
		if r.Err != nil {
			fmt.Printf("  Error    : %v\n\n", r.Err)
			continue
		}
		fmt.Printf("  Output   : %s\n", r.Out)
		fmt.Printf("  Bins     : %d  (%s)\n", r.Stats.Bins, r.Elapsed.Round(time.Millisecond))
		for _, o := range outcomes {
			fmt.Printf("    %-22s %d\n", o.String(), r.Stats.Count(o))
		}
		if !math.IsNaN(r.Stats.MeanShift) {
			fmt.Printf("  Shift    : mean %.4g  std %.4g\n", r.Stats.MeanShift, r.Stats.StdShift)
		}
		if r.Rows > 0 {
			fmt.Printf("  CSV rows : %d\n", r.Rows)
		}
		fmt.Printf("\n")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `binmedian: contextual median filter for level-3 binned files

Usage:
  binmedian [flags] <file.nc | URL>
  binmedian [flags] -dir <directory>

Flags:`)
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Examples:
  binmedian A2020001.L3b_DAY_CHL.nc
  binmedian -format csv -latmin 25 -latmax 75 -lonmin -180 -lonmax -120 in.nc
  binmedian -var chlor_a_sum -weights weights -log -vmax 40 -format csv in.nc
  binmedian -dir input -format msgpack -json
  binmedian -config job.yaml -dir input`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	exit(1)
}

// Replaced in tests.
var (
	syncLog = log.Sync
	osExit  = os.Exit
)

// exit flushes the log and terminates. os.Exit skips deferred calls.
func exit(code int) {
	syncLog()
	osExit(code)
}
