package lca

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"lcamail-engine/internal/config"
	"lcamail-engine/internal/metrics"
)

var (
	ErrDataFileNotFound = errors.New("lca data file not found")
	ErrParse            = errors.New("lca data file could not be parsed")
)

const sniffBytes = 64 << 10

type Options struct {
	Paths           []string // first existing path wins
	Delimiters      []rune
	EssentialOnly   bool
	FilterMaxValues int
	SampleThreshold int64 // bytes; above this the filter index samples
	SampleEvery     int
	DefaultPageSize int
	MaxPageSize     int
}

func OptionsFromConfig(cfg config.Config) Options {
	o := Options{
		EssentialOnly:   cfg.Data.EssentialOnly,
		FilterMaxValues: cfg.Data.FilterMaxValues,
		SampleThreshold: int64(cfg.Data.SampleThresholdMB) << 20,
		SampleEvery:     cfg.Data.SampleEvery,
		DefaultPageSize: cfg.Query.DefaultPageSize,
		MaxPageSize:     cfg.Query.MaxPageSize,
	}
	for _, p := range cfg.Data.CSVPaths {
		o.Paths = append(o.Paths, cfg.ResolvePath(p))
	}
	for _, d := range cfg.Data.Delimiters {
		r, size := utf8.DecodeRuneInString(d)
		if r != utf8.RuneError && size == len(d) {
			o.Delimiters = append(o.Delimiters, r)
		}
	}
	return o
}

func (o Options) withDefaults() Options {
	if len(o.Delimiters) == 0 {
		o.Delimiters = []rune{',', '\t', '|', ';'}
	}
	if o.FilterMaxValues <= 0 {
		o.FilterMaxValues = 500
	}
	if o.SampleEvery < 1 {
		o.SampleEvery = 1
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 50
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 100
	}
	return o
}

type snapshot struct {
	records   []Record
	columns   map[string]bool
	path      string
	size      int64
	delimiter rune
	loadedAt  time.Time
}

// Dataset owns the parsed LCA file. The file is read at most once per
// Dataset; concurrent cold callers share a single parse.
type Dataset struct {
	opts Options
	log  *zap.Logger

	mu   sync.RWMutex
	snap *snapshot

	sf    singleflight.Group
	loads atomic.Int64
}

func NewDataset(opts Options, log *zap.Logger) *Dataset {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dataset{opts: opts.withDefaults(), log: log}
}

func (d *Dataset) current() *snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Loads reports how many parse passes have run.
func (d *Dataset) Loads() int64 { return d.loads.Load() }

// Loaded reports whether the cache is populated.
func (d *Dataset) Loaded() bool { return d.current() != nil }

// EnsureLoaded populates the cache if needed. A failed load leaves the
// cache as it was and is retried by the next caller. ctx only bounds how
// long this caller waits; an in-flight parse keeps running for the others.
func (d *Dataset) EnsureLoaded(ctx context.Context) error {
	if d.current() != nil {
		return nil
	}
	ch := d.sf.DoChan("load", func() (any, error) {
		// a caller that queued behind a finished load must not parse again
		if s := d.current(); s != nil {
			return s, nil
		}
		s, err := d.load()
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.snap = s
		d.mu.Unlock()
		return s, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (d *Dataset) resolvePath() (string, error) {
	for _, p := range d.opts.Paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrDataFileNotFound, strings.Join(d.opts.Paths, ", "))
}

func (d *Dataset) load() (*snapshot, error) {
	start := time.Now()
	d.loads.Add(1)

	path, err := d.resolvePath()
	if err != nil {
		metrics.RecordDatasetLoad("not_found", time.Since(start))
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		metrics.RecordDatasetLoad("error", time.Since(start))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDataFileNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	d.log.Info("loading lca data", zap.String("path", path), zap.Int64("bytes", st.Size()))

	snap, err := d.parse(f, path)
	if err != nil {
		metrics.RecordDatasetLoad("parse_error", time.Since(start))
		d.log.Error("lca data parse failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	snap.size = st.Size()
	snap.loadedAt = time.Now()

	metrics.RecordDatasetLoad("ok", time.Since(start))
	metrics.DatasetRecords.Set(float64(len(snap.records)))
	d.log.Info("lca data cached",
		zap.Int("records", len(snap.records)),
		zap.Int("columns", len(snap.columns)),
		zap.String("delimiter", string(snap.delimiter)),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

func (d *Dataset) parse(src io.Reader, path string) (*snapshot, error) {
	br := bufio.NewReaderSize(src, sniffBytes)
	peek, err := br.Peek(sniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}
	delim := sniffDelimiter(peek, d.opts.Delimiters)
	if len(peek) >= len(bom) && string(peek[:len(bom)]) == string(bom) {
		_, _ = br.Discard(len(bom))
	}

	r := csv.NewReader(br)
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: missing header row", ErrParse, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	// index -> column; "" means the column is not kept
	names := make([]string, len(header))
	columns := map[string]bool{}
	for i, h := range header {
		name := NormalizeColumn(h)
		if name == "" || columns[name] {
			continue
		}
		if d.opts.EssentialOnly && !EssentialColumns[name] {
			continue
		}
		names[i] = name
		columns[name] = true
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s: header has no usable columns", ErrParse, path)
	}

	var records []Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
		}
		var rec Record
		for i, v := range row {
			if i >= len(names) || names[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if rec == nil {
				rec = make(Record, len(columns))
			}
			rec[names[i]] = v
		}
		if rec == nil {
			continue // blank line or nothing kept
		}
		records = append(records, rec)
	}

	return &snapshot{records: records, columns: columns, path: path, delimiter: delim}, nil
}

type Stats struct {
	Loaded    bool      `json:"loaded"`
	Records   int       `json:"records"`
	Columns   int       `json:"columns"`
	Path      string    `json:"path,omitempty"`
	Delimiter string    `json:"delimiter,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	LoadedAt  time.Time `json:"loadedAt,omitempty"`
	Loads     int64     `json:"loads"`
}

func (d *Dataset) Stats() Stats {
	s := d.current()
	st := Stats{Loads: d.Loads()}
	if s == nil {
		return st
	}
	st.Loaded = true
	st.Records = len(s.records)
	st.Columns = len(s.columns)
	st.Path = s.path
	st.Delimiter = string(s.delimiter)
	st.Bytes = s.size
	st.LoadedAt = s.loadedAt
	return st
}

// HasColumn reports whether the loaded file has col. False before load.
func (d *Dataset) HasColumn(col string) bool {
	s := d.current()
	return s != nil && s.columns[NormalizeColumn(col)]
}

// Lookup finds the first record with the given case number.
func (d *Dataset) Lookup(ctx context.Context, caseNumber string) (Record, bool, error) {
	if err := d.EnsureLoaded(ctx); err != nil {
		return nil, false, err
	}
	caseNumber = strings.TrimSpace(caseNumber)
	if caseNumber == "" {
		return nil, false, nil
	}
	for _, rec := range d.current().records {
		if rec.CaseNumber() == caseNumber {
			return rec, true, nil
		}
	}
	return nil, false, nil
}
