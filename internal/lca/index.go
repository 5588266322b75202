package lca

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FilterValues maps each filter column to its sorted distinct values.
type FilterValues map[string][]string

// FilterIndex computes the distinct values of FilterColumns once and serves
// the same result afterwards.
type FilterIndex struct {
	ds  *Dataset
	log *zap.Logger

	mu     sync.RWMutex
	values FilterValues

	sf     singleflight.Group
	builds atomic.Int64
}

func NewFilterIndex(ds *Dataset, log *zap.Logger) *FilterIndex {
	if log == nil {
		log = zap.NewNop()
	}
	return &FilterIndex{ds: ds, log: log}
}

// Builds reports how many times the index has been computed.
func (x *FilterIndex) Builds() int64 { return x.builds.Load() }

func (x *FilterIndex) cached() FilterValues {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.values
}

// Values returns the index, loading the dataset first if needed. Errors are
// not cached. The returned map is shared and must not be modified.
func (x *FilterIndex) Values(ctx context.Context) (FilterValues, error) {
	if v := x.cached(); v != nil {
		return v, nil
	}
	if err := x.ds.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	ch := x.sf.DoChan("index", func() (any, error) {
		if v := x.cached(); v != nil {
			return v, nil
		}
		v := x.build()
		x.mu.Lock()
		x.values = v
		x.mu.Unlock()
		return v, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(FilterValues), nil
	}
}

func (x *FilterIndex) build() FilterValues {
	start := time.Now()
	x.builds.Add(1)

	s := x.ds.current()
	opts := x.ds.opts

	step := 1
	if opts.SampleThreshold > 0 && s.size > opts.SampleThreshold {
		step = opts.SampleEvery
	}

	sets := make(map[string]map[string]struct{}, len(FilterColumns))
	for _, col := range FilterColumns {
		sets[col] = map[string]struct{}{}
	}
	for i := 0; i < len(s.records); i += step {
		rec := s.records[i]
		for _, col := range FilterColumns {
			if v := rec[col]; v != "" {
				sets[col][v] = struct{}{}
			}
		}
	}

	out := make(FilterValues, len(FilterColumns))
	for _, col := range FilterColumns {
		vals := make([]string, 0, len(sets[col]))
		for v := range sets[col] {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		if len(vals) > opts.FilterMaxValues {
			vals = vals[:opts.FilterMaxValues:opts.FilterMaxValues]
		}
		out[col] = vals
	}

	x.log.Info("filter index built",
		zap.Int("records", len(s.records)),
		zap.Int("step", step),
		zap.Duration("took", time.Since(start)),
	)
	return out
}
