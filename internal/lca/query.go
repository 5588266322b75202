package lca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lcamail-engine/internal/metrics"
)

var ErrInvalidFilters = errors.New("invalid filters")

// Filters maps a column to its allowed values. A record matches when every
// constrained column holds one of its allowed values.
type Filters map[string][]string

type Page struct {
	Data         []Record `json:"data"`
	Count        int      `json:"count"`
	TotalRecords int      `json:"totalRecords"`
	TotalPages   int      `json:"totalPages"`
	CurrentPage  int      `json:"currentPage"`
	PageSize     int      `json:"pageSize"`
}

// ParseFilters decodes the JSON object sent in the filters query parameter.
// Values may be arrays or single scalars; numbers and booleans are compared
// by their text form.
func ParseFilters(raw string) (Filters, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilters, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidFilters)
	}

	out := Filters{}
	for col, v := range obj {
		switch vv := v.(type) {
		case nil:
			continue
		case []any:
			vals := make([]string, 0, len(vv))
			for _, x := range vv {
				s, ok := scalarString(x)
				if !ok {
					return nil, fmt.Errorf("%w: %s: values must be strings, numbers or booleans", ErrInvalidFilters, col)
				}
				vals = append(vals, s)
			}
			out[col] = vals
		default:
			s, ok := scalarString(vv)
			if !ok {
				return nil, fmt.Errorf("%w: %s: expected an array of values", ErrInvalidFilters, col)
			}
			out[col] = []string{s}
		}
	}
	return out, nil
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

type compiledFilter struct {
	col     string
	allowed map[string]struct{}
}

func (d *Dataset) compile(s *snapshot, filters Filters) []compiledFilter {
	var out []compiledFilter
	seen := map[string]int{}
	for col, vals := range filters {
		name := NormalizeColumn(col)
		if name == "" || !s.columns[name] || len(vals) == 0 {
			continue
		}
		// "employer_name" and "EMPLOYER_NAME" both given: union them
		if i, ok := seen[name]; ok {
			for _, v := range vals {
				out[i].allowed[v] = struct{}{}
			}
			continue
		}
		set := make(map[string]struct{}, len(vals))
		for _, v := range vals {
			set[v] = struct{}{}
		}
		seen[name] = len(out)
		out = append(out, compiledFilter{col: name, allowed: set})
	}
	return out
}

func matches(rec Record, fs []compiledFilter) bool {
	for _, f := range fs {
		if _, ok := f.allowed[rec[f.col]]; !ok {
			return false
		}
	}
	return true
}

// Query filters the cached records and returns one page of the matches.
// page < 1 is treated as 1; pageSize < 1 uses the default and is capped at
// the configured maximum. A page past the end is empty, not an error.
func (d *Dataset) Query(ctx context.Context, page, pageSize int, filters Filters) (*Page, error) {
	if err := d.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { metrics.RecordQuery(time.Since(start)) }()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = d.opts.DefaultPageSize
	}
	if pageSize > d.opts.MaxPageSize {
		pageSize = d.opts.MaxPageSize
	}

	s := d.current()
	fs := d.compile(s, filters)

	matched := s.records
	if len(fs) > 0 {
		matched = make([]Record, 0, len(s.records)/4)
		for _, rec := range s.records {
			if matches(rec, fs) {
				matched = append(matched, rec)
			}
		}
	}

	total := len(matched)
	out := &Page{
		Data:         []Record{},
		TotalRecords: total,
		TotalPages:   (total + pageSize - 1) / pageSize,
		CurrentPage:  page,
		PageSize:     pageSize,
	}

	if page <= out.TotalPages {
		lo := (page - 1) * pageSize
		hi := lo + pageSize
		if hi > total {
			hi = total
		}
		out.Data = matched[lo:hi:hi]
	}
	out.Count = len(out.Data)
	return out, nil
}

// FiltersKey renders filters in a stable form for logging.
func FiltersKey(f Filters) string {
	if len(f) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(f) // map keys come out sorted
	return string(b)
}
