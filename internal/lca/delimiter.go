package lca

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
)

const sniffRows = 25

var bom = []byte{0xEF, 0xBB, 0xBF}

type delimScore struct {
	wide       bool // header splits into more than one column
	consistent int  // rows whose width equals the header's
	width      int
}

func (a delimScore) better(b delimScore) bool {
	if a.wide != b.wide {
		return a.wide
	}
	if a.consistent != b.consistent {
		return a.consistent > b.consistent
	}
	return a.width > b.width
}

// sniffDelimiter picks the candidate that splits the sample's header into the
// most columns while keeping the following rows the same width. Ties go to the
// earlier candidate. The sample is cut at its last newline so a partially
// read row does not count against a candidate.
func sniffDelimiter(sample []byte, candidates []rune) rune {
	if len(candidates) == 0 {
		return ','
	}
	sample = bytes.TrimPrefix(sample, bom)
	if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i+1]
	}

	best := candidates[0]
	var bestScore delimScore
	for i, c := range candidates {
		s := scoreDelimiter(sample, c)
		if i == 0 || s.better(bestScore) {
			best, bestScore = c, s
		}
	}
	return best
}

func scoreDelimiter(sample []byte, c rune) delimScore {
	r := csv.NewReader(bytes.NewReader(sample))
	r.Comma = c
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var s delimScore
	header, err := r.Read()
	if err != nil {
		return s
	}
	s.width = len(header)
	s.wide = s.width > 1
	for n := 0; n < sniffRows; n++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		if len(rec) == s.width {
			s.consistent++
		}
	}
	return s
}
