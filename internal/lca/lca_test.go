package lca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
)

const sampleCSV = `case_number, Case_Status ,EMPLOYER_NAME,JOB_TITLE,EMPLOYER_STATE,EMPLOYER_POSTAL_CODE,WAGE_RATE_OF_PAY_FROM,EMPLOYER_POC_EMAIL,EXTRA_NOTES
I-200-1,Certified,Acme Corp,Software Engineer,CA,02139,120000,hr@acme.com,foo
I-200-2,Certified,Beta LLC,Data Scientist,NY,10001,135000.5,jobs@beta.io,bar
I-200-3,Denied,Acme Corp,Data Scientist,CA,94105,99000,hr@acme.com,
I-200-4,Withdrawn,Gamma Inc,Software Engineer,TX,73301,110000,,baz
I-200-5,Certified,Gamma Inc,Software Engineer,CA,90001,105000,people@gamma.com,
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func newTestDataset(t *testing.T, content string, mut func(*Options)) *Dataset {
	t.Helper()
	opts := Options{Paths: []string{writeFile(t, "lca.csv", content)}, EssentialOnly: true}
	if mut != nil {
		mut(&opts)
	}
	return NewDataset(opts, zaptest.NewLogger(t))
}

func caseNumbers(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.CaseNumber())
	}
	return out
}

func TestEnsureLoaded_NormalizesHeadersAndProjects(t *testing.T) {
	ds := newTestDataset(t, sampleCSV, nil)
	if err := ds.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}

	st := ds.Stats()
	if !st.Loaded || st.Records != 5 {
		t.Fatalf("stats = %+v, want 5 loaded records", st)
	}
	if !ds.HasColumn("case_status") {
		t.Error("CASE_STATUS should be present after header normalization")
	}
	if ds.HasColumn("EXTRA_NOTES") {
		t.Error("EXTRA_NOTES should be projected away when essential-only")
	}

	rec := ds.current().records[0]
	if rec.CaseStatus() != "Certified" || rec.EmployerName() != "Acme Corp" {
		t.Errorf("unexpected first record: %v", rec)
	}
	if _, ok := ds.current().records[3][ColEmployerEmail]; ok {
		t.Error("empty cells should not be stored")
	}
}

func TestEnsureLoaded_FullPassthrough(t *testing.T) {
	ds := newTestDataset(t, sampleCSV, func(o *Options) { o.EssentialOnly = false })
	if err := ds.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded: %v", err)
	}
	if !ds.HasColumn("extra_notes") {
		t.Error("EXTRA_NOTES should be kept without projection")
	}
}

func TestEnsureLoaded_ConcurrentCallersShareOneParse(t *testing.T) {
	ds := newTestDataset(t, sampleCSV, nil)

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ds.EnsureLoaded(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("EnsureLoaded: %v", err)
		}
	}
	if got := ds.Loads(); got != 1 {
		t.Fatalf("Loads() = %d, want 1", got)
	}

	// sequential load of the same file yields identical content
	seq := NewDataset(ds.opts, zaptest.NewLogger(t))
	if err := seq.EnsureLoaded(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := seq.EnsureLoaded(context.Background()); err != nil {
		t.Fatal(err)
	}
	if seq.Loads() != 1 {
		t.Errorf("second sequential call reparsed: Loads() = %d", seq.Loads())
	}
	if diff := cmp.Diff(seq.current().records, ds.current().records); diff != "" {
		t.Errorf("concurrent vs sequential records differ (-seq +concurrent):\n%s", diff)
	}
}

func TestEnsureLoaded_MissingFile(t *testing.T) {
	ds := NewDataset(Options{Paths: []string{filepath.Join(t.TempDir(), "nope.csv")}}, zaptest.NewLogger(t))
	err := ds.EnsureLoaded(context.Background())
	if !errors.Is(err, ErrDataFileNotFound) {
		t.Fatalf("err = %v, want ErrDataFileNotFound", err)
	}
	if ds.Loaded() {
		t.Error("failed load must not populate the cache")
	}

	// failure is not cached: once the file appears the next call loads it
	if err := os.WriteFile(ds.opts.Paths[0], []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ds.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if ds.Loads() != 2 {
		t.Errorf("Loads() = %d, want 2", ds.Loads())
	}
}

func TestEnsureLoaded_FirstExistingPathWins(t *testing.T) {
	subset := writeFile(t, "subset.csv", "CASE_NUMBER,EMPLOYER_NAME\nX-1,Only Co\n")
	ds := NewDataset(Options{Paths: []string{filepath.Join(t.TempDir(), "full.csv"), subset}}, nil)
	if err := ds.EnsureLoaded(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ds.Stats().Path != subset || ds.Stats().Records != 1 {
		t.Errorf("stats = %+v", ds.Stats())
	}
}

func TestEnsureLoaded_EmptyFileIsParseError(t *testing.T) {
	ds := newTestDataset(t, "", nil)
	if err := ds.EnsureLoaded(context.Background()); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
}

func TestEnsureLoaded_ToleratesRaggedRowsAndBOM(t *testing.T) {
	content := "\xEF\xBB\xBFCASE_NUMBER;EMPLOYER_NAME;JOB_TITLE\nA-1;Acme;Dev\nA-2;Beta\n\nA-3;Gamma;Ops;extra\n"
	ds := newTestDataset(t, content, nil)
	if err := ds.EnsureLoaded(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, want := caseNumbers(ds.current().records), []string{"A-1", "A-2", "A-3"}; !cmp.Equal(got, want) {
		t.Errorf("case numbers = %v, want %v", got, want)
	}
	if ds.Stats().Delimiter != ";" {
		t.Errorf("delimiter = %q, want ;", ds.Stats().Delimiter)
	}
}

func TestSniffDelimiter(t *testing.T) {
	cands := []rune{',', '\t', '|', ';'}
	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"comma", "A,B,C\n1,2,3\n", ','},
		{"tab", "A\tB\tC\n1\t2\t3\n", '\t'},
		{"pipe with commas in values", "NAME|CITY\nAcme, Inc|Austin\nBeta, LLC|Dallas\n", '|'},
		{"semicolon", "A;B\n1;2\n", ';'},
		{"single column falls back to first", "NAME\nAcme\n", ','},
		{"partial last row ignored", "A\tB\n1\t2\n3\t", '\t'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffDelimiter([]byte(tt.sample), cands); got != tt.want {
				t.Errorf("sniffDelimiter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordMarshalJSON_CoercesOnlyCanonicalNumbers(t *testing.T) {
	rec := Record{
		"A": "120000",
		"B": "135000.5",
		"C": "02139",
		"D": "1e5",
		"E": "1.50",
		"F": "Acme",
		"G": "-7",
	}
	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"A":120000,"B":135000.5,"C":"02139","D":"1e5","E":"1.50","F":"Acme","G":-7}`
	if string(b) != want {
		t.Errorf("json = %s\nwant   %s", b, want)
	}
}

func TestQuery_FilterSemantics(t *testing.T) {
	ds := newTestDataset(t, sampleCSV, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"no filters", nil, []string{"I-200-1", "I-200-2", "I-200-3", "I-200-4", "I-200-5"}},
		{"or within column", Filters{"CASE_STATUS": {"Denied", "Withdrawn"}}, []string{"I-200-3", "I-200-4"}},
		{
			"and across columns",
			Filters{"CASE_STATUS": {"Certified"}, "EMPLOYER_STATE": {"CA"}},
			[]string{"I-200-1", "I-200-5"},
		},
		{
			// I-200-3 matches state but not status: excluded
			"some but not all columns",
			Filters{"CASE_STATUS": {"Certified"}, "EMPLOYER_NAME": {"Acme Corp"}},
			[]string{"I-200-1"},
		},
		{"matches none", Filters{"EMPLOYER_NAME": {"Nobody"}}, []string{}},
		{"unknown column ignored", Filters{"NOT_A_COLUMN": {"x"}, "EMPLOYER_STATE": {"NY"}}, []string{"I-200-2"}},
		{"empty value list ignored", Filters{"CASE_STATUS": {}}, []string{"I-200-1", "I-200-2", "I-200-3", "I-200-4", "I-200-5"}},
		{"column names normalized", Filters{" employer_state ": {"TX"}}, []string{"I-200-4"}},
		{"numeric values compared as text", Filters{"EMPLOYER_POSTAL_CODE": {"02139"}}, []string{"I-200-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ds.Query(ctx, 1, 100, tt.filters)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, caseNumbers(p.Data)); diff != "" {
				t.Errorf("matches (-want +got):\n%s", diff)
			}
			if p.TotalRecords != len(tt.want) {
				t.Errorf("TotalRecords = %d, want %d", p.TotalRecords, len(tt.want))
			}
		})
	}
}

func TestQuery_PaginationCoversEveryMatchOnce(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("CASE_NUMBER,CASE_STATUS\n")
	for i := 0; i < 237; i++ {
		status := "Certified"
		if i%3 == 0 {
			status = "Denied"
		}
		fmt.Fprintf(&sb, "C-%03d,%s\n", i, status)
	}
	ds := newTestDataset(t, sb.String(), nil)
	ctx := context.Background()

	for _, filters := range []Filters{nil, {"CASE_STATUS": {"Denied"}}} {
		for _, size := range []int{1, 7, 50, 100} {
			first, err := ds.Query(ctx, 1, size, filters)
			if err != nil {
				t.Fatal(err)
			}
			wantPages := (first.TotalRecords + size - 1) / size
			if first.TotalPages != wantPages {
				t.Fatalf("size %d: TotalPages = %d, want %d", size, first.TotalPages, wantPages)
			}
			seen := map[string]bool{}
			sum := 0
			for page := 1; page <= first.TotalPages; page++ {
				p, err := ds.Query(ctx, page, size, filters)
				if err != nil {
					t.Fatal(err)
				}
				if p.Count != len(p.Data) {
					t.Fatalf("Count = %d, len(Data) = %d", p.Count, len(p.Data))
				}
				sum += p.Count
				for _, cn := range caseNumbers(p.Data) {
					if seen[cn] {
						t.Fatalf("size %d: %s returned twice", size, cn)
					}
					seen[cn] = true
				}
			}
			if sum != first.TotalRecords {
				t.Errorf("size %d filters %v: sum of counts = %d, TotalRecords = %d", size, filters, sum, first.TotalRecords)
			}
		}
	}
}

func TestQuery_Clamping(t *testing.T) {
	ds := newTestDataset(t, sampleCSV, func(o *Options) {
		o.DefaultPageSize = 2
		o.MaxPageSize = 3
	})
	ctx := context.Background()

	p, err := ds.Query(ctx, 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentPage != 1 || p.PageSize != 2 || p.Count != 2 || p.TotalPages != 3 {
		t.Errorf("defaults: %+v", p)
	}

	p, err = ds.Query(ctx, 1, 1000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.PageSize != 3 || p.Count != 3 {
		t.Errorf("clamp: pageSize=%d count=%d", p.PageSize, p.Count)
	}
}

func TestQuery_PageOutOfRangeIsEmpty(t *testing.T) {
	ds := newTestDataset(t, sampleCSV, nil)
	p, err := ds.Query(context.Background(), 99, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Count != 0 || p.TotalRecords != 5 || p.TotalPages != 3 {
		t.Errorf("page = %+v", p)
	}
	b, _ := json.Marshal(p)
	if !strings.Contains(string(b), `"data":[]`) {
		t.Errorf("empty page should encode data as []: %s", b)
	}
}

func TestQuery_MissingFile(t *testing.T) {
	ds := NewDataset(Options{Paths: []string{filepath.Join(t.TempDir(), "x.csv")}}, nil)
	if _, err := ds.Query(context.Background(), 1, 10, nil); !errors.Is(err, ErrDataFileNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseFilters(t *testing.T) {
	got, err := ParseFilters(`{"CASE_STATUS":["Certified","Denied"],"NAICS_CODE":[541511],"FULL_TIME_POSITION":true,"X":null}`)
	if err != nil {
		t.Fatal(err)
	}
	want := Filters{
		"CASE_STATUS":        {"Certified", "Denied"},
		"NAICS_CODE":         {"541511"},
		"FULL_TIME_POSITION": {"true"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseFilters (-want +got):\n%s", diff)
	}

	for _, bad := range []string{`[1,2]`, `{"A":[{"x":1}]}`, `{"A":`} {
		if _, err := ParseFilters(bad); !errors.Is(err, ErrInvalidFilters) {
			t.Errorf("ParseFilters(%q) err = %v, want ErrInvalidFilters", bad, err)
		}
	}

	if f, err := ParseFilters(""); err != nil || f != nil {
		t.Errorf("empty input: %v %v", f, err)
	}
}

func TestFilterIndex_SortedDistinctCapped(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("CASE_NUMBER,EMPLOYER_NAME,CASE_STATUS\n")
	for i := 9; i >= 0; i-- {
		// each employer twice, reverse order
		fmt.Fprintf(&sb, "A-%d,Emp %d,Certified\n", i, i)
		fmt.Fprintf(&sb, "B-%d,Emp %d,\n", i, i)
	}
	ds := newTestDataset(t, sb.String(), func(o *Options) { o.FilterMaxValues = 4 })
	idx := NewFilterIndex(ds, zaptest.NewLogger(t))

	vals, err := idx.Values(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Emp 0", "Emp 1", "Emp 2", "Emp 3"}, vals[ColEmployerName]); diff != "" {
		t.Errorf("EMPLOYER_NAME (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Certified"}, vals[ColCaseStatus]); diff != "" {
		t.Errorf("CASE_STATUS (-want +got):\n%s", diff)
	}
	for _, col := range FilterColumns {
		v, ok := vals[col]
		if !ok || v == nil {
			t.Errorf("column %s missing from index", col)
		}
		for i := 1; i < len(v); i++ {
			if v[i-1] >= v[i] {
				t.Errorf("%s not strictly ascending at %d: %q >= %q", col, i, v[i-1], v[i])
			}
		}
	}

	if _, err := idx.Values(context.Background()); err != nil {
		t.Fatal(err)
	}
	if idx.Builds() != 1 {
		t.Errorf("Builds() = %d, want 1", idx.Builds())
	}
}

func TestFilterIndex_SamplesLargeFiles(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("CASE_NUMBER,EMPLOYER_NAME\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "A-%02d,Emp %02d\n", i, i)
	}
	ds := newTestDataset(t, sb.String(), func(o *Options) {
		o.SampleThreshold = 10 // bytes; any file is "large"
		o.SampleEvery = 5
	})
	vals, err := NewFilterIndex(ds, nil).Values(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Emp 00", "Emp 05", "Emp 10", "Emp 15"}
	if diff := cmp.Diff(want, vals[ColEmployerName]); diff != "" {
		t.Errorf("sampled values (-want +got):\n%s", diff)
	}
}

func TestFilterIndex_ErrorNotCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lca.csv")
	ds := NewDataset(Options{Paths: []string{path}}, nil)
	idx := NewFilterIndex(ds, nil)
	if _, err := idx.Values(context.Background()); !errors.Is(err, ErrDataFileNotFound) {
		t.Fatalf("err = %v", err)
	}
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	vals, err := idx.Values(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vals[ColEmployerState]) != 3 {
		t.Errorf("EMPLOYER_STATE = %v", vals[ColEmployerState])
	}
}
