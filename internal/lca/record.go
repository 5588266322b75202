package lca

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Column names as they appear (after normalization) in DOL disclosure files.
const (
	ColCaseNumber         = "CASE_NUMBER"
	ColCaseStatus         = "CASE_STATUS"
	ColVisaClass          = "VISA_CLASS"
	ColEmployerName       = "EMPLOYER_NAME"
	ColJobTitle           = "JOB_TITLE"
	ColSOCTitle           = "SOC_TITLE"
	ColEmployerCity       = "EMPLOYER_CITY"
	ColEmployerState      = "EMPLOYER_STATE"
	ColEmployerPostalCode = "EMPLOYER_POSTAL_CODE"
	ColEmployerAddress    = "EMPLOYER_ADDRESS1"
	ColEmployerPhone      = "EMPLOYER_PHONE"
	ColEmployerEmail      = "EMPLOYER_POC_EMAIL"
	ColWageFrom           = "WAGE_RATE_OF_PAY_FROM"
	ColWageUnit           = "WAGE_UNIT_OF_PAY"
	ColWageLevel          = "PW_WAGE_LEVEL"
	ColFullTime           = "FULL_TIME_POSITION"
	ColH1BDependent       = "H_1B_DEPENDENT"
	ColWillfulViolator    = "WILLFUL_VIOLATOR"
	ColNAICSCode          = "NAICS_CODE"
	ColNewEmployment      = "NEW_EMPLOYMENT"
	ColContinued          = "CONTINUED_EMPLOYMENT"
	ColChangePrevious     = "CHANGE_PREVIOUS_EMPLOYMENT"
	ColBeginDate          = "BEGIN_DATE"
	ColEndDate            = "END_DATE"
)

// FilterColumns are the columns offered as filters, in display order.
var FilterColumns = []string{
	ColCaseStatus,
	ColVisaClass,
	ColEmployerName,
	ColJobTitle,
	ColSOCTitle,
	ColEmployerState,
	ColEmployerCity,
	ColWageUnit,
	ColWageLevel,
	ColFullTime,
	ColH1BDependent,
	ColWillfulViolator,
	ColNAICSCode,
	ColNewEmployment,
	ColContinued,
	ColChangePrevious,
}

// EssentialColumns is the projection kept when essential-only loading is on.
// Every filter column is included so filtering never sees a projected-away
// value.
var EssentialColumns = func() map[string]bool {
	m := map[string]bool{}
	for _, c := range []string{
		ColCaseNumber, ColCaseStatus, ColEmployerName, ColJobTitle, ColSOCTitle,
		ColEmployerCity, ColEmployerState, ColEmployerPostalCode, ColWageFrom,
		ColWageUnit, ColFullTime, ColH1BDependent, ColWageLevel, ColVisaClass,
		ColEmployerEmail, ColEmployerPhone, ColEmployerAddress,
		ColBeginDate, ColEndDate,
	} {
		m[c] = true
	}
	for _, c := range FilterColumns {
		m[c] = true
	}
	return m
}()

// NormalizeColumn maps a header or filter key onto the canonical column name.
func NormalizeColumn(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Record is one LCA row keyed by normalized column name. Empty cells are not
// stored. Records are shared between queries and must not be mutated.
type Record map[string]string

func (r Record) Get(col string) string  { return r[NormalizeColumn(col)] }
func (r Record) CaseNumber() string     { return r[ColCaseNumber] }
func (r Record) CaseStatus() string     { return r[ColCaseStatus] }
func (r Record) EmployerName() string   { return r[ColEmployerName] }
func (r Record) EmployerEmail() string  { return r[ColEmployerEmail] }
func (r Record) EmployerCity() string   { return r[ColEmployerCity] }
func (r Record) EmployerState() string  { return r[ColEmployerState] }
func (r Record) JobTitle() string       { return r[ColJobTitle] }
func (r Record) SOCTitle() string       { return r[ColSOCTitle] }
func (r Record) VisaClass() string      { return r[ColVisaClass] }
func (r Record) WageFrom() string       { return r[ColWageFrom] }
func (r Record) WageUnit() string       { return r[ColWageUnit] }

// MarshalJSON emits numeric-looking cells as JSON numbers when they
// round-trip exactly; everything else stays a string ("02139", "1e5").
func (r Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := r[k]
		if num, ok := canonicalNumber(v); ok {
			buf.WriteString(num)
			continue
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalNumber reports whether s is exactly how Go would print the number
// it denotes.
func canonicalNumber(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if strconv.FormatInt(i, 10) == s {
			return s, true
		}
		return "", false
	}
	if !strings.Contains(s, ".") {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if strconv.FormatFloat(f, 'f', -1, 64) == s {
		return s, true
	}
	return "", false
}
