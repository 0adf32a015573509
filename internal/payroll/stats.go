// Package payroll computes salary analytics over historical public payroll
// records: per-title distributions, experience buckets, side-by-side
// comparisons, career transitions and a title-level rollup.
package payroll

import (
	"context"
	"sort"

	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/validate"
)

// Stats describes a salary distribution. Every numeric field is nil when
// Count is zero.
type Stats struct {
	Title  string   `json:"title"`
	Count  int      `json:"count"`
	Avg    *float64 `json:"avg"`
	Median *float64 `json:"median"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
}

// Describe computes count, mean, median, min and max of salaries. The input
// is not modified.
func Describe(title string, salaries []float64) Stats {
	st := Stats{Title: title, Count: len(salaries)}
	if len(salaries) == 0 {
		return st
	}
	sorted := make([]float64, len(salaries))
	copy(sorted, salaries)
	sort.Float64s(sorted)

	n := len(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	avg := sum / float64(n)
	mid := n / 2
	median := sorted[mid]
	if n%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	lo, hi := sorted[0], sorted[n-1]

	st.Avg, st.Median, st.Min, st.Max = &avg, &median, &lo, &hi
	return st
}

// Filters narrows payroll records for stats.
type Filters struct {
	Agency  string
	Borough string
	// MinSalary keeps a record when its start or its end salary reaches the bound.
	MinSalary *float64
}

// FilterOptions is the raw form of Filters.
type FilterOptions struct {
	Agency    string `json:"agency"`
	Borough   string `json:"borough"`
	MinSalary any    `json:"minSalary"`
}

// Parse validates o.
func (o FilterOptions) Parse() (Filters, error) {
	borough, err := validate.Borough("borough", o.Borough)
	if err != nil {
		return Filters{}, err
	}
	minSalary, err := validate.OptionalNumber("minSalary", o.MinSalary)
	if err != nil {
		return Filters{}, err
	}
	return Filters{
		Agency:    validate.String(o.Agency, ""),
		Borough:   borough,
		MinSalary: minSalary,
	}, nil
}

func (f Filters) query(title string) storage.PayrollQuery {
	return storage.PayrollQuery{
		Title:     title,
		Agency:    f.Agency,
		Borough:   f.Borough,
		MinSalary: f.MinSalary,
	}
}

// salaries returns the finite representative salaries of recs in input order.
func salaries(recs []storage.PayrollRecord) []float64 {
	out := make([]float64, 0, len(recs))
	for _, r := range recs {
		if v, ok := r.RepresentativeSalary(); ok {
			out = append(out, v)
		}
	}
	return out
}

// AllSalariesForJob returns the representative salary of every matching
// record of title that has one.
func (a *Analyzer) AllSalariesForJob(ctx context.Context, title string, f Filters) ([]float64, error) {
	title, err := validate.RequiredString("title", title)
	if err != nil {
		return nil, err
	}
	recs, err := a.store.PayrollRecords(ctx, f.query(title))
	if err != nil {
		return nil, err
	}
	return salaries(recs), nil
}

// JobStats describes the salaries of title under f. A title with no
// salaries yields Count 0 rather than an error.
func (a *Analyzer) JobStats(ctx context.Context, title string, f Filters) (Stats, error) {
	sals, err := a.AllSalariesForJob(ctx, title, f)
	if err != nil {
		return Stats{}, err
	}
	return Describe(title, sals), nil
}

// ExperienceResult is Stats for an experience bucket.
type ExperienceResult struct {
	Stats
	MinYears *float64 `json:"minYears"`
	MaxYears *float64 `json:"maxYears"`
	// Excluded counts records dropped for missing or out-of-range years.
	Excluded int `json:"excluded"`
}

// ExperienceStats describes the salaries of title for records whose span
// (end year minus start year) lies within [minYears, maxYears]. Either bound
// may be nil. Records without two valid years are dropped and counted in
// Excluded.
func (a *Analyzer) ExperienceStats(ctx context.Context, title string, minYears, maxYears *float64, f Filters) (ExperienceResult, error) {
	title, err := validate.RequiredString("title", title)
	if err != nil {
		return ExperienceResult{}, err
	}
	recs, err := a.store.PayrollRecords(ctx, f.query(title))
	if err != nil {
		return ExperienceResult{}, err
	}

	out := ExperienceResult{MinYears: minYears, MaxYears: maxYears}
	var sals []float64
	for _, r := range recs {
		if !validYear(r.StartYear) || !validYear(r.EndYear) {
			out.Excluded++
			continue
		}
		years := float64(*r.EndYear - *r.StartYear)
		if minYears != nil && years < *minYears {
			continue
		}
		if maxYears != nil && years > *maxYears {
			continue
		}
		if v, ok := r.RepresentativeSalary(); ok {
			sals = append(sals, v)
		}
	}
	out.Stats = Describe(title, sals)
	return out, nil
}

func validYear(y *int) bool {
	return y != nil && *y >= validate.MinYear && *y <= validate.MaxYear
}
