package payroll

import (
	"context"
	"sort"
	"strings"

	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/validate"
)

// AdvancedFilters narrows the title rollup.
type AdvancedFilters struct {
	Agency  string
	Borough string
	// YearFrom and YearTo select records whose span overlaps the window.
	YearFrom *int
	YearTo   *int
	// MinAvgSalary drops titles whose average is below the bound or unknown.
	MinAvgSalary *float64
	// MinCount drops titles with fewer contributing records.
	MinCount *float64
}

// AdvancedOptions is the raw form of AdvancedFilters.
type AdvancedOptions struct {
	Agency       string `json:"agency"`
	Borough      string `json:"borough"`
	YearFrom     any    `json:"yearFrom"`
	YearTo       any    `json:"yearTo"`
	MinAvgSalary any    `json:"minAvgSalary"`
	MinCount     any    `json:"minCount"`
}

// Parse validates o.
func (o AdvancedOptions) Parse() (AdvancedFilters, error) {
	borough, err := validate.Borough("borough", o.Borough)
	if err != nil {
		return AdvancedFilters{}, err
	}
	from, err := validate.Year("yearFrom", o.YearFrom)
	if err != nil {
		return AdvancedFilters{}, err
	}
	to, err := validate.Year("yearTo", o.YearTo)
	if err != nil {
		return AdvancedFilters{}, err
	}
	minAvg, err := validate.OptionalNumber("minAvgSalary", o.MinAvgSalary)
	if err != nil {
		return AdvancedFilters{}, err
	}
	minCount, err := validate.OptionalNumber("minCount", o.MinCount, validate.AtLeast(0))
	if err != nil {
		return AdvancedFilters{}, err
	}
	return AdvancedFilters{
		Agency:       validate.String(o.Agency, ""),
		Borough:      borough,
		YearFrom:     from,
		YearTo:       to,
		MinAvgSalary: minAvg,
		MinCount:     minCount,
	}, nil
}

// Aggregate is one title's rollup. MinYear and MaxYear ignore missing or
// out-of-range years and are nil when no valid year was seen.
type Aggregate struct {
	Title     string   `json:"title"`
	Count     int      `json:"count"`
	AvgSalary *float64 `json:"avgSalary"`
	MinYear   *int     `json:"minYear"`
	MaxYear   *int     `json:"maxYear"`
}

// AdvancedJobList groups the matching payroll records by title and sorts the
// groups by average salary, highest first. Titles without an average sort
// as if it were zero.
func (a *Analyzer) AdvancedJobList(ctx context.Context, f AdvancedFilters) ([]Aggregate, error) {
	recs, err := a.store.PayrollRecords(ctx, storage.PayrollQuery{
		Agency:   f.Agency,
		Borough:  f.Borough,
		YearFrom: f.YearFrom,
		YearTo:   f.YearTo,
	})
	if err != nil {
		return nil, err
	}
	return rollup(recs, f), nil
}

func rollup(recs []storage.PayrollRecord, f AdvancedFilters) []Aggregate {
	type acc struct {
		Aggregate
		total    float64
		countSal int
	}
	byTitle := make(map[string]*acc)
	var order []string

	for _, r := range recs {
		t := strings.TrimSpace(r.Title)
		if t == "" {
			continue
		}
		s, ok := byTitle[t]
		if !ok {
			s = &acc{Aggregate: Aggregate{Title: t}}
			byTitle[t] = s
			order = append(order, t)
		}
		s.Count++
		if v, ok := r.RepresentativeSalary(); ok {
			s.total += v
			s.countSal++
		}
		if validYear(r.StartYear) && (s.MinYear == nil || *r.StartYear < *s.MinYear) {
			y := *r.StartYear
			s.MinYear = &y
		}
		if validYear(r.EndYear) && (s.MaxYear == nil || *r.EndYear > *s.MaxYear) {
			y := *r.EndYear
			s.MaxYear = &y
		}
	}

	out := make([]Aggregate, 0, len(order))
	for _, t := range order {
		s := byTitle[t]
		agg := s.Aggregate
		if s.countSal > 0 {
			avg := s.total / float64(s.countSal)
			agg.AvgSalary = &avg
		}
		if f.MinAvgSalary != nil && (agg.AvgSalary == nil || *agg.AvgSalary < *f.MinAvgSalary) {
			continue
		}
		if f.MinCount != nil && float64(agg.Count) < *f.MinCount {
			continue
		}
		out = append(out, agg)
	}

	sort.SliceStable(out, func(i, j int) bool { return avgOrZero(out[i]) > avgOrZero(out[j]) })
	return out
}

func avgOrZero(a Aggregate) float64 {
	if a.AvgSalary == nil {
		return 0
	}
	return *a.AvgSalary
}

// AggregatePage is one page of the title rollup.
type AggregatePage struct {
	Jobs         []Aggregate `json:"jobs"`
	CurrentPage  int         `json:"currentPage"`
	TotalPages   int         `json:"totalPages"`
	TotalResults int         `json:"totalResults"`
}

// AdvancedJobPage returns page (1-based) of AdvancedJobList. Pages past the
// end are empty.
func (a *Analyzer) AdvancedJobPage(ctx context.Context, f AdvancedFilters, page int) (AggregatePage, error) {
	all, err := a.AdvancedJobList(ctx, f)
	if err != nil {
		return AggregatePage{}, err
	}
	if page < 1 {
		page = 1
	}
	size := a.pageSize
	start := min((page-1)*size, len(all))
	end := min(start+size, len(all))
	return AggregatePage{
		Jobs:         all[start:end],
		CurrentPage:  page,
		TotalPages:   (len(all) + size - 1) / size,
		TotalResults: len(all),
	}, nil
}
