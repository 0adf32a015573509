package payroll

import (
	"context"
	"fmt"

	"github.com/careerscope/careerscope/internal/validate"
	"golang.org/x/sync/errgroup"
)

// Diffs are percentage changes from A to B. A diff is nil when either side
// is missing or zero.
type Diffs struct {
	AvgPct    *float64 `json:"avgPct"`
	MedianPct *float64 `json:"medianPct"`
	MinPct    *float64 `json:"minPct"`
	MaxPct    *float64 `json:"maxPct"`
	CountPct  *float64 `json:"countPct"`
}

// Comparison holds the stats of two titles side by side.
type Comparison struct {
	A     Stats `json:"a"`
	B     Stats `json:"b"`
	Diffs Diffs `json:"diffs"`
}

// CompareJobs computes the stats of titleA and titleB concurrently under the
// same filters.
func (a *Analyzer) CompareJobs(ctx context.Context, titleA, titleB string, f Filters) (Comparison, error) {
	titleA, err := validate.RequiredString("titleA", titleA)
	if err != nil {
		return Comparison{}, err
	}
	titleB, err = validate.RequiredString("titleB", titleB)
	if err != nil {
		return Comparison{}, err
	}

	var out Comparison
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := a.JobStats(gctx, titleA, f)
		if err != nil {
			return fmt.Errorf("stats for %q: %w", titleA, err)
		}
		out.A = st
		return nil
	})
	g.Go(func() error {
		st, err := a.JobStats(gctx, titleB, f)
		if err != nil {
			return fmt.Errorf("stats for %q: %w", titleB, err)
		}
		out.B = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return Comparison{}, err
	}

	countA, countB := float64(out.A.Count), float64(out.B.Count)
	out.Diffs = Diffs{
		AvgPct:    pct(out.A.Avg, out.B.Avg),
		MedianPct: pct(out.A.Median, out.B.Median),
		MinPct:    pct(out.A.Min, out.B.Min),
		MaxPct:    pct(out.A.Max, out.B.Max),
		CountPct:  pct(&countA, &countB),
	}
	return out, nil
}

func pct(a, b *float64) *float64 {
	if a == nil || b == nil || *a == 0 || *b == 0 {
		return nil
	}
	v := (*b - *a) / *a * 100
	return &v
}

// Choices are the distinct values offered by the comparison screens.
type Choices struct {
	Titles   []string `json:"titles"`
	Boroughs []string `json:"boroughs"`
	Agencies []string `json:"agencies"`
	Years    []int    `json:"years"`
}

// CompareOptions loads the distinct payroll titles, boroughs, agencies and
// years.
func (a *Analyzer) CompareOptions(ctx context.Context) (Choices, error) {
	var out Choices
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Titles, err = a.store.PayrollTitles(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Boroughs, err = a.store.PayrollBoroughs(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Agencies, err = a.store.PayrollAgencies(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Years, err = a.store.PayrollYears(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Choices{}, fmt.Errorf("loading compare options: %w", err)
	}
	if out.Titles == nil {
		out.Titles = []string{}
	}
	if out.Boroughs == nil {
		out.Boroughs = []string{}
	}
	if out.Agencies == nil {
		out.Agencies = []string{}
	}
	if out.Years == nil {
		out.Years = []int{}
	}
	return out, nil
}

// Titles returns the distinct payroll titles, sorted.
func (a *Analyzer) Titles(ctx context.Context) ([]string, error) {
	titles, err := a.store.PayrollTitles(ctx)
	if err != nil {
		return nil, err
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}
