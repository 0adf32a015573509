package payroll

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/careerscope/careerscope/internal/validate"
)

// Transition is a destination title reached by employees who held the
// source title.
type Transition struct {
	Title     string   `json:"title"`
	Count     int      `json:"count"`
	AvgSalary *float64 `json:"avgSalary"`
	URL       string   `json:"url,omitempty"`
}

// CareerTransitions tabulates the other titles held by every employee who
// ever held fromTitle, most frequent first, keeping at most limit entries.
// A non-positive limit uses the analyzer's default. Each entry is linked to
// the closest open listing when one exists.
func (a *Analyzer) CareerTransitions(ctx context.Context, fromTitle string, limit int) ([]Transition, error) {
	fromTitle, err := validate.RequiredString("fromTitle", fromTitle)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = a.transitionLimit
	}

	recs, err := a.store.TransitionRecords(ctx, fromTitle)
	if err != nil {
		return nil, err
	}

	type acc struct {
		count, countSal int
		total           float64
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
			s = &acc{}
			byTitle[t] = s
			order = append(order, t)
		}
		s.count++
		if v, ok := r.RepresentativeSalary(); ok {
			s.total += v
			s.countSal++
		}
	}

	out := make([]Transition, 0, len(order))
	for _, t := range order {
		s := byTitle[t]
		tr := Transition{Title: t, Count: s.count}
		if s.countSal > 0 {
			avg := s.total / float64(s.countSal)
			tr.AvgSalary = &avg
		}
		out = append(out, tr)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return out, nil
	}

	ls, err := a.listings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}
	for i := range out {
		if l, ok := a.matcher.Match(out[i].Title, ls); ok {
			out[i].URL = l.URL
		}
	}
	return out, nil
}
