package payroll

import (
	"context"

	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/titlematch"
)

// Store is the subset of the record store the analytics read.
type Store interface {
	PayrollRecords(ctx context.Context, q storage.PayrollQuery) ([]storage.PayrollRecord, error)
	TransitionRecords(ctx context.Context, fromTitle string) ([]storage.PayrollRecord, error)
	Listings(ctx context.Context) ([]storage.Listing, error)
	PayrollTitles(ctx context.Context) ([]string, error)
	PayrollAgencies(ctx context.Context) ([]string, error)
	PayrollBoroughs(ctx context.Context) ([]string, error)
	PayrollYears(ctx context.Context) ([]int, error)
}

const (
	DefaultTransitionLimit = 5
	DefaultPageSize        = 25
)

// Analyzer answers payroll analytics queries. It keeps no state between calls.
type Analyzer struct {
	store           Store
	matcher         titlematch.Matcher
	transitionLimit int
	pageSize        int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMatcher replaces the title matcher used to link listings.
func WithMatcher(m titlematch.Matcher) Option {
	return func(a *Analyzer) { a.matcher = m }
}

// WithTransitionLimit sets the default number of career transitions returned.
func WithTransitionLimit(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.transitionLimit = n
		}
	}
}

// WithPageSize sets the page size of the advanced listing.
func WithPageSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

// New creates an Analyzer over store.
func New(store Store, opts ...Option) *Analyzer {
	a := &Analyzer{
		store:           store,
		matcher:         titlematch.Default,
		transitionLimit: DefaultTransitionLimit,
		pageSize:        DefaultPageSize,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Analyzer) listings(ctx context.Context) ([]titlematch.Listing, error) {
	ls, err := a.store.Listings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]titlematch.Listing, len(ls))
	for i, l := range ls {
		out[i] = titlematch.Listing{ID: l.ID, Title: l.Title, URL: l.URL}
	}
	return out, nil
}

// ListingURL returns the URL of the open listing closest to a payroll title,
// or "" when none matches.
func (a *Analyzer) ListingURL(ctx context.Context, title string) (string, error) {
	ls, err := a.listings(ctx)
	if err != nil {
		return "", err
	}
	if l, ok := a.matcher.Match(title, ls); ok {
		return l.URL, nil
	}
	return "", nil
}
