package jobsearch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/careerscope/careerscope/internal/keywords"
	"github.com/careerscope/careerscope/internal/storage"
)

// ErrNoResults is returned when a well-formed search matches nothing.
var ErrNoResults = errors.New("no jobs match the search")

// Store is the subset of the record store the search engine reads.
type Store interface {
	CountPostings(ctx context.Context, q storage.PostingQuery) (int, error)
	FindPostings(ctx context.Context, q storage.PostingQuery, rank []string, offset, limit int) ([]storage.ScoredPosting, error)
	TaggedJobIDs(ctx context.Context, userID, status string) ([]string, error)
	PostingTitles(ctx context.Context) ([]string, error)
	PostingAgencies(ctx context.Context) ([]string, error)
}

// PageInfo describes where a result page sits in the full result set.
type PageInfo struct {
	Page       int `json:"page"`
	MaxPage    int `json:"maxPage"`
	NumResults int `json:"numResults"`
}

// Result is one page of ranked postings.
type Result struct {
	PageInfo PageInfo                `json:"pageInfo"`
	Jobs     []storage.ScoredPosting `json:"jobs"`
}

// Dropdown holds distinct values for search autocomplete.
type Dropdown struct {
	Titles   []string `json:"titles"`
	Agencies []string `json:"agencies"`
}

// Engine answers job searches against a Store.
type Engine struct {
	store     Store
	extractor atomic.Pointer[keywords.Extractor]
}

// New creates an Engine. extractor turns resume text into keywords; nil
// disables resume matching.
func New(store Store, extractor *keywords.Extractor) *Engine {
	e := &Engine{store: store}
	e.extractor.Store(extractor)
	return e
}

// Extractor returns the engine's current keyword extractor.
func (e *Engine) Extractor() *keywords.Extractor { return e.extractor.Load() }

// SetExtractor replaces the keyword extractor used by later searches.
func (e *Engine) SetExtractor(extractor *keywords.Extractor) { e.extractor.Store(extractor) }

// SearchOptions validates opts and runs the search.
func (e *Engine) SearchOptions(ctx context.Context, opts Options) (Result, error) {
	f, err := NewFilter(opts, e.extractor.Load())
	if err != nil {
		return Result{}, err
	}
	return e.Search(ctx, f)
}

// Search counts the matches of f, clamps the requested page to the last
// page and returns that page ranked by keyword overlap.
func (e *Engine) Search(ctx context.Context, f Filter) (Result, error) {
	var ids []string
	restrict := false
	if userID, tag, ok := f.TagFilter(); ok {
		var err error
		ids, err = e.store.TaggedJobIDs(ctx, userID, string(tag))
		if err != nil {
			return Result{}, fmt.Errorf("loading tagged jobs: %w", err)
		}
		restrict = true
	}
	q := f.query(ids, restrict)

	n, err := e.store.CountPostings(ctx, q)
	if err != nil {
		return Result{}, err
	}
	if n == 0 {
		return Result{}, ErrNoResults
	}

	pageSize := f.PageSize()
	maxPage := (n + pageSize - 1) / pageSize
	page := min(f.Page(), maxPage)

	jobs, err := e.store.FindPostings(ctx, q, f.Keywords(), pageSize*(page-1), pageSize)
	if err != nil {
		return Result{}, err
	}
	if jobs == nil {
		jobs = []storage.ScoredPosting{}
	}

	return Result{
		PageInfo: PageInfo{Page: page, MaxPage: maxPage, NumResults: n},
		Jobs:     jobs,
	}, nil
}

// DropdownOptions returns the distinct posting titles and agencies.
func (e *Engine) DropdownOptions(ctx context.Context) (Dropdown, error) {
	titles, err := e.store.PostingTitles(ctx)
	if err != nil {
		return Dropdown{}, fmt.Errorf("loading titles: %w", err)
	}
	agencies, err := e.store.PostingAgencies(ctx)
	if err != nil {
		return Dropdown{}, fmt.Errorf("loading agencies: %w", err)
	}
	if titles == nil {
		titles = []string{}
	}
	if agencies == nil {
		agencies = []string{}
	}
	return Dropdown{Titles: titles, Agencies: agencies}, nil
}
