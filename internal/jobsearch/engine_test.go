package jobsearch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/careerscope/careerscope/internal/keywords"
	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/validate"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var vocabulary = []string{"budget", "excel", "python", "sql", "autocad"}

// seedStore loads n postings whose attributes cycle so every filter has
// both matching and non-matching rows.
func seedStore(t *testing.T, n int) *storage.Store {
	t.Helper()
	s := openTestStore(t)
	boroughs := validate.Boroughs()
	postings := make([]storage.JobPosting, 0, n)
	for i := 0; i < n; i++ {
		var kw []string
		for j, k := range vocabulary {
			if i%(j+2) == 0 {
				kw = append(kw, k)
			}
		}
		postings = append(postings, storage.JobPosting{
			ID:          fmt.Sprintf("job-%03d", i),
			Agency:      []string{"Dept of Finance", "Parks Department", "Police"}[i%3],
			Title:       []string{"Analyst", "Senior Analyst", "Clerk", "Engineer"}[i%4],
			Borough:     boroughs[i%len(boroughs)],
			FullTime:    i%2 == 0,
			Residency:   i%3 == 0,
			PostingDate: time.Date(1998+i%10, 1, 1, 0, 0, 0, 0, time.UTC),
			Salary:      int64(30000 + 1000*i),
			URL:         fmt.Sprintf("https://jobs.example/%d", i),
			Keywords:    kw,
		})
	}
	if err := s.ReplacePostings(context.Background(), postings); err != nil {
		t.Fatalf("ReplacePostings: %v", err)
	}
	return s
}

func mustFilter(t *testing.T, opts Options, ex *keywords.Extractor) Filter {
	t.Helper()
	f, err := NewFilter(opts, ex)
	if err != nil {
		t.Fatalf("NewFilter(%+v): %v", opts, err)
	}
	return f
}

func TestNewFilterDefaults(t *testing.T) {
	f := mustFilter(t, Options{}, nil)
	if f.Page() != 1 || f.PageSize() != 10 {
		t.Errorf("page/pageSize = %d/%d", f.Page(), f.PageSize())
	}
	if !f.minDate.Equal(DefaultMinDate) || f.minSalary != 0 || f.maxSalary != 1e9 {
		t.Errorf("defaults = %v %v %v", f.minDate, f.minSalary, f.maxSalary)
	}
	if f.fullTime || f.residency {
		t.Error("flags should default to false")
	}
	if _, _, ok := f.TagFilter(); ok {
		t.Error("tag filter should be off by default")
	}
}

func TestNewFilterMergesResumeKeywords(t *testing.T) {
	ex := keywords.NewExtractor(vocabulary)
	f := mustFilter(t, Options{
		Keywords: []string{" sql ", "budget"},
		Resume:   "I know python, SQL and sql. Also excel!",
	}, ex)
	want := []string{"budget", "excel", "python", "sql"}
	if got := f.Keywords(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func TestNewFilterStopsAtFirstError(t *testing.T) {
	_, err := NewFilter(Options{Borough: "Jersey", MinSalary: "lots"}, nil)
	if !errors.Is(err, validate.ErrInvalidBorough) {
		t.Errorf("got %v, want borough error first", err)
	}

	cases := []struct {
		name string
		opts Options
		kind error
	}{
		{"blank keyword", Options{Keywords: []string{"sql", "  "}}, validate.ErrInvalidString},
		{"bad bool", Options{FullTime: "sometimes"}, validate.ErrInvalidBool},
		{"bad date", Options{MinDate: "01/01/2020"}, validate.ErrInvalidDateFormat},
		{"bad salary", Options{MaxSalary: "NaN"}, validate.ErrInvalidNumber},
		{"bad page", Options{Page: "first"}, validate.ErrInvalidNumber},
		{"bad tag", Options{UserID: "u1", JobTag: "Ghosted"}, validate.ErrInvalidTag},
	}
	for _, c := range cases {
		_, err := NewFilter(c.opts, nil)
		if !errors.Is(err, c.kind) || !errors.Is(err, validate.ErrValidation) {
			t.Errorf("%s: got %v, want %v", c.name, err, c.kind)
		}
	}
}

func TestFilterKeywordsIsACopy(t *testing.T) {
	f := mustFilter(t, Options{Keywords: []string{"sql"}}, nil)
	f.Keywords()[0] = "mutated"
	if f.Keywords()[0] != "sql" {
		t.Error("Keywords() exposed internal state")
	}
}

func TestSearchPageClamp(t *testing.T) {
	s := seedStore(t, 30)
	e := New(s, nil)

	res, err := e.SearchOptions(context.Background(), Options{Page: 999, MinDate: "1990-01-01"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.PageInfo.MaxPage != 3 || res.PageInfo.Page != 3 || res.PageInfo.NumResults != 30 {
		t.Errorf("PageInfo = %+v, want page 3 of 3", res.PageInfo)
	}
	if len(res.Jobs) != 10 {
		t.Errorf("got %d jobs on last page, want 10", len(res.Jobs))
	}
}

func TestSearchNoResults(t *testing.T) {
	s := seedStore(t, 10)
	e := New(s, nil)

	_, err := e.SearchOptions(context.Background(), Options{Title: "Astronaut"})
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("got %v, want ErrNoResults", err)
	}
}

func TestSearchPaginationCoversEveryResultOnce(t *testing.T) {
	s := seedStore(t, 47)
	e := New(s, nil)
	ctx := context.Background()

	base := Options{MinDate: "1990-01-01", Keywords: []string{"budget"}, PageSize: 10}
	first, err := e.SearchOptions(ctx, base)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	all, err := s.FindPostings(ctx, mustFilter(t, base, nil).query(nil, false), []string{"budget"}, 0, 1000)
	if err != nil {
		t.Fatal(err)
	}

	var paged []string
	for p := 1; p <= first.PageInfo.MaxPage; p++ {
		opts := base
		opts.Page = p
		res, err := e.SearchOptions(ctx, opts)
		if err != nil {
			t.Fatalf("page %d: %v", p, err)
		}
		for _, j := range res.Jobs {
			paged = append(paged, j.ID)
		}
	}

	var want []string
	for _, j := range all {
		want = append(want, j.ID)
	}
	if len(want) != first.PageInfo.NumResults {
		t.Fatalf("NumResults = %d, full set = %d", first.PageInfo.NumResults, len(want))
	}
	if !reflect.DeepEqual(paged, want) {
		t.Errorf("concatenated pages differ from full ranked set:\n got %v\nwant %v", paged, want)
	}
}

func TestSearchRankingNonIncreasing(t *testing.T) {
	s := seedStore(t, 40)
	ex := keywords.NewExtractor(vocabulary)
	e := New(s, ex)

	// A single explicit keyword keeps the match set broad; ranking uses the
	// same merged set, so scores are equal and order falls back to import order.
	res, err := e.SearchOptions(context.Background(), Options{MinDate: "1990-01-01", Resume: "budget", PageSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(res.Jobs); i++ {
		if res.Jobs[i].Score > res.Jobs[i-1].Score {
			t.Fatalf("score increased at %d: %d > %d", i, res.Jobs[i].Score, res.Jobs[i-1].Score)
		}
	}
}

func TestSearchKeywordAND(t *testing.T) {
	s := seedStore(t, 60)
	e := New(s, nil)

	want := []string{"budget", "excel"}
	res, err := e.SearchOptions(context.Background(), Options{MinDate: "1990-01-01", Keywords: want, PageSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Jobs) == 0 {
		t.Fatal("expected matches")
	}
	for _, j := range res.Jobs {
		set := keywords.FromSlice(j.Keywords)
		for _, k := range want {
			if !set.Has(k) {
				t.Errorf("job %s lacks keyword %q: %v", j.ID, k, j.Keywords)
			}
		}
		if j.Score != len(want) {
			t.Errorf("job %s score = %d, want %d", j.ID, j.Score, len(want))
		}
	}
}

func TestSearchOrOpenFlags(t *testing.T) {
	s := seedStore(t, 20)
	e := New(s, nil)
	ctx := context.Background()

	open, err := e.SearchOptions(ctx, Options{MinDate: "1990-01-01", FullTime: false, PageSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	var sawFull, sawPart bool
	for _, j := range open.Jobs {
		if j.FullTime {
			sawFull = true
		} else {
			sawPart = true
		}
	}
	if !sawFull || !sawPart {
		t.Errorf("fullTime=false must return both kinds (full %v, part %v)", sawFull, sawPart)
	}

	strict, err := e.SearchOptions(ctx, Options{MinDate: "1990-01-01", FullTime: "true", PageSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	for _, j := range strict.Jobs {
		if !j.FullTime {
			t.Errorf("fullTime=true returned part-time job %s", j.ID)
		}
	}

	res, err := e.SearchOptions(ctx, Options{MinDate: "1990-01-01", Residency: true, PageSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	for _, j := range res.Jobs {
		if !j.Residency {
			t.Errorf("residency=true returned non-residency job %s", j.ID)
		}
	}
	if res.PageInfo.NumResults >= open.PageInfo.NumResults {
		t.Errorf("residency filter did not restrict: %d vs %d", res.PageInfo.NumResults, open.PageInfo.NumResults)
	}
}

func TestSearchMonotonicRestriction(t *testing.T) {
	s := seedStore(t, 50)
	e := New(s, nil)
	ctx := context.Background()

	steps := []Options{
		{MinDate: "1990-01-01"},
		{MinDate: "1990-01-01", Agency: "finance"},
		{MinDate: "1990-01-01", Agency: "finance", FullTime: true},
		{MinDate: "1990-01-01", Agency: "finance", FullTime: true, MinSalary: 40000},
		{MinDate: "2000-01-01", Agency: "finance", FullTime: true, MinSalary: 40000},
		{MinDate: "2000-01-01", Agency: "finance", FullTime: true, MinSalary: 40000, Keywords: []string{"budget"}},
	}
	prev := -1
	for i, opts := range steps {
		n := 0
		res, err := e.SearchOptions(ctx, opts)
		switch {
		case errors.Is(err, ErrNoResults):
		case err != nil:
			t.Fatalf("step %d: %v", i, err)
		default:
			n = res.PageInfo.NumResults
		}
		if prev >= 0 && n > prev {
			t.Errorf("step %d increased results: %d > %d", i, n, prev)
		}
		prev = n
	}
}

func TestSearchUserTagFilter(t *testing.T) {
	s := seedStore(t, 10)
	ctx := context.Background()
	users := []storage.User{
		{ID: "u1", TaggedJobs: []storage.TaggedJob{
			{JobID: "job-002", ApplicationStatus: "Applied"},
			{JobID: "job-005", ApplicationStatus: "Rejected"},
			{JobID: "job-007", ApplicationStatus: "APPLIED"},
		}},
		{ID: "u2"},
	}
	if err := s.ReplaceUsers(ctx, users); err != nil {
		t.Fatal(err)
	}
	e := New(s, nil)

	res, err := e.SearchOptions(ctx, Options{MinDate: "1990-01-01", UserID: "u1", JobTag: "applied"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var ids []string
	for _, j := range res.Jobs {
		ids = append(ids, j.ID)
	}
	if !reflect.DeepEqual(ids, []string{"job-002", "job-007"}) {
		t.Errorf("tagged ids = %v", ids)
	}

	// No matching tags restricts to the empty set rather than lifting the filter.
	if _, err := e.SearchOptions(ctx, Options{MinDate: "1990-01-01", UserID: "u2", JobTag: "Applied"}); !errors.Is(err, ErrNoResults) {
		t.Errorf("u2: got %v, want ErrNoResults", err)
	}

	if _, err := e.SearchOptions(ctx, Options{UserID: "ghost", JobTag: "Applied"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown user: got %v, want ErrNotFound", err)
	}

	// A user id without a tag does not filter.
	all, err := e.SearchOptions(ctx, Options{MinDate: "1990-01-01", UserID: "u1"})
	if err != nil || all.PageInfo.NumResults != 10 {
		t.Errorf("user without tag: %+v, %v", all.PageInfo, err)
	}
}

func TestDropdownOptions(t *testing.T) {
	s := seedStore(t, 8)
	e := New(s, nil)

	d, err := e.DropdownOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.Titles, []string{"Analyst", "Clerk", "Engineer", "Senior Analyst"}) {
		t.Errorf("Titles = %v", d.Titles)
	}
	if !reflect.DeepEqual(d.Agencies, []string{"Dept of Finance", "Parks Department", "Police"}) {
		t.Errorf("Agencies = %v", d.Agencies)
	}

	empty := New(openTestStore(t), nil)
	d, err = empty.DropdownOptions(context.Background())
	if err != nil || d.Titles == nil || d.Agencies == nil {
		t.Errorf("empty store dropdown = %+v, %v", d, err)
	}
}

type failingStore struct{ Store }

func (failingStore) CountPostings(context.Context, storage.PostingQuery) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestSearchPropagatesStoreError(t *testing.T) {
	e := New(failingStore{}, nil)
	_, err := e.SearchOptions(context.Background(), Options{})
	if err == nil || errors.Is(err, ErrNoResults) {
		t.Errorf("got %v, want store error", err)
	}
}

func TestSetExtractorAppliesToLaterSearches(t *testing.T) {
	s := seedStore(t, 40)
	e := New(s, keywords.NewExtractor(nil))
	ctx := context.Background()
	opts := Options{MinDate: "1990-01-01", Resume: "I use autocad daily", PageSize: 100}

	res, err := e.SearchOptions(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.PageInfo.NumResults != 40 {
		t.Errorf("empty whitelist: NumResults = %d, want 40", res.PageInfo.NumResults)
	}

	ex := keywords.NewExtractor(vocabulary)
	e.SetExtractor(ex)
	if e.Extractor() != ex {
		t.Error("Extractor should return the replacement")
	}
	res, err = e.SearchOptions(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	// autocad is carried by every sixth posting.
	if res.PageInfo.NumResults != 7 {
		t.Errorf("after SetExtractor: NumResults = %d, want 7", res.PageInfo.NumResults)
	}
}
