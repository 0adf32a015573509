package payroll

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/titlematch"
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

func f64(v float64) *float64 { return &v }
func yr(v int) *int          { return &v }

func rec(id, title, employee string, sy, ey *int, ss, es *float64) storage.PayrollRecord {
	return storage.PayrollRecord{ID: id, Title: title, Agency: "Finance", Employee: employee, Borough: "Manhattan",
		StartYear: sy, EndYear: ey, StartSalary: ss, EndSalary: es}
}

func seed(t *testing.T, recs ...storage.PayrollRecord) *storage.Store {
	t.Helper()
	s := openTestStore(t)
	if err := s.ReplacePayroll(context.Background(), recs); err != nil {
		t.Fatalf("ReplacePayroll: %v", err)
	}
	return s
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func assertStats(t *testing.T, got Stats, count int, avg, median, lo, hi float64) {
	t.Helper()
	if got.Count != count {
		t.Fatalf("Count = %d, want %d", got.Count, count)
	}
	if got.Avg == nil || got.Median == nil || got.Min == nil || got.Max == nil {
		t.Fatalf("nil field in %+v", got)
	}
	if !approx(*got.Avg, avg) || !approx(*got.Median, median) || *got.Min != lo || *got.Max != hi {
		t.Errorf("stats = avg %v median %v min %v max %v; want %v %v %v %v",
			*got.Avg, *got.Median, *got.Min, *got.Max, avg, median, lo, hi)
	}
}

func TestDescribe(t *testing.T) {
	assertStats(t, Describe("Clerk", []float64{50000, 30000, 40000}), 3, 40000, 40000, 30000, 50000)
	assertStats(t, Describe("Clerk", []float64{4, 1, 3, 2}), 4, 2.5, 2.5, 1, 4)
	assertStats(t, Describe("Clerk", []float64{7}), 1, 7, 7, 7, 7)

	empty := Describe("Clerk", nil)
	if empty.Count != 0 || empty.Avg != nil || empty.Median != nil || empty.Min != nil || empty.Max != nil {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestDescribeMedianMatchesOrderStatistic(t *testing.T) {
	in := []float64{9, 2, 7, 4, 4, 11, 1}
	before := append([]float64(nil), in...)
	st := Describe("x", in)
	if !reflect.DeepEqual(in, before) {
		t.Error("Describe modified its input")
	}
	sorted := append([]float64(nil), in...)
	sort.Float64s(sorted)
	if *st.Median != sorted[len(sorted)/2] {
		t.Errorf("median = %v, want %v", *st.Median, sorted[len(sorted)/2])
	}
	again := Describe("x", sorted)
	if *again.Median != *st.Median {
		t.Error("median not idempotent under re-sorting")
	}
}

func TestRepresentativeSalaryScenario(t *testing.T) {
	r := rec("r", "Clerk", "e", yr(2018), yr(2020), f64(40000), f64(44000))
	v, ok := r.RepresentativeSalary()
	if !ok || v != 42000 {
		t.Errorf("RepresentativeSalary = %v, %v; want 42000", v, ok)
	}
}

func TestJobStats(t *testing.T) {
	s := seed(t,
		rec("1", "Clerk", "e1", nil, nil, f64(30000), nil),
		rec("2", "Clerk", "e2", nil, nil, f64(38000), f64(42000)),
		rec("3", "Clerk", "e3", nil, nil, nil, f64(50000)),
		rec("4", "Clerk", "e4", nil, nil, nil, nil),
		rec("5", "Manager", "e5", nil, nil, f64(90000), nil),
	)
	a := New(s)

	st, err := a.JobStats(context.Background(), "Clerk", Filters{})
	if err != nil {
		t.Fatalf("JobStats: %v", err)
	}
	if st.Title != "Clerk" {
		t.Errorf("Title = %q", st.Title)
	}
	assertStats(t, st, 3, 40000, 40000, 30000, 50000)

	sals, err := a.AllSalariesForJob(context.Background(), "Clerk", Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sals, []float64{30000, 40000, 50000}) {
		t.Errorf("AllSalariesForJob = %v", sals)
	}
}

func TestJobStatsSoftEmpty(t *testing.T) {
	a := New(seed(t))
	st, err := a.JobStats(context.Background(), "Nobody", Filters{})
	if err != nil {
		t.Fatalf("JobStats on empty set should not fail: %v", err)
	}
	if st.Count != 0 || st.Avg != nil || st.Max != nil {
		t.Errorf("stats = %+v", st)
	}
}

func TestJobStatsRequiresTitle(t *testing.T) {
	a := New(seed(t))
	if _, err := a.JobStats(context.Background(), "  ", Filters{}); !errors.Is(err, validate.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestJobStatsMinSalaryMatchesEitherSide(t *testing.T) {
	s := seed(t,
		// start below, end above: kept even though the average is below the bound.
		rec("1", "Clerk", "e1", nil, nil, f64(20000), f64(50000)),
		rec("2", "Clerk", "e2", nil, nil, f64(30000), f64(30000)),
		rec("3", "Clerk", "e3", nil, nil, f64(60000), nil),
	)
	a := New(s)
	st, err := a.JobStats(context.Background(), "Clerk", Filters{MinSalary: f64(45000)})
	if err != nil {
		t.Fatal(err)
	}
	assertStats(t, st, 2, 47500, 47500, 35000, 60000)
}

func TestJobStatsAgencyBorough(t *testing.T) {
	r1 := rec("1", "Clerk", "e1", nil, nil, f64(10), nil)
	r2 := rec("2", "Clerk", "e2", nil, nil, f64(20), nil)
	r2.Agency, r2.Borough = "Parks", "Queens"
	a := New(seed(t, r1, r2))

	st, err := a.JobStats(context.Background(), "Clerk", Filters{Agency: "Parks"})
	if err != nil || st.Count != 1 || *st.Avg != 20 {
		t.Errorf("agency filter: %+v, %v", st, err)
	}
	st, err = a.JobStats(context.Background(), "Clerk", Filters{Borough: "Manhattan"})
	if err != nil || st.Count != 1 || *st.Avg != 10 {
		t.Errorf("borough filter: %+v, %v", st, err)
	}
}

func TestExperienceStats(t *testing.T) {
	s := seed(t,
		rec("1", "Clerk", "e1", yr(2010), yr(2012), f64(30000), nil), // 2 years
		rec("2", "Clerk", "e2", yr(2010), yr(2015), f64(40000), nil), // 5 years
		rec("3", "Clerk", "e3", yr(2000), yr(2020), f64(90000), nil), // 20 years
		rec("4", "Clerk", "e4", nil, yr(2020), f64(1), nil),         // excluded
		rec("5", "Clerk", "e5", yr(2019), nil, f64(1), nil),         // excluded
		rec("6", "Clerk", "e6", yr(2018), yr(2019), nil, nil),        // 1 year, no salary
	)
	a := New(s)
	ctx := context.Background()

	got, err := a.ExperienceStats(ctx, "Clerk", f64(2), f64(10), Filters{})
	if err != nil {
		t.Fatalf("ExperienceStats: %v", err)
	}
	assertStats(t, got.Stats, 2, 35000, 35000, 30000, 40000)
	if got.Excluded != 2 {
		t.Errorf("Excluded = %d, want 2", got.Excluded)
	}
	if *got.MinYears != 2 || *got.MaxYears != 10 {
		t.Errorf("bounds not echoed: %+v", got)
	}

	open, err := a.ExperienceStats(ctx, "Clerk", nil, nil, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if open.Count != 3 || open.MinYears != nil {
		t.Errorf("unbounded = %+v", open)
	}

	upper, err := a.ExperienceStats(ctx, "Clerk", f64(10), nil, Filters{})
	if err != nil {
		t.Fatal(err)
	}
	assertStats(t, upper.Stats, 1, 90000, 90000, 90000, 90000)

	none, err := a.ExperienceStats(ctx, "Clerk", f64(50), nil, Filters{})
	if err != nil || none.Count != 0 || none.Avg != nil {
		t.Errorf("empty bucket = %+v, %v", none, err)
	}
}

func TestCareerTransitionsScenario(t *testing.T) {
	s := seed(t,
		rec("1", "Clerk", "emp-1", yr(2015), yr(2017), f64(40000), f64(44000)),
		rec("2", "Manager", "emp-1", yr(2017), yr(2019), f64(70000), f64(74000)),
		rec("3", "Manager", "emp-1", yr(2019), yr(2021), f64(80000), nil),
		rec("4", "Director", "emp-2", yr(2019), yr(2021), f64(150000), nil),
	)
	a := New(s)

	got, err := a.CareerTransitions(context.Background(), "Clerk", 5)
	if err != nil {
		t.Fatalf("CareerTransitions: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Manager" || got[0].Count != 2 {
		t.Fatalf("transitions = %+v", got)
	}
	if got[0].AvgSalary == nil || *got[0].AvgSalary != 76000 {
		t.Errorf("AvgSalary = %v, want 76000", got[0].AvgSalary)
	}
	if got[0].URL != "" {
		t.Errorf("URL = %q, want none without listings", got[0].URL)
	}
}

func TestCareerTransitionsOrderingLimitAndLinks(t *testing.T) {
	recs := []storage.PayrollRecord{
		rec("c1", "Clerk", "a", nil, nil, nil, nil),
		rec("c2", "Clerk", "b", nil, nil, nil, nil),
		rec("c3", "Clerk", "c", nil, nil, nil, nil),
	}
	// Analyst x3 (no salaries), Civil Engineer x2, then five singletons.
	recs = append(recs,
		rec("a1", "Analyst", "a", nil, nil, nil, nil),
		rec("a2", "Analyst", "b", nil, nil, nil, nil),
		rec("a3", "Analyst", "c", nil, nil, nil, nil),
		rec("e1", "Civil Engineer", "a", nil, nil, f64(100), nil),
		rec("e2", "Civil Engineer", "b", nil, nil, f64(200), nil),
	)
	for n := 0; n < 5; n++ {
		recs = append(recs, rec(fmt.Sprintf("s%d", n), fmt.Sprintf("Title %d", n), "c", nil, nil, nil, nil))
	}
	s := seed(t, recs...)
	err := s.ReplacePostings(context.Background(), []storage.JobPosting{
		{ID: "j1", Title: "Civil Engineer (Structures)", URL: "https://jobs.example/j1"},
		{ID: "j2", Title: "Data Analyst", URL: ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	a := New(s, WithTransitionLimit(4))
	ctx := context.Background()

	got, err := a.CareerTransitions(ctx, "Clerk", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("default limit: got %d entries", len(got))
	}
	if got[0].Title != "Analyst" || got[0].Count != 3 || got[0].AvgSalary != nil {
		t.Errorf("first = %+v", got[0])
	}
	if got[0].URL != "" {
		t.Errorf("listing without URL must not link: %q", got[0].URL)
	}
	if got[1].Title != "Civil Engineer" || got[1].Count != 2 || *got[1].AvgSalary != 150 {
		t.Errorf("second = %+v", got[1])
	}
	if got[1].URL != "https://jobs.example/j1" {
		t.Errorf("second URL = %q", got[1].URL)
	}
	for n := 1; n < len(got); n++ {
		if got[n].Count > got[n-1].Count {
			t.Errorf("not sorted by count: %+v", got)
		}
	}

	two, err := a.CareerTransitions(ctx, "Clerk", 2)
	if err != nil || len(two) != 2 {
		t.Errorf("explicit limit: %+v, %v", two, err)
	}

	none, err := a.CareerTransitions(ctx, "Astronaut", 5)
	if err != nil || len(none) != 0 {
		t.Errorf("unknown title: %+v, %v", none, err)
	}
}

func TestListingURL(t *testing.T) {
	s := openTestStore(t)
	err := s.ReplacePostings(context.Background(), []storage.JobPosting{
		{ID: "j1", Title: "Senior Clerk", URL: "https://jobs.example/clerk"},
	})
	if err != nil {
		t.Fatal(err)
	}
	a := New(s)
	url, err := a.ListingURL(context.Background(), "CLERK")
	if err != nil || url != "https://jobs.example/clerk" {
		t.Errorf("ListingURL = %q, %v", url, err)
	}
	url, err = a.ListingURL(context.Background(), "Plumber")
	if err != nil || url != "" {
		t.Errorf("no match ListingURL = %q, %v", url, err)
	}

	custom := New(s, WithMatcher(titlematch.Matcher{
		Score: func(a, b []string) int { return 1 },
	}))
	url, err = custom.ListingURL(context.Background(), "Plumber Apprentice")
	if err != nil || url != "https://jobs.example/clerk" {
		t.Errorf("custom matcher ListingURL = %q, %v", url, err)
	}
}

func TestAdvancedJobListYearOverlap(t *testing.T) {
	s := seed(t, rec("1", "Clerk", "e", yr(2015), yr(2018), f64(40000), nil))
	a := New(s)
	ctx := context.Background()

	hit, err := a.AdvancedJobList(ctx, AdvancedFilters{YearFrom: yr(2017), YearTo: yr(2020)})
	if err != nil {
		t.Fatal(err)
	}
	if len(hit) != 1 {
		t.Errorf("window [2017, 2020] should match, got %+v", hit)
	}
	miss, err := a.AdvancedJobList(ctx, AdvancedFilters{YearFrom: yr(2019), YearTo: yr(2020)})
	if err != nil {
		t.Fatal(err)
	}
	if len(miss) != 0 {
		t.Errorf("window [2019, 2020] should not match, got %+v", miss)
	}
	touch, err := a.AdvancedJobList(ctx, AdvancedFilters{YearFrom: yr(2018), YearTo: yr(2018)})
	if err != nil || len(touch) != 1 {
		t.Errorf("touching window should match: %+v, %v", touch, err)
	}
}

func TestAdvancedJobListMinCount(t *testing.T) {
	var recs []storage.PayrollRecord
	for n := 0; n < 5; n++ {
		recs = append(recs, rec(fmt.Sprintf("c%d", n), "Clerk", "", yr(2010), yr(2012+n), f64(30000), nil))
	}
	recs = append(recs, rec("d1", "Director", "", yr(2010), yr(2011), f64(250000), nil))
	a := New(seed(t, recs...))

	got, err := a.AdvancedJobList(context.Background(), AdvancedFilters{MinCount: f64(5)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Title != "Clerk" || got[0].Count != 5 {
		t.Fatalf("minCount 5 = %+v", got)
	}
	if *got[0].MinYear != 2010 || *got[0].MaxYear != 2016 {
		t.Errorf("year range = %d-%d", *got[0].MinYear, *got[0].MaxYear)
	}
}

func TestAdvancedJobListSortAndMinAvg(t *testing.T) {
	a := New(seed(t,
		rec("1", "Low", "", nil, nil, f64(10000), nil),
		rec("2", "NoSalary", "", nil, nil, nil, nil),
		rec("3", "High", "", nil, nil, f64(90000), nil),
		rec("4", "High", "", nil, nil, f64(70000), nil),
		rec("5", "  ", "", nil, nil, f64(1e6), nil),
	))
	ctx := context.Background()

	got, err := a.AdvancedJobList(ctx, AdvancedFilters{})
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, g := range got {
		titles = append(titles, g.Title)
	}
	if !reflect.DeepEqual(titles, []string{"High", "Low", "NoSalary"}) {
		t.Errorf("order = %v", titles)
	}
	if *got[0].AvgSalary != 80000 || got[2].AvgSalary != nil || got[2].MinYear != nil {
		t.Errorf("aggregates = %+v", got)
	}

	got, err = a.AdvancedJobList(ctx, AdvancedFilters{MinAvgSalary: f64(5000)})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("minAvgSalary should drop the title without an average: %+v", got)
	}
}

func TestRollupSanitizesYears(t *testing.T) {
	recs := []storage.PayrollRecord{
		{Title: "Clerk", StartYear: yr(1850), EndYear: yr(2015)},
		{Title: "Clerk", StartYear: yr(2012), EndYear: yr(2300)},
		{Title: "Clerk"},
	}
	got := rollup(recs, AdvancedFilters{})
	if len(got) != 1 || got[0].Count != 3 {
		t.Fatalf("rollup = %+v", got)
	}
	if *got[0].MinYear != 2012 || *got[0].MaxYear != 2015 {
		t.Errorf("years = %d-%d, want 2012-2015", *got[0].MinYear, *got[0].MaxYear)
	}
}

func TestAdvancedJobPage(t *testing.T) {
	var recs []storage.PayrollRecord
	for n := 0; n < 7; n++ {
		recs = append(recs, rec(fmt.Sprintf("r%d", n), fmt.Sprintf("Title %d", n), "", nil, nil, f64(float64(1000*(n+1))), nil))
	}
	a := New(seed(t, recs...), WithPageSize(3))
	ctx := context.Background()

	p, err := a.AdvancedJobPage(ctx, AdvancedFilters{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalPages != 3 || p.TotalResults != 7 || p.CurrentPage != 3 || len(p.Jobs) != 1 {
		t.Errorf("page 3 = %+v", p)
	}
	if p.Jobs[0].Title != "Title 0" {
		t.Errorf("last entry = %q, want lowest salary", p.Jobs[0].Title)
	}

	past, err := a.AdvancedJobPage(ctx, AdvancedFilters{}, 9)
	if err != nil || len(past.Jobs) != 0 || past.CurrentPage != 9 {
		t.Errorf("past the end = %+v, %v", past, err)
	}
	first, err := a.AdvancedJobPage(ctx, AdvancedFilters{}, 0)
	if err != nil || first.CurrentPage != 1 || len(first.Jobs) != 3 {
		t.Errorf("page 0 = %+v, %v", first, err)
	}
}

func TestCompareJobs(t *testing.T) {
	s := seed(t,
		rec("1", "Clerk", "e1", nil, nil, f64(40000), nil),
		rec("2", "Clerk", "e2", nil, nil, f64(60000), nil),
		rec("3", "Manager", "e3", nil, nil, f64(75000), nil),
	)
	a := New(s)

	c, err := a.CompareJobs(context.Background(), "Clerk", "Manager", Filters{})
	if err != nil {
		t.Fatalf("CompareJobs: %v", err)
	}
	if c.A.Count != 2 || c.B.Count != 1 {
		t.Fatalf("counts = %d/%d", c.A.Count, c.B.Count)
	}
	if c.Diffs.AvgPct == nil || !approx(*c.Diffs.AvgPct, 50) {
		t.Errorf("AvgPct = %v, want 50", c.Diffs.AvgPct)
	}
	if !approx(*c.Diffs.CountPct, -50) {
		t.Errorf("CountPct = %v, want -50", *c.Diffs.CountPct)
	}
	if !approx(*c.Diffs.MinPct, 87.5) {
		t.Errorf("MinPct = %v, want 87.5", *c.Diffs.MinPct)
	}

	c, err = a.CompareJobs(context.Background(), "Clerk", "Astronaut", Filters{})
	if err != nil {
		t.Fatal(err)
	}
	if c.B.Count != 0 || c.Diffs.AvgPct != nil || c.Diffs.CountPct != nil {
		t.Errorf("missing side should yield nil diffs: %+v", c.Diffs)
	}

	if _, err := a.CompareJobs(context.Background(), "Clerk", "", Filters{}); !errors.Is(err, validate.ErrValidation) {
		t.Errorf("blank titleB: got %v", err)
	}
}

func TestCompareOptions(t *testing.T) {
	r := rec("1", " Clerk ", "", yr(1900), yr(2018), nil, nil)
	r2 := rec("2", "Analyst", "", yr(2015), nil, nil, nil)
	r2.Borough, r2.Agency = "Queens", "Parks"
	a := New(seed(t, r, r2))

	got, err := a.CompareOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := Choices{
		Titles:   []string{"Analyst", "Clerk"},
		Boroughs: []string{"Manhattan", "Queens"},
		Agencies: []string{"Finance", "Parks"},
		Years:    []int{2015, 2018},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CompareOptions = %+v, want %+v", got, want)
	}

	empty, err := New(openTestStore(t)).CompareOptions(context.Background())
	if err != nil || empty.Titles == nil || empty.Years == nil {
		t.Errorf("empty options = %+v, %v", empty, err)
	}
}

func TestParseOptions(t *testing.T) {
	f, err := FilterOptions{Agency: " Parks ", Borough: "queens", MinSalary: "50000"}.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if f.Agency != "Parks" || f.Borough != "Queens" || *f.MinSalary != 50000 {
		t.Errorf("Filters = %+v", f)
	}
	if _, err := (FilterOptions{MinSalary: "lots"}).Parse(); !errors.Is(err, validate.ErrInvalidNumber) {
		t.Errorf("bad minSalary: %v", err)
	}

	af, err := AdvancedOptions{YearFrom: "2017", YearTo: 2020.0, MinCount: "5"}.Parse()
	if err != nil {
		t.Fatal(err)
	}
	if *af.YearFrom != 2017 || *af.YearTo != 2020 || *af.MinCount != 5 || af.MinAvgSalary != nil {
		t.Errorf("AdvancedFilters = %+v", af)
	}
	if _, err := (AdvancedOptions{YearFrom: 1800}).Parse(); !errors.Is(err, validate.ErrOutOfRange) {
		t.Errorf("bad year: %v", err)
	}
	if _, err := (AdvancedOptions{MinCount: -1}).Parse(); !errors.Is(err, validate.ErrOutOfRange) {
		t.Errorf("negative minCount: %v", err)
	}
}

type failingStore struct{ Store }

func (failingStore) PayrollRecords(context.Context, storage.PayrollQuery) ([]storage.PayrollRecord, error) {
	return nil, errors.New("store down")
}

func TestCompareJobsPropagatesStoreError(t *testing.T) {
	a := New(failingStore{})
	if _, err := a.CompareJobs(context.Background(), "A", "B", Filters{}); err == nil {
		t.Error("expected store error")
	}
}
