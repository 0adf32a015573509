// Package jobsearch runs multi-criteria, keyword-ranked, paginated searches
// over open job postings.
package jobsearch

import (
	"fmt"
	"strings"
	"time"

	"github.com/careerscope/careerscope/internal/keywords"
	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/validate"
)

// Defaults applied to absent options.
var (
	DefaultMinDate   = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultMinSalary = 0.0
	DefaultMaxSalary = 1e9
)

// Options is the raw option bag a caller hands to the search. Numeric and
// boolean fields accept whatever the transport decoded (numbers, numeric
// strings, form booleans); nil or blank means "use the default".
type Options struct {
	Agency    string   `json:"agency"`
	Title     string   `json:"title"`
	Borough   string   `json:"borough"`
	Keywords  []string `json:"keywords"`
	Resume    string   `json:"resume"`
	FullTime  any      `json:"fullTime"`
	Residency any      `json:"residency"`
	MinDate   string   `json:"minDate"`
	MinSalary any      `json:"minSalary"`
	MaxSalary any      `json:"maxSalary"`
	Page      any      `json:"page"`
	PageSize  any      `json:"pageSize"`
	UserID    string   `json:"userId"`
	JobTag    string   `json:"jobTag"`
}

// Filter is a fully validated search. It is only produced by NewFilter and
// is never modified afterwards.
type Filter struct {
	agency, title, borough string
	keywords               []string
	fullTime, residency    bool
	minDate                time.Time
	minSalary, maxSalary   float64
	page, pageSize         int
	userID                 string
	jobTag                 validate.Status
}

// NewFilter validates opts field by field and stops at the first invalid
// value. Resume text is run through ex and its keywords are merged with the
// explicit ones. ex may be nil when no resume is given.
func NewFilter(opts Options, ex *keywords.Extractor) (Filter, error) {
	agency := validate.String(opts.Agency, "")
	title := validate.String(opts.Title, "")

	borough, err := validate.Borough("borough", opts.Borough)
	if err != nil {
		return Filter{}, err
	}

	explicit := make([]string, 0, len(opts.Keywords))
	for i, k := range opts.Keywords {
		k, err := validate.RequiredString(fmt.Sprintf("keywords[%d]", i), k)
		if err != nil {
			return Filter{}, err
		}
		explicit = append(explicit, k)
	}
	kw := keywords.FromSlice(explicit)
	if strings.TrimSpace(opts.Resume) != "" && ex != nil {
		kw = keywords.Union(kw, ex.Extract(opts.Resume))
	}

	fullTime, err := validate.Bool("fullTime", opts.FullTime, false)
	if err != nil {
		return Filter{}, err
	}
	residency, err := validate.Bool("residency", opts.Residency, false)
	if err != nil {
		return Filter{}, err
	}
	minDate, err := validate.Date("minDate", opts.MinDate, DefaultMinDate)
	if err != nil {
		return Filter{}, err
	}
	minSalary, err := validate.NumberOr("minSalary", opts.MinSalary, DefaultMinSalary)
	if err != nil {
		return Filter{}, err
	}
	maxSalary, err := validate.NumberOr("maxSalary", opts.MaxSalary, DefaultMaxSalary)
	if err != nil {
		return Filter{}, err
	}
	page, err := validate.Page("page", opts.Page)
	if err != nil {
		return Filter{}, err
	}
	pageSize, err := validate.PageSize("pageSize", opts.PageSize)
	if err != nil {
		return Filter{}, err
	}
	tag, err := validate.Tag("jobTag", opts.JobTag)
	if err != nil {
		return Filter{}, err
	}

	return Filter{
		agency:    agency,
		title:     title,
		borough:   borough,
		keywords:  kw.Sorted(),
		fullTime:  fullTime,
		residency: residency,
		minDate:   minDate,
		minSalary: minSalary,
		maxSalary: maxSalary,
		page:      page,
		pageSize:  pageSize,
		userID:    strings.TrimSpace(opts.UserID),
		jobTag:    tag,
	}, nil
}

// Keywords returns the merged keyword set, sorted.
func (f Filter) Keywords() []string {
	out := make([]string, len(f.keywords))
	copy(out, f.keywords)
	return out
}

// Page returns the requested page before clamping to the result count.
func (f Filter) Page() int { return f.page }

// PageSize returns the clamped page size.
func (f Filter) PageSize() int { return f.pageSize }

// TagFilter reports the user-scoped restriction. ok is false unless both a
// user id and a job tag were supplied.
func (f Filter) TagFilter() (userID string, tag validate.Status, ok bool) {
	return f.userID, f.jobTag, f.userID != "" && f.jobTag != validate.StatusNone
}

// query compiles the filter into a store query. ids restricts the result
// when restrict is set.
func (f Filter) query(ids []string, restrict bool) storage.PostingQuery {
	minSalary, maxSalary := f.minSalary, f.maxSalary
	return storage.PostingQuery{
		Agency:           f.agency,
		Title:            f.title,
		Borough:          f.borough,
		RequireFullTime:  f.fullTime,
		RequireResidency: f.residency,
		MinSalary:        &minSalary,
		MaxSalary:        &maxSalary,
		MinDate:          f.minDate,
		Keywords:         f.Keywords(),
		RestrictIDs:      restrict,
		IDs:              ids,
	}
}
