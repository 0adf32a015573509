package storage

import (
	"errors"
	"math"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// JobPosting is an open job listing. Postings are immutable once imported.
type JobPosting struct {
	ID           string    `json:"id"`
	Agency       string    `json:"agency"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	FullTime     bool      `json:"fullTime"`
	Experience   string    `json:"experience"`
	Borough      string    `json:"borough"`
	Description  string    `json:"description"`
	Requirements string    `json:"requirements"`
	Skills       string    `json:"skills"`
	Residency    bool      `json:"residency"`
	PostingDate  time.Time `json:"postingDate"`
	Salary       int64     `json:"salary"`
	URL          string    `json:"url"`
	Keywords     []string  `json:"keywords"`
}

// PayrollRecord is one historical employment span from the public payroll.
type PayrollRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Agency      string   `json:"agency"`
	Employee    string   `json:"-"`
	Borough     string   `json:"borough"`
	StartYear   *int     `json:"startYear"`
	EndYear     *int     `json:"endYear"`
	StartSalary *float64 `json:"startSalary"`
	EndSalary   *float64 `json:"endSalary"`
}

// RepresentativeSalary is the mean of the start and end salary when both are
// finite, otherwise whichever one is finite. ok is false when neither is.
func (r PayrollRecord) RepresentativeSalary() (float64, bool) {
	s1, ok1 := finite(r.StartSalary)
	s2, ok2 := finite(r.EndSalary)
	switch {
	case ok1 && ok2:
		return (s1 + s2) / 2, true
	case ok1:
		return s1, true
	case ok2:
		return s2, true
	}
	return 0, false
}

func finite(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

// User owns a resume and a set of tagged jobs.
type User struct {
	ID         string      `json:"id"`
	Resume     string      `json:"resume"`
	TaggedJobs []TaggedJob `json:"taggedJobs"`
}

// TaggedJob is a user's note on a posting.
type TaggedJob struct {
	JobID             string `json:"jobId"`
	ApplicationStatus string `json:"applicationStatus"`
	Notes             string `json:"notes"`
	Confidence        int    `json:"confidence"`
}

// Listing is the part of a posting needed to link payroll titles to it.
type Listing struct {
	ID    string
	Title string
	URL   string
}
