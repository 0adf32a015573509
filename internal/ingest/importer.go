// Package ingest loads the postings, payroll and user datasets from JSON
// exports into the record store and refreshes them on a schedule.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/careerscope/careerscope/internal/storage"
	"github.com/careerscope/careerscope/internal/validate"
	"github.com/google/uuid"
)

// Store is the write side of the record store used by imports.
type Store interface {
	ReplacePostings(ctx context.Context, postings []storage.JobPosting) error
	ReplacePayroll(ctx context.Context, recs []storage.PayrollRecord) error
	ReplaceUsers(ctx context.Context, users []storage.User) error
}

// Report counts the rows of one dataset import.
type Report struct {
	Dataset  string `json:"dataset"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
}

// Files names the JSON export of each dataset. Empty paths are skipped.
type Files struct {
	Postings string
	Payroll  string
	Users    string
}

// Importer converts raw exports into store records.
type Importer struct {
	store  Store
	logger *slog.Logger
	newID  func() string
}

// NewImporter creates an Importer writing to store.
func NewImporter(store Store) *Importer {
	return &Importer{
		store:  store,
		logger: slog.Default(),
		newID:  func() string { return uuid.New().String() },
	}
}

// ImportFiles imports every configured dataset. Each dataset is replaced in
// its own transaction; the first failure stops the run.
func (im *Importer) ImportFiles(ctx context.Context, files Files) ([]Report, error) {
	steps := []struct {
		path string
		run  func(context.Context, io.Reader) (Report, error)
	}{
		{files.Postings, im.ImportPostings},
		{files.Payroll, im.ImportPayroll},
		{files.Users, im.ImportUsers},
	}

	var reports []Report
	for _, st := range steps {
		if st.path == "" {
			continue
		}
		r, err := importFile(ctx, st.path, st.run)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func importFile(ctx context.Context, path string, run func(context.Context, io.Reader) (Report, error)) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	r, err := run(ctx, f)
	if err != nil {
		return Report{}, fmt.Errorf("importing %s: %w", path, err)
	}
	return r, nil
}

type rawPosting struct {
	JobID       any      `json:"jobId"`
	Agency      string   `json:"agency"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	FullTime    any      `json:"fullTime"`
	Experience  string   `json:"experience"`
	Borough     string   `json:"borough"`
	Desc        string   `json:"desc"`
	Reqs        string   `json:"reqs"`
	Skills      string   `json:"skills"`
	Residency   any      `json:"residency"`
	PostingDate string   `json:"postingDate"`
	Salary      any      `json:"salary"`
	URL         string   `json:"url"`
	Keywords    []string `json:"keywords"`
}

var postingDateLayouts = []string{
	validate.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"01/02/2006",
}

func parsePostingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range postingDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized posting date %q", s)
}

// ImportPostings replaces the postings dataset with the JSON array read from r.
// Rows with an invalid borough, salary or date, or a duplicate id, are skipped.
func (im *Importer) ImportPostings(ctx context.Context, r io.Reader) (Report, error) {
	var raw []rawPosting
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Report{}, fmt.Errorf("decoding postings: %w", err)
	}

	rep := Report{Dataset: "postings"}
	seen := make(map[string]bool, len(raw))
	postings := make([]storage.JobPosting, 0, len(raw))
	for n, rp := range raw {
		p, err := im.posting(rp)
		if err == nil && seen[p.ID] {
			err = fmt.Errorf("duplicate job id %s", p.ID)
		}
		if err != nil {
			rep.Skipped++
			im.logger.Warn("skipping posting", "row", n, "error", err)
			continue
		}
		seen[p.ID] = true
		postings = append(postings, p)
	}

	if err := im.store.ReplacePostings(ctx, postings); err != nil {
		return rep, err
	}
	rep.Imported = len(postings)
	return rep, nil
}

func (im *Importer) posting(rp rawPosting) (storage.JobPosting, error) {
	borough, err := validate.Borough("borough", sanitize(rp.Borough))
	if err != nil {
		return storage.JobPosting{}, err
	}
	salary, err := validate.NumberOr("salary", rp.Salary, 0, validate.AtLeast(0))
	if err != nil {
		return storage.JobPosting{}, err
	}
	date, err := parsePostingDate(rp.PostingDate)
	if err != nil {
		return storage.JobPosting{}, err
	}
	fullTime, err := validate.Bool("fullTime", rp.FullTime, false)
	if err != nil {
		return storage.JobPosting{}, err
	}
	residency, err := validate.Bool("residency", rp.Residency, false)
	if err != nil {
		return storage.JobPosting{}, err
	}

	id := idString(rp.JobID)
	if id == "" {
		id = im.newID()
	}
	var kw []string
	for _, k := range rp.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, k)
		}
	}

	return storage.JobPosting{
		ID:           id,
		Agency:       sanitize(rp.Agency),
		Title:        sanitize(rp.Title),
		Category:     sanitize(rp.Category),
		FullTime:     fullTime,
		Experience:   sanitize(rp.Experience),
		Borough:      borough,
		Description:  plainText(rp.Desc),
		Requirements: plainText(rp.Reqs),
		Skills:       plainText(rp.Skills),
		Residency:    residency,
		PostingDate:  date,
		Salary:       int64(math.Round(salary)),
		URL:          strings.TrimSpace(rp.URL),
		Keywords:     kw,
	}, nil
}

// idString renders a JSON id (string or number) as text.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	}
	return ""
}

type rawPayroll struct {
	Title       string `json:"title"`
	Agency      string `json:"agency"`
	Employee    any    `json:"employee"`
	Borough     string `json:"borough"`
	StartYear   any    `json:"startYear"`
	EndYear     any    `json:"endYear"`
	StartSalary any    `json:"startSalary"`
	EndSalary   any    `json:"endSalary"`
}

// ImportPayroll replaces the payroll dataset with the JSON array read from r.
// Unparseable or out-of-range years and salaries are stored as missing.
func (im *Importer) ImportPayroll(ctx context.Context, r io.Reader) (Report, error) {
	var raw []rawPayroll
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Report{}, fmt.Errorf("decoding payroll: %w", err)
	}

	rep := Report{Dataset: "payroll"}
	recs := make([]storage.PayrollRecord, 0, len(raw))
	for n, rp := range raw {
		title := sanitize(rp.Title)
		if title == "" {
			rep.Skipped++
			im.logger.Warn("skipping payroll record without title", "row", n)
			continue
		}
		borough := sanitize(rp.Borough)
		if canon, err := validate.Borough("borough", borough); err == nil {
			borough = canon
		}
		recs = append(recs, storage.PayrollRecord{
			ID:          im.newID(),
			Title:       title,
			Agency:      sanitize(rp.Agency),
			Employee:    idString(rp.Employee),
			Borough:     borough,
			StartYear:   lenientYear(rp.StartYear),
			EndYear:     lenientYear(rp.EndYear),
			StartSalary: lenientSalary(rp.StartSalary),
			EndSalary:   lenientSalary(rp.EndSalary),
		})
	}

	if err := im.store.ReplacePayroll(ctx, recs); err != nil {
		return rep, err
	}
	rep.Imported = len(recs)
	return rep, nil
}

func lenientYear(v any) *int {
	y, err := validate.Year("year", v)
	if err != nil {
		return nil
	}
	return y
}

func lenientSalary(v any) *float64 {
	s, err := validate.OptionalNumber("salary", v)
	if err != nil {
		return nil
	}
	return s
}

type rawUser struct {
	ID         any            `json:"id"`
	MongoID    any            `json:"_id"`
	Resume     string         `json:"resume"`
	TaggedJobs []rawTaggedJob `json:"taggedJobs"`
}

type rawTaggedJob struct {
	JobID             any    `json:"jobId"`
	ApplicationStatus string `json:"applicationStatus"`
	Notes             string `json:"notes"`
	Confidence        any    `json:"confidence"`
}

// ImportUsers replaces the users dataset with the JSON array read from r.
// Invalid tagged jobs are dropped and counted as skipped.
func (im *Importer) ImportUsers(ctx context.Context, r io.Reader) (Report, error) {
	var raw []rawUser
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Report{}, fmt.Errorf("decoding users: %w", err)
	}

	rep := Report{Dataset: "users"}
	users := make([]storage.User, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for n, ru := range raw {
		id := idString(ru.ID)
		if id == "" {
			id = idString(ru.MongoID)
		}
		if id == "" {
			id = im.newID()
		}
		if seen[id] {
			rep.Skipped++
			im.logger.Warn("skipping duplicate user", "row", n, "id", id)
			continue
		}
		seen[id] = true

		u := storage.User{ID: id, Resume: sanitizeResume(ru.Resume), TaggedJobs: []storage.TaggedJob{}}
		for _, rt := range ru.TaggedJobs {
			tj, err := taggedJob(rt)
			if err != nil {
				rep.Skipped++
				im.logger.Warn("skipping tagged job", "user", id, "error", err)
				continue
			}
			u.TaggedJobs = append(u.TaggedJobs, tj)
		}
		users = append(users, u)
	}

	if err := im.store.ReplaceUsers(ctx, users); err != nil {
		return rep, err
	}
	rep.Imported = len(users)
	return rep, nil
}

// sanitizeResume keeps line structure so keyword extraction still splits words.
func sanitizeResume(s string) string {
	lines := strings.Split(s, "\n")
	for n, l := range lines {
		lines[n] = sanitize(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func taggedJob(rt rawTaggedJob) (storage.TaggedJob, error) {
	status, err := validate.Tag("applicationStatus", rt.ApplicationStatus)
	if err != nil {
		return storage.TaggedJob{}, err
	}
	confidence, err := validate.NumberOr("confidence", rt.Confidence, 5)
	if err != nil {
		return storage.TaggedJob{}, err
	}
	if confidence != math.Trunc(confidence) {
		return storage.TaggedJob{}, fmt.Errorf("confidence %v is not a whole number", confidence)
	}
	tj := storage.TaggedJob{
		JobID:             idString(rt.JobID),
		ApplicationStatus: string(status),
		Notes:             strings.TrimSpace(rt.Notes),
		Confidence:        int(confidence),
	}
	if err := validate.TaggedJob(validate.TaggedJobFields{
		JobID:      tj.JobID,
		Notes:      tj.Notes,
		Confidence: tj.Confidence,
	}); err != nil {
		return storage.TaggedJob{}, err
	}
	return tj, nil
}
