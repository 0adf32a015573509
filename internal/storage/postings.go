package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// PostingQuery is the compiled form of a job search predicate.
type PostingQuery struct {
	// Agency and Title are case-insensitive substrings; empty matches all.
	Agency string
	Title  string
	// Borough is an exact canonical borough name; empty matches all.
	Borough string
	// RequireFullTime restricts to full-time postings. When false both kinds match.
	RequireFullTime bool
	// RequireResidency restricts to residency-required postings. When false both kinds match.
	RequireResidency bool
	// MinSalary and MaxSalary bound the salary inclusively; nil is unbounded.
	MinSalary *float64
	MaxSalary *float64
	MinDate   time.Time
	// Keywords must all be present on a matching posting.
	Keywords []string
	// When RestrictIDs is set only postings whose id is in IDs match. An empty
	// IDs list then matches nothing.
	RestrictIDs bool
	IDs         []string
}

func (q PostingQuery) where() (string, []any) {
	var conds []string
	var args []any

	if q.Agency != "" {
		conds = append(conds, `j.agency LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q.Agency))
	}
	if q.Title != "" {
		conds = append(conds, `j.title LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(q.Title))
	}
	if q.Borough != "" {
		conds = append(conds, "j.borough = ?")
		args = append(args, q.Borough)
	}
	if q.RequireFullTime {
		conds = append(conds, "j.full_time = 1")
	}
	if q.RequireResidency {
		conds = append(conds, "j.residency = 1")
	}
	if q.MinSalary != nil {
		conds = append(conds, "j.salary >= ?")
		args = append(args, *q.MinSalary)
	}
	if q.MaxSalary != nil {
		conds = append(conds, "j.salary <= ?")
		args = append(args, *q.MaxSalary)
	}
	if !q.MinDate.IsZero() {
		conds = append(conds, "j.posting_date >= ?")
		args = append(args, q.MinDate.Format(dateLayout))
	}
	if kw := dedupe(q.Keywords); len(kw) > 0 {
		conds = append(conds, `(SELECT COUNT(*) FROM open_job_keywords k
			WHERE k.job_id = j.id AND k.keyword IN (`+inClause(len(kw))+`)) = ?`)
		args = append(args, stringArgs(kw)...)
		args = append(args, len(kw))
	}
	if q.RestrictIDs {
		if len(q.IDs) == 0 {
			conds = append(conds, "1 = 0")
		} else {
			conds = append(conds, "j.id IN ("+inClause(len(q.IDs))+")")
			args = append(args, stringArgs(q.IDs)...)
		}
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

func dedupe(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	var out []string
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CountPostings returns the number of postings matching q.
func (s *Store) CountPostings(ctx context.Context, q PostingQuery) (int, error) {
	where, args := q.where()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM open_jobs j WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting postings: %w", err)
	}
	return n, nil
}

// ScoredPosting is a posting with its relevance score.
type ScoredPosting struct {
	JobPosting
	Score int `json:"score"`
}

const postingColumns = `j.id, j.agency, j.title, j.category, j.full_time, j.experience, j.borough,
	j.description, j.requirements, j.skills, j.residency, j.posting_date, j.salary, j.url`

// FindPostings returns one page of postings matching q, ranked by how many of
// rank each posting carries (descending). Equal scores keep import order.
func (s *Store) FindPostings(ctx context.Context, q PostingQuery, rank []string, offset, limit int) ([]ScoredPosting, error) {
	where, whereArgs := q.where()

	scoreExpr := "0"
	var args []any
	if r := dedupe(rank); len(r) > 0 {
		scoreExpr = `(SELECT COUNT(*) FROM open_job_keywords k
			WHERE k.job_id = j.id AND k.keyword IN (` + inClause(len(r)) + `))`
		args = append(args, stringArgs(r)...)
	}
	args = append(args, whereArgs...)
	args = append(args, limit, offset)

	query := `SELECT ` + postingColumns + `, ` + scoreExpr + ` AS score
		FROM open_jobs j
		WHERE ` + where + `
		ORDER BY score DESC, j.rowid ASC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding postings: %w", err)
	}
	defer rows.Close()

	var out []ScoredPosting
	for rows.Next() {
		var sp ScoredPosting
		if err := scanPosting(rows, &sp.JobPosting, &sp.Score); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding postings: %w", err)
	}

	for i := range out {
		kw, err := s.postingKeywords(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Keywords = kw
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(r rowScanner, p *JobPosting, extra ...any) error {
	var fullTime, residency int
	var postingDate string
	dest := []any{&p.ID, &p.Agency, &p.Title, &p.Category, &fullTime, &p.Experience, &p.Borough,
		&p.Description, &p.Requirements, &p.Skills, &residency, &postingDate, &p.Salary, &p.URL}
	dest = append(dest, extra...)
	if err := r.Scan(dest...); err != nil {
		return err
	}
	p.FullTime = fullTime != 0
	p.Residency = residency != 0
	t, err := time.Parse(dateLayout, postingDate)
	if err != nil {
		return fmt.Errorf("parsing posting_date for %s: %w", p.ID, err)
	}
	p.PostingDate = t
	return nil
}

func (s *Store) postingKeywords(ctx context.Context, id string) ([]string, error) {
	kw, err := s.queryStrings(ctx, "SELECT keyword FROM open_job_keywords WHERE job_id = ? ORDER BY keyword", id)
	if err != nil {
		return nil, fmt.Errorf("loading keywords for %s: %w", id, err)
	}
	if kw == nil {
		kw = []string{}
	}
	return kw, nil
}

// GetPosting returns a posting by id.
func (s *Store) GetPosting(ctx context.Context, id string) (JobPosting, error) {
	var p JobPosting
	row := s.db.QueryRowContext(ctx, "SELECT "+postingColumns+" FROM open_jobs j WHERE j.id = ?", id)
	if err := scanPosting(row, &p); err == sql.ErrNoRows {
		return JobPosting{}, ErrNotFound
	} else if err != nil {
		return JobPosting{}, err
	}
	kw, err := s.postingKeywords(ctx, id)
	if err != nil {
		return JobPosting{}, err
	}
	p.Keywords = kw
	return p, nil
}

// PostingTitles returns the distinct non-empty posting titles, sorted.
func (s *Store) PostingTitles(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT trim(title) AS t FROM open_jobs WHERE trim(title) <> '' ORDER BY t`)
}

// PostingAgencies returns the distinct non-empty posting agencies, sorted.
func (s *Store) PostingAgencies(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT trim(agency) AS a FROM open_jobs WHERE trim(agency) <> '' ORDER BY a`)
}

// PostingKeywords returns every distinct keyword carried by a posting.
func (s *Store) PostingKeywords(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT keyword FROM open_job_keywords ORDER BY keyword`)
}

// Listings returns every posting that has a URL, in import order.
func (s *Store) Listings(ctx context.Context) ([]Listing, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, url FROM open_jobs WHERE trim(url) <> '' ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("loading listings: %w", err)
	}
	defer rows.Close()

	var out []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.URL); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ReplacePostings swaps the whole postings dataset in one transaction.
func (s *Store) ReplacePostings(ctx context.Context, postings []JobPosting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning postings import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM open_job_keywords"); err != nil {
		return fmt.Errorf("clearing keywords: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM open_jobs"); err != nil {
		return fmt.Errorf("clearing postings: %w", err)
	}

	insJob, err := tx.PrepareContext(ctx, `
		INSERT INTO open_jobs (id, agency, title, category, full_time, experience, borough,
			description, requirements, skills, residency, posting_date, salary, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insJob.Close()

	insKw, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO open_job_keywords (job_id, keyword) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer insKw.Close()

	for _, p := range postings {
		if _, err := insJob.ExecContext(ctx, p.ID, p.Agency, p.Title, p.Category, boolInt(p.FullTime), p.Experience,
			p.Borough, p.Description, p.Requirements, p.Skills, boolInt(p.Residency),
			p.PostingDate.Format(dateLayout), p.Salary, p.URL); err != nil {
			return fmt.Errorf("inserting posting %s: %w", p.ID, err)
		}
		for _, kw := range p.Keywords {
			if _, err := insKw.ExecContext(ctx, p.ID, kw); err != nil {
				return fmt.Errorf("inserting keyword for %s: %w", p.ID, err)
			}
		}
	}

	return tx.Commit()
}

// CountAllPostings returns the size of the postings dataset.
func (s *Store) CountAllPostings(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM open_jobs").Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
