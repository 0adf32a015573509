package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PayrollQuery filters payroll records. Zero fields do not filter.
type PayrollQuery struct {
	// Title is matched exactly.
	Title   string
	Agency  string
	Borough string
	// MinSalary matches a record when either its start or its end salary is at
	// least the bound.
	MinSalary *float64
	// YearFrom and YearTo select records whose span overlaps the window:
	// end_year >= YearFrom and start_year <= YearTo.
	YearFrom *int
	YearTo   *int
}

func (q PayrollQuery) where() (string, []any) {
	var conds []string
	var args []any

	if q.Title != "" {
		conds = append(conds, "title = ?")
		args = append(args, q.Title)
	}
	if q.Agency != "" {
		conds = append(conds, "agency = ?")
		args = append(args, q.Agency)
	}
	if q.Borough != "" {
		conds = append(conds, "borough = ?")
		args = append(args, q.Borough)
	}
	if q.MinSalary != nil {
		conds = append(conds, "(start_salary >= ? OR end_salary >= ?)")
		args = append(args, *q.MinSalary, *q.MinSalary)
	}
	if q.YearFrom != nil {
		conds = append(conds, "end_year >= ?")
		args = append(args, *q.YearFrom)
	}
	if q.YearTo != nil {
		conds = append(conds, "start_year <= ?")
		args = append(args, *q.YearTo)
	}
	if len(conds) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conds, " AND "), args
}

const payrollColumns = "id, title, agency, employee, borough, start_year, end_year, start_salary, end_salary"

// PayrollRecords returns the records matching q in import order.
func (s *Store) PayrollRecords(ctx context.Context, q PayrollQuery) ([]PayrollRecord, error) {
	where, args := q.where()
	recs, err := s.queryPayroll(ctx, "SELECT "+payrollColumns+" FROM payroll_jobs WHERE "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("loading payroll records: %w", err)
	}
	return recs, nil
}

// TransitionRecords returns the records, held under any other title, of
// every employee who ever held fromTitle. Blank employee ids never join.
func (s *Store) TransitionRecords(ctx context.Context, fromTitle string) ([]PayrollRecord, error) {
	recs, err := s.queryPayroll(ctx, `
		SELECT `+payrollColumns+` FROM payroll_jobs
		WHERE title <> ? AND employee IN (
			SELECT DISTINCT employee FROM payroll_jobs
			WHERE title = ? AND trim(employee) <> ''
		)
		ORDER BY rowid`, fromTitle, fromTitle)
	if err != nil {
		return nil, fmt.Errorf("loading transitions from %q: %w", fromTitle, err)
	}
	return recs, nil
}

func (s *Store) queryPayroll(ctx context.Context, query string, args ...any) ([]PayrollRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayrollRecord
	for rows.Next() {
		var r PayrollRecord
		var sy, ey sql.NullInt64
		var ss, es sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Title, &r.Agency, &r.Employee, &r.Borough, &sy, &ey, &ss, &es); err != nil {
			return nil, err
		}
		r.StartYear = nullInt(sy)
		r.EndYear = nullInt(ey)
		r.StartSalary = nullFloat(ss)
		r.EndSalary = nullFloat(es)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// PayrollTitles returns the distinct trimmed non-empty titles, sorted.
func (s *Store) PayrollTitles(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT trim(title) AS t FROM payroll_jobs WHERE trim(title) <> '' ORDER BY t`)
}

// PayrollAgencies returns the distinct non-empty agencies, sorted.
func (s *Store) PayrollAgencies(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT agency FROM payroll_jobs WHERE agency <> '' ORDER BY agency`)
}

// PayrollBoroughs returns the distinct non-empty boroughs, sorted.
func (s *Store) PayrollBoroughs(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT borough FROM payroll_jobs WHERE borough <> '' ORDER BY borough`)
}

// PayrollYears returns the union of start and end years strictly between
// 1900 and 2100, ascending.
func (s *Store) PayrollYears(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT y FROM (
			SELECT start_year AS y FROM payroll_jobs
			UNION
			SELECT end_year AS y FROM payroll_jobs
		)
		WHERE y IS NOT NULL AND y > 1900 AND y < 2100
		ORDER BY y`)
	if err != nil {
		return nil, fmt.Errorf("loading payroll years: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// ReplacePayroll swaps the whole payroll dataset in one transaction.
func (s *Store) ReplacePayroll(ctx context.Context, recs []PayrollRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning payroll import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM payroll_jobs"); err != nil {
		return fmt.Errorf("clearing payroll: %w", err)
	}

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO payroll_jobs (`+payrollColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, r := range recs {
		if _, err := ins.ExecContext(ctx, r.ID, r.Title, r.Agency, r.Employee, r.Borough,
			intArg(r.StartYear), intArg(r.EndYear), floatArg(r.StartSalary), floatArg(r.EndSalary)); err != nil {
			return fmt.Errorf("inserting payroll record %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// CountAllPayroll returns the size of the payroll dataset.
func (s *Store) CountAllPayroll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payroll_jobs").Scan(&n)
	return n, err
}

func intArg(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
