package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// GetUser returns a user and their tagged jobs.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, "SELECT id, resume FROM users WHERE id = ?", id).Scan(&u.ID, &u.Resume)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, application_status, notes, confidence
		FROM user_tagged_jobs WHERE user_id = ? ORDER BY rowid`, id)
	if err != nil {
		return User{}, fmt.Errorf("loading tagged jobs for %s: %w", id, err)
	}
	defer rows.Close()

	u.TaggedJobs = []TaggedJob{}
	for rows.Next() {
		var tj TaggedJob
		if err := rows.Scan(&tj.JobID, &tj.ApplicationStatus, &tj.Notes, &tj.Confidence); err != nil {
			return User{}, err
		}
		u.TaggedJobs = append(u.TaggedJobs, tj)
	}
	return u, rows.Err()
}

// TaggedJobIDs returns the ids of the user's tagged jobs whose application
// status equals status, ignoring case. It returns ErrNotFound for an unknown
// user and an empty, non-nil slice when nothing matches.
func (s *Store) TaggedJobIDs(ctx context.Context, userID, status string) ([]string, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id = ?", userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", userID, err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	ids, err := s.queryStrings(ctx, `
		SELECT job_id FROM user_tagged_jobs
		WHERE user_id = ? AND lower(application_status) = lower(?)
		ORDER BY rowid`, userID, status)
	if err != nil {
		return nil, fmt.Errorf("loading tagged jobs for %s: %w", userID, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ReplaceUsers swaps the user dataset and all tagged jobs in one transaction.
func (s *Store) ReplaceUsers(ctx context.Context, users []User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning users import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_tagged_jobs"); err != nil {
		return fmt.Errorf("clearing tagged jobs: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users"); err != nil {
		return fmt.Errorf("clearing users: %w", err)
	}

	for _, u := range users {
		if _, err := tx.ExecContext(ctx, "INSERT INTO users (id, resume) VALUES (?, ?)", u.ID, u.Resume); err != nil {
			return fmt.Errorf("inserting user %s: %w", u.ID, err)
		}
		for _, tj := range u.TaggedJobs {
			confidence := tj.Confidence
			if confidence == 0 {
				confidence = 5
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO user_tagged_jobs (user_id, job_id, application_status, notes, confidence)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(user_id, job_id) DO UPDATE SET
					application_status = excluded.application_status,
					notes = excluded.notes,
					confidence = excluded.confidence`,
				u.ID, tj.JobID, tj.ApplicationStatus, tj.Notes, confidence); err != nil {
				return fmt.Errorf("inserting tagged job %s for %s: %w", tj.JobID, u.ID, err)
			}
		}
	}

	return tx.Commit()
}

// CountAllUsers returns the number of users.
func (s *Store) CountAllUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
