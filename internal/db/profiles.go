package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-dashboard/internal/types"
)

// Profile store tables:
//
//	resume_analyses(user_id PK references users, analysis JSONB, updated_at)
//	job_history(id PK default gen_random_uuid(), user_id references users,
//	            title, company, link, date DATE, created_at)

// ReadAnalysis retrieves a user's latest résumé analysis. Returns nil if the
// user has no saved analysis.
func (db *DB) ReadAnalysis(ctx context.Context, userID uuid.UUID) (*types.ResumeAnalysis, error) {
	var raw []byte
	err := db.pool.QueryRow(ctx,
		`SELECT analysis FROM resume_analyses WHERE user_id = $1`,
		userID,
	).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, storeErr("read analysis", err)
	}

	var analysis types.ResumeAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, storeErr("read analysis", err)
	}
	return &analysis, nil
}

// WriteAnalysis saves a user's latest résumé analysis, fully overwriting any
// prior one. This is a replace, not a merge.
func (db *DB) WriteAnalysis(ctx context.Context, userID uuid.UUID, analysis *types.ResumeAnalysis) error {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return storeErr("write analysis", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO resume_analyses (user_id, analysis, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET analysis = $2, updated_at = NOW()`,
		userID, raw,
	)
	if err != nil {
		return storeErr("write analysis", err)
	}
	return nil
}

// ReadJobHistory retrieves all tracked jobs for a user, most recent date
// first. Ties on date are broken by creation time, newest first, so the
// ordering is stable across loads.
func (db *DB) ReadJobHistory(ctx context.Context, userID uuid.UUID) ([]types.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, title, company, link, date
		 FROM job_history
		 WHERE user_id = $1
		 ORDER BY date DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, storeErr("read job history", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		var job types.Job
		var date time.Time
		if err := rows.Scan(&job.ID, &job.Title, &job.Company, &job.Link, &date); err != nil {
			return nil, storeErr("read job history", err)
		}
		job.Date = date.Format("2006-01-02")
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read job history", err)
	}
	return jobs, nil
}

// AppendJob persists a new job entry for a user and returns the full record
// with its assigned ID. The date is stamped by the caller, not the store.
func (db *DB) AppendJob(ctx context.Context, userID uuid.UUID, draft types.JobDraft, date string) (*types.Job, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_history (user_id, title, company, link, date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		userID, draft.Title, draft.Company, draft.Link, date,
	).Scan(&id)
	if err != nil {
		return nil, storeErr("append job", err)
	}

	return &types.Job{
		ID:      id,
		Title:   draft.Title,
		Company: draft.Company,
		Link:    draft.Link,
		Date:    date,
	}, nil
}

// DeleteJob removes a job entry from a user's history. Deleting an ID that
// does not exist is a no-op, not an error.
func (db *DB) DeleteJob(ctx context.Context, userID, jobID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM job_history WHERE user_id = $1 AND id = $2`,
		userID, jobID,
	)
	if err != nil {
		return storeErr("delete job", err)
	}
	return nil
}
