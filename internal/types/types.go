// Package types provides type definitions for structured data shared across the job dashboard.
package types

import (
	"github.com/google/uuid"
)

// ResumeAnalysis is the AI-generated breakdown of a résumé: the candidate's
// top skills, potential job titles, and relevant keywords. At most one
// analysis is live per user at a time; a new analysis overwrites the prior
// one rather than versioning it.
type ResumeAnalysis struct {
	Skills    []string `json:"skills"`
	JobTitles []string `json:"jobTitles"`
	Keywords  []string `json:"keywords"`
}

// JobDraft is a job entry as submitted by a caller, before the profile store
// assigns an ID and the session stamps the date.
type JobDraft struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Link    string `json:"link"`
}

// Job is a tracked job entry in a user's history. ID is assigned by the
// profile store on creation, never by the client. Date is the local calendar
// date ("YYYY-MM-DD") at creation time.
type Job struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Company string    `json:"company"`
	Link    string    `json:"link"`
	Date    string    `json:"date"`
}
