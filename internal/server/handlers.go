package server

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/job-dashboard/internal/identity"
	"github.com/jonathan/job-dashboard/internal/ingest"
	"github.com/jonathan/job-dashboard/internal/links"
	"github.com/jonathan/job-dashboard/internal/server/middleware"
	"github.com/jonathan/job-dashboard/internal/types"
)

// maxUploadSize limits résumé uploads to 2 MB.
const maxUploadSize = 2 << 20

// sessionUser checks that the token's user is the one signed in to the
// identity session. A mismatch means the token belongs to a previous or
// different sign-in.
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	current := s.identity.Current()
	if current == nil || current.ID != userID {
		s.errorResponse(w, http.StatusUnauthorized, "Token does not match the signed-in user")
		return nil, false
	}
	return current, true
}

// handleGetSession returns the current session snapshot.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, s.store.Snapshot())
}

// handleSessionStream streams session snapshots as Server-Sent Events, one
// per state change, starting with the current snapshot.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	snapshots, cancel := s.store.Watch()
	defer cancel()

	if err := sse.WriteEvent("snapshot", s.store.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := sse.WriteEvent("snapshot", snap); err != nil {
				return
			}
		}
	}
}

// AnalyzeRequest is the request body for POST /analyze.
type AnalyzeRequest struct {
	ResumeText string `json:"resume_text"`
}

// handleAnalyze runs the résumé analysis and stores the result.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.analyzeText(w, r, req.ResumeText)
}

// handleAnalyzeUpload accepts a multipart résumé file, converts it to text,
// and runs the same analysis path as /analyze.
func (s *Server) handleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Missing resume file")
		return
	}
	defer file.Close()

	if !ingest.SupportedExtension(header.Filename) {
		s.errorResponse(w, http.StatusBadRequest, "Unsupported file type; use .txt, .md, or .html")
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Failed to read resume file")
		return
	}

	text, err := ingest.ResumeText(header.Filename, content)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	s.analyzeText(w, r, text)
}

// analyzeText is the shared analysis path. Empty input is rejected before the
// AI client is called. On AI failure the in-memory analysis is cleared
// locally; the remote copy is untouched.
func (s *Server) analyzeText(w http.ResponseWriter, r *http.Request, resumeText string) {
	if strings.TrimSpace(resumeText) == "" {
		s.errorResponse(w, http.StatusBadRequest, "Resume text must not be empty")
		return
	}

	analysis, err := s.ai.AnalyzeResume(r.Context(), resumeText)
	if err != nil {
		log.Printf("[server] resume analysis failed: %v", err)
		if clearErr := s.store.SetResumeAnalysis(r.Context(), nil); clearErr != nil {
			log.Printf("[server] failed to clear analysis: %v", clearErr)
		}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	if err := s.store.SetResumeAnalysis(r.Context(), analysis); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to save analysis")
		return
	}

	s.jsonResponse(w, http.StatusOK, analysis)
}

// CoverLetterRequest is the request body for POST /cover-letter.
type CoverLetterRequest struct {
	JobTitle string `json:"job_title"`
	Company  string `json:"company"`
}

// CoverLetterResponse carries the generated letter and the history record
// created for it.
type CoverLetterResponse struct {
	CoverLetter string     `json:"cover_letter"`
	Job         *types.Job `json:"job,omitempty"`
}

// handleCoverLetter generates a cover letter for a job and records the job in
// the history.
func (s *Server) handleCoverLetter(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}

	var req CoverLetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.JobTitle) == "" || strings.TrimSpace(req.Company) == "" {
		s.errorResponse(w, http.StatusBadRequest, "job_title and company are required")
		return
	}

	analysis := s.store.ResumeAnalysis()
	if analysis == nil {
		err := &ErrNoAnalysis{}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	letter, err := s.ai.GenerateCoverLetter(r.Context(), req.JobTitle, req.Company, analysis)
	if err != nil {
		log.Printf("[server] cover letter generation failed: %v", err)
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	// The history record is best-effort; a failed write must not lose the
	// generated letter.
	job, err := s.store.AddJobToHistory(r.Context(), types.JobDraft{
		Title:   req.JobTitle,
		Company: req.Company,
		Link:    links.CompanyCareersLink(req.Company),
	})
	if err != nil {
		log.Printf("[server] failed to record job in history: %v", err)
	}

	s.jsonResponse(w, http.StatusOK, CoverLetterResponse{CoverLetter: letter, Job: job})
}

// JobSearchResponse carries the job-site URLs and the history record created
// for the search.
type JobSearchResponse struct {
	Links links.SearchLinks `json:"links"`
	Job   *types.Job        `json:"job,omitempty"`
}

// handleJobSearch builds job-site search URLs from the analysis and records
// the search in the history.
func (s *Server) handleJobSearch(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}

	analysis := s.store.ResumeAnalysis()
	if analysis == nil {
		err := &ErrNoAnalysis{}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	searchLinks := links.BuildSearchLinks(analysis)

	title := "General Job Search"
	if len(analysis.JobTitles) > 0 {
		title = analysis.JobTitles[0]
	}
	job, err := s.store.AddJobToHistory(r.Context(), types.JobDraft{
		Title:   title,
		Company: "Multiple Job Sites",
		Link:    searchLinks.Tracking,
	})
	if err != nil {
		log.Printf("[server] failed to record job search in history: %v", err)
	}

	s.jsonResponse(w, http.StatusOK, JobSearchResponse{Links: searchLinks, Job: job})
}

// handleHistory returns the in-memory job history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string][]types.Job{"job_history": s.store.JobHistory()})
}

// handleDeleteHistory removes one job from the history.
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if err := s.store.DeleteJobFromHistory(r.Context(), id); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExportHistory writes the job history as a CSV download.
func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionUser(w, r); !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="job_history.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Job Title", "Company", "Date", "Link"}); err != nil {
		return
	}
	for _, job := range s.store.JobHistory() {
		if err := cw.Write([]string{job.Title, job.Company, job.Date, job.Link}); err != nil {
			return
		}
	}
	cw.Flush()
}
