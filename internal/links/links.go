// Package links builds external job-site search URLs from a résumé analysis.
package links

import (
	"net/url"
	"strings"

	"github.com/jonathan/job-dashboard/internal/types"
)

// SearchLinks are the per-site search URLs opened for one search, plus the
// tracking link recorded in the job history.
type SearchLinks struct {
	LinkedIn string `json:"linkedin"`
	Indeed   string `json:"indeed"`
	Naukri   string `json:"naukri"`
	Tracking string `json:"tracking"`
}

// SearchQuery joins the analysis job titles and skills into one search query,
// titles first.
func SearchQuery(analysis *types.ResumeAnalysis) string {
	if analysis == nil {
		return ""
	}
	terms := make([]string, 0, len(analysis.JobTitles)+len(analysis.Skills))
	terms = append(terms, analysis.JobTitles...)
	terms = append(terms, analysis.Skills...)
	return strings.Join(terms, " ")
}

// BuildSearchLinks derives the job-site URLs for the analysis. Naukri uses a
// lowercase hyphenated slug instead of a query parameter.
func BuildSearchLinks(analysis *types.ResumeAnalysis) SearchLinks {
	query := SearchQuery(analysis)
	encoded := url.QueryEscape(query)
	slug := strings.ToLower(strings.Join(strings.Fields(query), "-"))

	return SearchLinks{
		LinkedIn: "https://www.linkedin.com/jobs/search/?keywords=" + encoded,
		Indeed:   "https://www.indeed.com/jobs?q=" + encoded,
		Naukri:   "https://www.naukri.com/" + slug + "-jobs",
		Tracking: "https://www.google.com/search?q=" + encoded + "+jobs",
	}
}

// CompanyCareersLink is the tracking link recorded when a cover letter is
// generated for a company.
func CompanyCareersLink(company string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(company+" careers")
}
