package links

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/job-dashboard/internal/types"
)

func TestSearchQueryOrdersTitlesBeforeSkills(t *testing.T) {
	analysis := &types.ResumeAnalysis{
		Skills:    []string{"Go", "PostgreSQL"},
		JobTitles: []string{"Backend Engineer"},
	}
	assert.Equal(t, "Backend Engineer Go PostgreSQL", SearchQuery(analysis))
	assert.Equal(t, "", SearchQuery(nil))
}

func TestBuildSearchLinks(t *testing.T) {
	analysis := &types.ResumeAnalysis{
		Skills:    []string{"Go"},
		JobTitles: []string{"Backend Engineer"},
	}
	got := BuildSearchLinks(analysis)

	assert.Equal(t, "https://www.linkedin.com/jobs/search/?keywords=Backend+Engineer+Go", got.LinkedIn)
	assert.Equal(t, "https://www.indeed.com/jobs?q=Backend+Engineer+Go", got.Indeed)
	assert.Equal(t, "https://www.naukri.com/backend-engineer-go-jobs", got.Naukri)
	assert.Equal(t, "https://www.google.com/search?q=Backend+Engineer+Go+jobs", got.Tracking)
}

func TestCompanyCareersLink(t *testing.T) {
	assert.Equal(t, "https://www.google.com/search?q=Acme+Corp+careers", CompanyCareersLink("Acme Corp"))
}
