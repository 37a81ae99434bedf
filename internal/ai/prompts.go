package ai

import (
	"fmt"
	"strings"

	"github.com/jonathan/job-dashboard/internal/types"
)

const analyzeInstruction = `Analyze the following resume text and extract the top 5 skills, 3 potential job titles, and 10 relevant keywords. Focus on technical skills and professional roles.`

// analyzePrompt builds the résumé analysis prompt.
func analyzePrompt(resumeText string) string {
	return fmt.Sprintf("%s\n\nResume: %s", analyzeInstruction, resumeText)
}

// coverLetterPrompt builds the cover letter prompt from the job title,
// company name, and the skill list of the current analysis.
func coverLetterPrompt(jobTitle, companyName string, analysis *types.ResumeAnalysis) string {
	skills := strings.Join(analysis.Skills, ", ")
	return fmt.Sprintf(`Write a professional and compelling cover letter for a candidate applying for the '%s' position at '%s'. The candidate's key skills are: %s. The letter should be enthusiastic, concise, and tailored to the role. Do not include placeholders like "[Your Name]" or "[Date]".`,
		jobTitle, companyName, skills)
}
