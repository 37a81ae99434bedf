package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/job-dashboard/internal/types"
)

// defaultModel is the Gemini model used for both operations.
const defaultModel = "gemini-2.5-flash"

// Client is an abstraction over the AI text-generation service.
type Client interface {
	// AnalyzeResume transforms raw résumé text into a structured analysis.
	// One attempt per call; no retry.
	AnalyzeResume(ctx context.Context, resumeText string) (*types.ResumeAnalysis, error)
	// GenerateCoverLetter drafts free-text cover letter content for the given
	// job title and company, tailored to the analysis's skills. Output is
	// non-deterministic across calls.
	GenerateCoverLetter(ctx context.Context, jobTitle, companyName string, analysis *types.ResumeAnalysis) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// Ensure GeminiClient implements Client
var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: defaultModel}, nil
}

// AnalyzeResume sends the résumé text with a JSON response schema requiring
// skills, jobTitles, and keywords, and decodes the result.
func (c *GeminiClient) AnalyzeResume(ctx context.Context, resumeText string) (*types.ResumeAnalysis, error) {
	model := c.client.GenerativeModel(c.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"skills": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "A list of the top 5 most prominent skills.",
			},
			"jobTitles": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "A list of 3 potential job titles suitable for the candidate.",
			},
			"keywords": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "A list of 10 relevant keywords and technologies found in the resume.",
			},
		},
		Required: []string{"skills", "jobTitles", "keywords"},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(analyzePrompt(resumeText)))
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}

	analysis, err := parseAnalysis(text)
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}
	return analysis, nil
}

// GenerateCoverLetter sends the cover letter prompt with a fixed sampling
// temperature and returns the trimmed prose.
func (c *GeminiClient) GenerateCoverLetter(ctx context.Context, jobTitle, companyName string, analysis *types.ResumeAnalysis) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.7)
	model.SetTopP(0.95)

	resp, err := model.GenerateContent(ctx, genai.Text(coverLetterPrompt(jobTitle, companyName, analysis)))
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	return strings.TrimSpace(text), nil
}

// Close releases resources held by the client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse extracts text from a Gemini API response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}
