package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/job-dashboard/internal/types"
)

// analysisSchemaJSON is the contract the analysis response must satisfy:
// all three string arrays present.
const analysisSchemaJSON = `{
  "type": "object",
  "properties": {
    "skills":    {"type": "array", "items": {"type": "string"}},
    "jobTitles": {"type": "array", "items": {"type": "string"}},
    "keywords":  {"type": "array", "items": {"type": "string"}}
  },
  "required": ["skills", "jobTitles", "keywords"]
}`

// parseAnalysis validates the raw model output against the analysis schema
// and decodes it. Any violation is reported as a single error naming the
// offending fields.
func parseAnalysis(raw string) (*types.ResumeAnalysis, error) {
	raw = cleanJSONBlock(raw)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(analysisSchemaJSON),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("response violates analysis contract: %s", strings.Join(problems, "; "))
	}

	var analysis types.ResumeAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &analysis, nil
}

// cleanJSONBlock removes markdown code block wrappers from JSON.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
