// Package ai provides the Gemini-backed analysis client: résumé analysis with
// a structured-output contract and free-text cover letter generation.
package ai

import "fmt"

// AnalysisError indicates the analysis service was unreachable or returned a
// response violating the required-field contract.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("failed to analyze resume: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// GenerationError indicates cover letter generation was unreachable or
// returned an unusable response.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate cover letter: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
