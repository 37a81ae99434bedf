// Package ingest converts uploaded résumé files into plain text.
package ingest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Error describes a failed résumé conversion.
type Error struct {
	Filename string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.Filename, e.Message, e.Cause)
	}
	return fmt.Sprintf("ingest %s: %s", e.Filename, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// SupportedExtension reports whether the filename can be converted.
func SupportedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

// ResumeText converts an uploaded résumé to plain text. Text and markdown
// pass through unchanged apart from whitespace normalization; HTML is
// stripped down to its visible text.
func ResumeText(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var text string
	switch ext {
	case ".txt", ".md":
		text = string(content)
	case ".html", ".htm":
		stripped, err := stripHTML(string(content))
		if err != nil {
			return "", &Error{Filename: filename, Message: "failed to parse HTML", Cause: err}
		}
		text = stripped
	default:
		return "", &Error{Filename: filename, Message: fmt.Sprintf("unsupported file type %q", ext)}
	}

	text = cleanWhitespace(text)
	if text == "" {
		return "", &Error{Filename: filename, Message: "file contains no text"}
	}
	return text, nil
}

// stripHTML extracts visible text, dropping script/style and page chrome.
func stripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Text(), nil
	}

	var parts []string
	body.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return body.Text(), nil
	}
	return strings.Join(parts, "\n"), nil
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// cleanWhitespace normalizes line endings, trims each line, and collapses
// runs of blank lines.
func cleanWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
