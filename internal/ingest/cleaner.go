package ingest

import (
	"regexp"
	"strings"
)

// Cleaner strips extraction noise from paper text before parsing.
type Cleaner struct {
	RemoveReferences bool
	RemoveCaptions   bool
	// RemoveCitations strips inline citation markers. Off by default:
	// citations carry context the extraction prompts can use.
	RemoveCitations bool
}

// DefaultCleaner drops the references section and figure/table captions
// and keeps inline citations.
func DefaultCleaner() Cleaner {
	return Cleaner{RemoveReferences: true, RemoveCaptions: true}
}

var (
	referencesSection = regexp.MustCompile(`(?is)\n\s*(?:references|bibliography)\s*\n.*$`)

	captionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:figure|table)\s+\d+[.:][^\n]+`),
		regexp.MustCompile(`(?i)\(fig\.\s+\d+\)`),
		regexp.MustCompile(`(?i)\(table\s+\d+\)`),
	}

	citationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\[\d+(?:,\s*\d+)*\]`),
		regexp.MustCompile(`\(\w+\s+et\s+al\.,?\s+\d{4}\)`),
	}

	multiSpace   = regexp.MustCompile(` +`)
	multiNewline = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// Clean normalizes whitespace and removes the configured noise. Heading
// lines are preserved: the section parser depends on them.
func (c Cleaner) Clean(text string) string {
	if c.RemoveReferences {
		text = referencesSection.ReplaceAllString(text, "")
	}
	if c.RemoveCaptions {
		for _, p := range captionPatterns {
			text = p.ReplaceAllString(text, "")
		}
	}
	if c.RemoveCitations {
		for _, p := range citationPatterns {
			text = p.ReplaceAllString(text, "")
		}
	}

	text = multiSpace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if isPageArtifact(line) {
			continue
		}
		kept = append(kept, line)
	}
	text = strings.Join(kept, "\n")

	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

var pageLabel = regexp.MustCompile(`(?i)^\s*page\s+\d+(?:\s+of\s+\d+)?\s*$`)

// isPageArtifact matches bare page numbers and "Page N of M" footers.
// Short lines in general are kept: "RESULTS" is seven characters.
func isPageArtifact(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	if len(s) <= 3 {
		allDigits := true
		for _, r := range s {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			return true
		}
	}
	return pageLabel.MatchString(s)
}

var (
	metadataLine = regexp.MustCompile(`(?i)^(?:authors?|doi|published|volume|issue|pages?|received|accepted)[:|\s]`)
	headingLine  = regexp.MustCompile(`^[A-Z][A-Z\s]{2,}$`)
)

// ExtractTitle guesses the paper title from the first substantial lines
// of cleaned text, stopping at the first section heading. Returns ""
// when nothing plausible is found.
func ExtractTitle(text string) string {
	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if headingLine.MatchString(line) {
			break
		}
		candidates = append(candidates, line)
		if len(candidates) == 5 {
			break
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	best := ""
	for _, line := range candidates {
		if len(line) <= 20 || metadataLine.MatchString(line) {
			continue
		}
		if len(line) > len(best) {
			best = line
		}
	}
	if best != "" {
		return best
	}
	return candidates[0]
}
