// Package summary defines the structured output of a summarization run
// and its validation rules.
package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"paper-summarizer/internal/section"
)

// SafetyDisclaimer is attached to every generated summary.
const SafetyDisclaimer = "This summary is for academic research purposes only and does not constitute medical advice."

// StructuredSummary is the final product of a pipeline run.
type StructuredSummary struct {
	Title             string    `json:"title" validate:"required"`
	Objective         string    `json:"objective"`
	StudyType         string    `json:"study_type"`
	Population        string    `json:"population"`
	Methods           string    `json:"methods"`
	KeyFindings       []string  `json:"key_findings" validate:"required,min=1,dive,required"`
	Limitations       []string  `json:"limitations"`
	AuthorConclusions string    `json:"author_conclusions" validate:"required"`
	Keywords          []string  `json:"keywords"`
	GeneratedAt       time.Time `json:"generated_at"`
	ModelUsed         string    `json:"model_used"`
	SafetyDisclaimer  string    `json:"safety_disclaimer" validate:"required"`
}

var validate = validator.New()

// Validate checks the summary against its schema. Fields named in except
// are skipped, which lets a degraded run pass validation for gaps it has
// already flagged.
func (s *StructuredSummary) Validate(except ...string) error {
	var err error
	if len(except) == 0 {
		err = validate.Struct(s)
	} else {
		err = validate.StructExcept(s, except...)
	}
	if err != nil {
		return fmt.Errorf("summary validation failed: %w", err)
	}
	return nil
}

// NormalizeKeywords lowercases, trims and de-duplicates keywords while
// keeping their original order.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// ToMarkdown renders the summary as a readable document.
func (s *StructuredSummary) ToMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)

	writeField := func(heading, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", heading, value)
	}
	writeList := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}

	writeField("Objective", s.Objective)
	writeField("Study Type", s.StudyType)
	writeField("Population", s.Population)
	writeField("Methods", s.Methods)
	writeList("Key Findings", s.KeyFindings)
	writeList("Limitations", s.Limitations)
	writeField("Author Conclusions", s.AuthorConclusions)
	if len(s.Keywords) > 0 {
		fmt.Fprintf(&b, "## Keywords\n\n%s\n\n", strings.Join(s.Keywords, ", "))
	}

	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "*%s*\n\n", s.SafetyDisclaimer)
	if s.ModelUsed != "" {
		fmt.Fprintf(&b, "Generated by %s at %s\n", s.ModelUsed, s.GeneratedAt.Format(time.RFC3339))
	}
	return b.String()
}

// Metrics records what happened during a run alongside the summary
// itself: detected structure, per-section fan-out, and every degradation
// the pipeline chose to tolerate.
type Metrics struct {
	SectionsDetected  []section.Name       `json:"sections_detected"`
	StructureValid    bool                 `json:"structure_valid"`
	ChunksMapped      map[section.Name]int `json:"chunks_mapped,omitempty"`
	SkippedSections   []section.Name       `json:"skipped_sections,omitempty"`
	TruncatedSections []section.Name       `json:"truncated_sections,omitempty"`
	NumericMismatches []string             `json:"numeric_mismatches,omitempty"`
	SoftGaps          []string             `json:"soft_gaps,omitempty"`
	FallbackUsed      bool                 `json:"fallback_used"`
}
