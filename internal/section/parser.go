package section

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// patternGroup holds the equivalent heading patterns for one canonical name.
// Groups are tried in declaration order; on equally long matches the earlier
// group wins.
type patternGroup struct {
	name     Name
	patterns []*regexp.Regexp
}

// Heading lines may carry a numbering prefix ("2. Methods") and trailing
// punctuation, and must occupy the whole line.
func headingPattern(p string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^\s*(?:\d+[.)]\s*)?(` + p + `)\s*[:.]?\s*$`)
}

func group(name Name, patterns ...string) patternGroup {
	g := patternGroup{name: name}
	for _, p := range patterns {
		g.patterns = append(g.patterns, headingPattern(p))
	}
	return g
}

var headingGroups = []patternGroup{
	group(NameObjective, `ABSTRACT`, `SUMMARY`),
	group(NameOther, `INTRODUCTION`, `BACKGROUND`),
	group(NameStudyDesign, `STUDY\s+DESIGN`),
	group(NameMethods, `MATERIALS?\s+AND\s+METHODS?`, `PATIENTS?\s+AND\s+METHODS?`, `METHODOLOGY`, `METHODS?`),
	group(NameResults, `RESULTS?`, `FINDINGS?`),
	group(NameDiscussion, `DISCUSSION`),
	group(NameLimitations, `STUDY\s+LIMITATIONS?`, `LIMITATIONS?`),
	group(NameConclusions, `CONCLUSIONS?`, `CONCLUDING\s+REMARKS?`),
	group(NameKeywords, `KEY\s?WORDS?`),
}

// ParseError reports that the minimum section structure (objective, methods
// or results) was not detected. Callers may still proceed with degraded
// input: Parse always returns at least one section.
type ParseError struct {
	Detected []Name
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("document structure not recognized: detected sections %v, none of objective/methods/results present", e.Detected)
}

// Parser classifies spans of raw text into named sections using the heading
// groups above. It is stateless and safe for concurrent use.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

type boundary struct {
	name         Name
	lineStart    int
	contentStart int
}

// Parse scans text for heading lines and returns the sections strictly
// between one recognized heading and the next. Text before the first heading
// becomes the objective section when it reads like an unlabeled abstract,
// otherwise unclassified. A duplicate heading appends its content to the
// first occurrence.
func (p *Parser) Parse(text string) map[Name]Section {
	boundaries := findBoundaries(text)

	sections := make(map[Name]Section)
	order := 0
	add := func(name Name, content string) {
		content = strings.TrimSpace(content)
		if existing, ok := sections[name]; ok {
			if content != "" {
				if existing.Content != "" {
					existing.Content += "\n\n" + content
				} else {
					existing.Content = content
				}
				sections[name] = existing
			}
			return
		}
		sections[name] = Section{Name: name, Content: content, Order: order}
		order++
	}

	if len(boundaries) == 0 {
		add(NameUnclassified, text)
		return sections
	}

	if preamble := strings.TrimSpace(text[:boundaries[0].lineStart]); preamble != "" {
		if boundaries[0].name != NameObjective && looksLikeAbstract(preamble) {
			add(NameObjective, preamble)
		} else {
			add(NameUnclassified, preamble)
		}
	}

	for i, b := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].lineStart
		}
		add(b.name, text[b.contentStart:end])
	}

	return sections
}

// Validate reports whether the minimum structure for meaningful extraction
// was detected: at least one of objective, methods, results with content.
func (p *Parser) Validate(sections map[Name]Section) bool {
	for _, name := range []Name{NameObjective, NameMethods, NameResults} {
		if sec, ok := sections[name]; ok && sec.Content != "" {
			return true
		}
	}
	return false
}

// RequireStructure returns a ParseError when Validate fails.
func (p *Parser) RequireStructure(sections map[Name]Section) error {
	if p.Validate(sections) {
		return nil
	}
	return &ParseError{Detected: p.Order(sections)}
}

// Order returns section names in document order (position of first
// occurrence), not pattern-declaration order.
func (p *Parser) Order(sections map[Name]Section) []Name {
	names := make([]Name, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return sections[names[i]].Order < sections[names[j]].Order
	})
	return names
}

func findBoundaries(text string) []boundary {
	var out []boundary
	pos := 0
	for pos <= len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var line string
		next := len(text)
		if lineEnd >= 0 {
			line = text[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		} else {
			line = text[pos:]
		}
		if name, ok := matchHeading(line); ok {
			out = append(out, boundary{name: name, lineStart: pos, contentStart: next})
		}
		if lineEnd < 0 {
			break
		}
		pos = next
	}
	return out
}

// matchHeading resolves ambiguity by longest-match-wins, then
// first-declared-group-wins on ties.
func matchHeading(line string) (Name, bool) {
	best := ""
	var bestName Name
	found := false
	for _, g := range headingGroups {
		for _, re := range g.patterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if !found || len(m[1]) > len(best) {
				best = m[1]
				bestName = g.name
				found = true
			}
		}
	}
	return bestName, found
}

// looksLikeAbstract guesses whether leading preamble text is an unlabeled
// abstract rather than a correspondence or affiliation block.
func looksLikeAbstract(text string) bool {
	if len(text) < 150 {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Count(lower, "@") > 1 {
		return false
	}
	if strings.Count(lower, "department") > 2 || strings.Count(lower, "university") > 3 {
		return false
	}
	return len(strings.Fields(text)) >= 30
}
