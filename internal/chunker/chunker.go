package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Options controls how text is chunked. Both values are expressed in the
// same length metric as CountTokens.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Chunk represents one length-bounded slice of a section's text. Adjacent
// chunks share Overlap tokens of trailing/leading context; the first chunk
// of a section always has Overlap 0.
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
	Overlap    int
}

// Chunker splits text into overlapping, sentence-bounded chunks.
type Chunker struct {
	opts Options
}

// New validates the invariant chunk_size > chunk_overlap >= 0.
func New(opts Options) (*Chunker, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must satisfy 0 <= overlap (%d) < size (%d)", opts.ChunkOverlap, opts.ChunkSize)
	}
	return &Chunker{opts: opts}, nil
}

// CountTokens approximates model tokens by whitespace-delimited words, the
// same metric the chunk size and overlap are configured in. Monotonic, zero
// for empty text, positive for non-empty text.
func (c *Chunker) CountTokens(text string) int {
	return len(strings.Fields(text))
}

// TruncateToTokens returns text cut down to at most max tokens.
func (c *Chunker) TruncateToTokens(text string, max int) string {
	fields := strings.Fields(text)
	if len(fields) <= max {
		return text
	}
	return strings.Join(fields[:max], " ")
}

// Chunk splits text into sentence-bounded chunks. Sentences accumulate
// greedily until adding the next one would exceed the chunk size; the next
// chunk restarts with the trailing sentences of the previous one whose
// cumulative length fits the configured overlap. A single sentence longer
// than the chunk size is emitted whole as its own oversized chunk rather
// than split mid-sentence.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.CountTokens(text) <= c.opts.ChunkSize {
		return []Chunk{{Index: 0, Text: strings.TrimSpace(text), TokenCount: c.CountTokens(text)}}
	}

	sentences := SplitSentences(text)
	var chunks []Chunk
	var current []string
	currentTokens := 0
	overlapTokens := 0

	for _, sentence := range sentences {
		n := c.CountTokens(sentence)
		if len(current) > 0 && currentTokens+n > c.opts.ChunkSize {
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				Text:       strings.Join(current, " "),
				TokenCount: currentTokens,
				Overlap:    overlapTokens,
			})

			// Re-include trailing sentences up to the overlap budget.
			var tail []string
			tailTokens := 0
			for i := len(current) - 1; i >= 0; i-- {
				st := c.CountTokens(current[i])
				if tailTokens+st > c.opts.ChunkOverlap {
					break
				}
				tail = append([]string{current[i]}, tail...)
				tailTokens += st
			}
			current = tail
			currentTokens = tailTokens
			overlapTokens = tailTokens
		}
		current = append(current, sentence)
		currentTokens += n
	}

	if len(current) > 0 {
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       strings.Join(current, " "),
			TokenCount: currentTokens,
			Overlap:    overlapTokens,
		})
	}
	return chunks
}

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]*\s+`)

// SplitSentences cuts text on sentence boundaries: terminal punctuation
// followed by whitespace and an uppercase letter. Newlines collapse to
// spaces first, so headings folded into a paragraph do not survive as
// separate lines.
func SplitSentences(text string) []string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return nil
	}

	var out []string
	prev := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(collapsed, -1) {
		rest := collapsed[loc[1]:]
		if rest == "" {
			break
		}
		r := []rune(rest)[0]
		if !unicode.IsUpper(r) && r != '(' {
			continue
		}
		if s := strings.TrimSpace(collapsed[prev:loc[1]]); s != "" {
			out = append(out, s)
		}
		prev = loc[1]
	}
	if s := strings.TrimSpace(collapsed[prev:]); s != "" {
		out = append(out, s)
	}
	return out
}
