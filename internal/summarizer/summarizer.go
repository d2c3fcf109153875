// Package summarizer orchestrates the map-reduce summarization pipeline:
// section parsing, per-section chunked summarization, targeted extraction
// of structured fields and final assembly with validation.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"paper-summarizer/internal/chunker"
	"paper-summarizer/internal/llm"
	"paper-summarizer/internal/response"
	"paper-summarizer/internal/section"
	"paper-summarizer/internal/summary"
)

// ErrInsufficientContent means the run could not recover either key
// findings or author conclusions. One of the two may be missing and
// flagged; losing both leaves nothing worth returning.
var ErrInsufficientContent = errors.New("insufficient content: neither key findings nor author conclusions could be extracted")

// Config bounds a summarization run.
type Config struct {
	// MaxSectionChunks caps the map phase per section. Overflow text is
	// folded into the last mapped chunk rather than dropped.
	MaxSectionChunks int
	// MaxConcurrent limits section and chunk fan-out within a run.
	MaxConcurrent int
	RunTimeout    time.Duration
	// DirectTokenLimit is the size at or below which a section is
	// summarized in a single call instead of map-reduce.
	DirectTokenLimit int
	// PrimaryModel attributes fallback usage in the run metrics.
	PrimaryModel string
}

// Summarizer runs the full pipeline over a cleaned document.
type Summarizer struct {
	llm     llm.Client
	chunker *chunker.Chunker
	parser  *section.Parser
	cfg     Config
	log     *slog.Logger
}

// Result pairs the structured summary with the run metrics describing how
// it was produced and which degradations were tolerated.
type Result struct {
	Summary summary.StructuredSummary
	Metrics summary.Metrics
}

func New(client llm.Client, ch *chunker.Chunker, cfg Config, log *slog.Logger) *Summarizer {
	if cfg.MaxSectionChunks <= 0 {
		cfg.MaxSectionChunks = 20
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.DirectTokenLimit <= 0 {
		cfg.DirectTokenLimit = 2800
	}
	return &Summarizer{
		llm:     client,
		chunker: ch,
		parser:  section.NewParser(),
		cfg:     cfg,
		log:     log,
	}
}

// Summarize runs the pipeline over cleaned document text. A missing
// results or conclusions section degrades to a flagged gap; the run fails
// only on context expiry, validation failure or ErrInsufficientContent.
func (s *Summarizer) Summarize(ctx context.Context, text, title string) (Result, error) {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	sections := s.parser.Parse(text)
	st := &runState{metrics: summary.Metrics{
		SectionsDetected: s.parser.Order(sections),
		StructureValid:   true,
		ChunksMapped:     make(map[section.Name]int),
	}}

	if err := s.parser.RequireStructure(sections); err != nil {
		st.metrics.StructureValid = false
		s.log.Warn("document structure incomplete, proceeding degraded", "err", err)
	}

	summaries := s.summarizeAll(ctx, sections, st)
	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("summarization run aborted: %w", ctx.Err())
	}

	sum := summary.StructuredSummary{
		Title:            strings.TrimSpace(title),
		GeneratedAt:      time.Now().UTC(),
		SafetyDisclaimer: summary.SafetyDisclaimer,
	}
	if sum.Title == "" {
		sum.Title = "Untitled Paper"
	}

	s.extractMetadata(ctx, st, sections, &sum)
	sum.Methods = s.extractMethods(ctx, st, sections, summaries)
	sum.KeyFindings = s.extractFindings(ctx, st, summaries)
	sum.Limitations = s.extractLimitations(ctx, st, sections, summaries)
	sum.AuthorConclusions = s.extractConclusions(ctx, st, summaries)
	sum.Keywords = summary.NormalizeKeywords(s.extractKeywords(ctx, st, sections, text))

	if ctx.Err() != nil {
		return Result{}, fmt.Errorf("summarization run aborted: %w", ctx.Err())
	}

	if mismatches := response.NumericMismatches(sum.KeyFindings, text); len(mismatches) > 0 {
		s.log.Warn("findings contain numbers absent from the source", "numbers", mismatches)
		st.metrics.NumericMismatches = mismatches
	}

	var except []string
	if len(sum.KeyFindings) == 0 {
		st.gap("key_findings")
		except = append(except, "KeyFindings")
	}
	if sum.AuthorConclusions == "" {
		st.gap("author_conclusions")
		except = append(except, "AuthorConclusions")
	}
	if len(sum.KeyFindings) == 0 && sum.AuthorConclusions == "" {
		return Result{}, ErrInsufficientContent
	}

	sum.ModelUsed = st.majorityModel()
	st.metrics.FallbackUsed = st.usedOtherThan(s.cfg.PrimaryModel)

	if err := sum.Validate(except...); err != nil {
		return Result{}, err
	}
	return Result{Summary: sum, Metrics: st.metrics}, nil
}

// summarizeAll produces a summary per section concurrently. A failed
// section is skipped and recorded; the rest of the run continues.
func (s *Summarizer) summarizeAll(ctx context.Context, sections map[section.Name]section.Section, st *runState) map[section.Name]string {
	out := make(map[section.Name]string)
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	for name, sec := range sections {
		if name == section.NameKeywords {
			continue
		}
		g.Go(func() error {
			text, err := s.summarizeSection(ctx, sec, st)
			if err != nil {
				s.log.Error("skipping section after summarization failure", "section", name, "err", err)
				st.skip(name)
				return nil
			}
			mu.Lock()
			out[name] = text
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return out
}

func (s *Summarizer) summarizeSection(ctx context.Context, sec section.Section, st *runState) (string, error) {
	if s.chunker.CountTokens(sec.Content) <= s.cfg.DirectTokenLimit {
		st.mapped(sec.Name, 1)
		return s.complete(ctx, st, llm.Request{
			Prompt: chunkSummaryPrompt(string(sec.Name), sec.Content),
		})
	}

	chunks := s.chunker.Chunk(sec.Content)
	if len(chunks) > s.cfg.MaxSectionChunks {
		s.log.Warn("section exceeds chunk budget, folding overflow into last chunk",
			"section", sec.Name, "chunks", len(chunks), "budget", s.cfg.MaxSectionChunks)
		var overflow []string
		for _, c := range chunks[s.cfg.MaxSectionChunks:] {
			overflow = append(overflow, c.Text)
		}
		chunks = chunks[:s.cfg.MaxSectionChunks]
		chunks[len(chunks)-1].Text += "\n\n" + strings.Join(overflow, "\n\n")
		st.truncated(sec.Name)
	}
	st.mapped(sec.Name, len(chunks))

	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)
	for _, c := range chunks {
		g.Go(func() error {
			text, err := s.complete(gctx, st, llm.Request{
				Prompt: chunkSummaryPrompt(string(sec.Name), c.Text),
			})
			if err != nil {
				return fmt.Errorf("chunk %d of %s: %w", c.Index, sec.Name, err)
			}
			partials[c.Index] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if len(partials) == 1 {
		return partials[0], nil
	}
	return s.complete(ctx, st, llm.Request{
		Prompt: sectionSynthesisPrompt(string(sec.Name), partials),
	})
}

type paperMetadata struct {
	Objective  string `json:"objective"`
	StudyType  string `json:"study_type"`
	Population string `json:"population"`
}

// extractMetadata fills objective, study type and population from the
// abstract, introduction and the start of methods. Failure here leaves
// the fields empty rather than failing the run.
func (s *Summarizer) extractMetadata(ctx context.Context, st *runState, sections map[section.Name]section.Section, sum *summary.StructuredSummary) {
	var parts []string
	if sec, ok := sections[section.NameObjective]; ok && sec.Content != "" {
		parts = append(parts, sec.Content)
	} else if sec, ok := sections[section.NameUnclassified]; ok && sec.Content != "" {
		parts = append(parts, sec.Content)
	}
	if sec, ok := sections[section.NameOther]; ok && sec.Content != "" {
		parts = append(parts, s.chunker.TruncateToTokens(sec.Content, 1200))
	}
	if sec, ok := sections[section.NameMethods]; ok && sec.Content != "" {
		parts = append(parts, "METHODS:\n"+s.chunker.TruncateToTokens(sec.Content, 800))
	}
	if len(parts) == 0 {
		return
	}

	var meta paperMetadata
	err := s.completeInto(ctx, st, metadataPrompt(strings.Join(parts, "\n\n")), &meta)
	if err != nil {
		s.log.Error("metadata extraction failed", "err", err)
		return
	}
	sum.Objective = strings.TrimSpace(meta.Objective)
	sum.StudyType = strings.TrimSpace(meta.StudyType)
	sum.Population = strings.TrimSpace(meta.Population)
}

var leadingHeader = regexp.MustCompile(`^#+\s*[^\n]+\n*`)

func (s *Summarizer) extractMethods(ctx context.Context, st *runState, sections map[section.Name]section.Section, summaries map[section.Name]string) string {
	// Raw section content gives better detail than its summary when the
	// section fits the prompt budget.
	var source string
	if sec, ok := sections[section.NameMethods]; ok && sec.Content != "" {
		source = s.chunker.TruncateToTokens(sec.Content, 2000)
	} else {
		source = summaries[section.NameMethods]
	}
	if source == "" {
		return ""
	}
	text, err := s.complete(ctx, st, llm.Request{Prompt: methodsPrompt(source)})
	if err != nil {
		s.log.Error("methods extraction failed, using section summary", "err", err)
		return summaries[section.NameMethods]
	}
	return strings.TrimSpace(leadingHeader.ReplaceAllString(text, ""))
}

func (s *Summarizer) extractFindings(ctx context.Context, st *runState, summaries map[section.Name]string) []string {
	source := summaries[section.NameResults]
	if source == "" {
		source = summaries[section.NameDiscussion]
	}
	if source == "" {
		return nil
	}
	findings, err := s.completeList(ctx, st, findingsPrompt(source))
	if err != nil {
		s.log.Error("findings extraction failed", "err", err)
		return nil
	}
	return findings
}

func (s *Summarizer) extractLimitations(ctx context.Context, st *runState, sections map[section.Name]section.Section, summaries map[section.Name]string) []string {
	var source string
	if sec, ok := sections[section.NameLimitations]; ok && sec.Content != "" {
		source = sec.Content
	} else {
		source = summaries[section.NameDiscussion]
	}
	if source == "" {
		return nil
	}
	limitations, err := s.completeList(ctx, st, limitationsPrompt(source))
	if err != nil {
		s.log.Error("limitations extraction failed", "err", err)
		return nil
	}
	return limitations
}

func (s *Summarizer) extractConclusions(ctx context.Context, st *runState, summaries map[section.Name]string) string {
	source := summaries[section.NameConclusions]
	if source == "" {
		source = summaries[section.NameDiscussion]
	}
	if source == "" {
		return ""
	}
	text, err := s.complete(ctx, st, llm.Request{Prompt: conclusionsPrompt(source)})
	if err != nil {
		s.log.Error("conclusions extraction failed", "err", err)
		return ""
	}
	return text
}

func (s *Summarizer) extractKeywords(ctx context.Context, st *runState, sections map[section.Name]section.Section, text string) []string {
	source := ""
	if sec, ok := sections[section.NameKeywords]; ok {
		source = sec.Content
	}
	if source == "" {
		source = s.chunker.TruncateToTokens(text, 2000)
	}
	keywords, err := s.completeList(ctx, st, keywordsPrompt(source))
	if err != nil {
		s.log.Error("keyword extraction failed", "err", err)
		return nil
	}
	return keywords
}

// complete issues one model call with the shared system prompt and
// records which model answered.
func (s *Summarizer) complete(ctx context.Context, st *runState, req llm.Request) (string, error) {
	req.System = systemPrompt
	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	st.record(resp.Model)
	return strings.TrimSpace(resp.Text), nil
}

// completeList expects a JSON array of strings and re-prompts once when
// the response cannot be decoded.
func (s *Summarizer) completeList(ctx context.Context, st *runState, prompt string) ([]string, error) {
	raw, err := s.complete(ctx, st, llm.Request{Prompt: prompt, Temperature: 0.1, JSONMode: true})
	if err != nil {
		return nil, err
	}
	list, err := response.DecodeStringList(raw)
	var ferr *response.FormatError
	if !errors.As(err, &ferr) {
		return list, err
	}

	s.log.Warn("malformed list response, re-prompting once", "reason", ferr.Reason)
	raw, err = s.complete(ctx, st, llm.Request{Prompt: prompt, Temperature: 0.1, JSONMode: true})
	if err != nil {
		return nil, err
	}
	return response.DecodeStringList(raw)
}

// completeInto expects a JSON object matching v and re-prompts once on a
// malformed response.
func (s *Summarizer) completeInto(ctx context.Context, st *runState, prompt string, v any) error {
	raw, err := s.complete(ctx, st, llm.Request{Prompt: prompt, Temperature: 0.1, JSONMode: true})
	if err != nil {
		return err
	}
	err = response.Decode(raw, v)
	var ferr *response.FormatError
	if !errors.As(err, &ferr) {
		return err
	}

	s.log.Warn("malformed object response, re-prompting once", "reason", ferr.Reason)
	raw, err = s.complete(ctx, st, llm.Request{Prompt: prompt, Temperature: 0.1, JSONMode: true})
	if err != nil {
		return err
	}
	return response.Decode(raw, v)
}

// runState accumulates metrics and model attribution across the
// concurrent phases of one run.
type runState struct {
	mu      sync.Mutex
	metrics summary.Metrics
	models  map[string]int
	order   []string
}

func (r *runState) record(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.models == nil {
		r.models = make(map[string]int)
	}
	if _, ok := r.models[model]; !ok {
		r.order = append(r.order, model)
	}
	r.models[model]++
}

func (r *runState) skip(name section.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.SkippedSections = append(r.metrics.SkippedSections, name)
}

func (r *runState) truncated(name section.Name) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.TruncatedSections = append(r.metrics.TruncatedSections, name)
}

func (r *runState) mapped(name section.Name, chunks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics.ChunksMapped[name] = chunks
}

func (r *runState) gap(field string) {
	r.metrics.SoftGaps = append(r.metrics.SoftGaps, field)
}

// majorityModel is the model that answered the most calls, first seen
// winning ties.
func (r *runState) majorityModel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := ""
	for _, model := range r.order {
		if best == "" || r.models[model] > r.models[best] {
			best = model
		}
	}
	return best
}

func (r *runState) usedOtherThan(primary string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for model := range r.models {
		if model != primary {
			return true
		}
	}
	return false
}
