package summarizer

import (
	"fmt"
	"strings"
)

// systemPrompt carries the extraction rules that apply to every call in a
// run. Faithfulness rules come first because models weight early
// instructions more heavily.
const systemPrompt = `You are an expert medical research analyst tasked with summarizing peer-reviewed medical research papers.

CRITICAL RULES - NEVER VIOLATE:
1. ACCURACY: Use ONLY information explicitly stated in the source text
2. NO INFERENCE: Do not infer, interpret, or extrapolate beyond what authors state
3. PRESERVE NUMBERS: Copy all numerical results, statistics, p-values, and confidence intervals EXACTLY as reported
4. NO CLINICAL ADVICE: Never provide medical advice, treatment recommendations, or clinical guidance
5. AUTHOR CONCLUSIONS ONLY: Only report conclusions explicitly stated by the authors
6. NO SPECULATION: Do not speculate about implications, mechanisms, or applications
7. ACKNOWLEDGE LIMITATIONS: Include all limitations mentioned by authors
8. NO CHERRY-PICKING: Represent the full picture, including negative or null results

Your role is to extract and condense information, not to interpret or advise.`

func chunkSummaryPrompt(sectionName, chunkText string) string {
	return fmt.Sprintf(`Summarize the following excerpt from the %s section of a medical research paper.

INSTRUCTIONS:
- Extract key information relevant to a %s section
- Preserve ALL numerical values, statistics, and measurements exactly
- Keep technical terminology
- Be concise but comprehensive
- If multiple findings, list them separately
- Do not add interpretation

TEXT:
%s

SUMMARY:`, sectionName, sectionName, chunkText)
}

func sectionSynthesisPrompt(sectionName string, partials []string) string {
	var b strings.Builder
	for i, p := range partials {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "CHUNK %d:\n%s", i+1, p)
	}
	return fmt.Sprintf(`You have %d summaries from different parts of the %s section. Combine them into a coherent summary.

INSTRUCTIONS:
- Merge overlapping information
- Preserve ALL numerical values exactly
- Maintain logical flow
- Eliminate redundancy
- Keep concise (max 300 words for most sections)
- Organize information logically

CHUNK SUMMARIES:
%s

COMBINED SUMMARY:`, len(partials), sectionName, b.String())
}

func metadataPrompt(text string) string {
	return fmt.Sprintf(`Extract the following metadata from this research paper text. The text may include abstract, introduction, and methods sections - extract from wherever the information appears.

1. **objective**: The stated aim or research question of the study, in one or two sentences.

2. **study_type**: Type of study. Look in both introduction and methods. Examples:
   - Clinical: RCT, cohort, case-control, cross-sectional, meta-analysis
   - Basic science: In vitro study, laboratory study, animal study, cell culture study, experimental study
   - Other: Systematic review, case series, observational study

3. **population**: Who or what was studied. Look in methods section if not in abstract:
   - For clinical studies: sample size, demographics, inclusion/exclusion criteria
   - For in vitro/lab studies: cell lines, materials, specimens
   - For animal studies: species, sample size

You MUST provide all fields. If not explicitly stated, infer the closest match from context.

TEXT:
%s

Respond ONLY with a JSON object (no markdown, no explanation):
{
  "objective": "...",
  "study_type": "...",
  "population": "..."
}`, text)
}

func methodsPrompt(text string) string {
	return fmt.Sprintf(`Summarize the methodology of this study in 2-4 sentences.

Include study design, interventions or procedures, measurements, and analysis approach where stated. Do not add interpretation or commentary.

METHODS:
%s

METHODS SUMMARY:`, text)
}

func findingsPrompt(resultsText string) string {
	return fmt.Sprintf(`Extract the key findings from the results section.

CRITICAL:
- List each distinct finding separately
- Include EXACT numerical values (means, SDs, p-values, CIs, effect sizes)
- Specify sample sizes if reported
- Include both positive and negative/null results
- Do not interpret or explain results

RESULTS SECTION:
%s

KEY FINDINGS (as JSON array of strings):
[
  "Finding 1 with exact numbers",
  "Finding 2 with exact numbers",
  ...
]`, resultsText)
}

func limitationsPrompt(text string) string {
	return fmt.Sprintf(`Extract the study limitations as stated by the authors.

List each limitation separately. Include only limitations explicitly mentioned in the text.

TEXT:
%s

LIMITATIONS (as JSON array of strings):
[
  "Limitation 1",
  "Limitation 2",
  ...
]

If no limitations are mentioned, respond with: []`, text)
}

func conclusionsPrompt(text string) string {
	return fmt.Sprintf(`Extract the authors' stated conclusions from the discussion/conclusion section.

CRITICAL:
- Use ONLY conclusions explicitly stated by the authors
- Do not infer or interpret
- Preserve the authors' hedging language (e.g., "suggests", "may indicate")
- Include important caveats they mention

DISCUSSION/CONCLUSION:
%s

AUTHOR CONCLUSIONS (1-2 sentences):`, text)
}

func keywordsPrompt(text string) string {
	return fmt.Sprintf(`Extract 5-8 key medical/scientific terms from this paper.

Focus on:
- Medical conditions/diseases
- Interventions/treatments
- Study type
- Primary outcomes
- Population characteristics

TEXT:
%s

KEYWORDS (as JSON array, lowercase):
["keyword1", "keyword2", ...]`, text)
}
