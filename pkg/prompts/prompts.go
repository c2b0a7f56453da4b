// Package prompts holds the default Gemini prompt texts. The tagging prompts
// double as the tag vocabulary: every tag the model is allowed to emit must
// appear inside a {...} block, and ExtractAllowedTags builds the filter set
// from those blocks.
package prompts

import "regexp"

const VisualExtraction = `You are an assistant that extracts flashcards from lecture and textbook PDFs.
The PDF is attached. Identify every question/answer pair present in the document.

Return ONLY a valid JSON array, no markdown fences, no commentary.
Each element must be an object with these keys:
{
  "question_text": "the full question, verbatim where possible",
  "answer_text": "the full answer, verbatim where possible",
  "question_page": 12,
  "answer_page": 13,
  "relevant_question_image_pages": [12],
  "relevant_answer_image_pages": [13, 14]
}

Rules:
- Page numbers are 1-based and refer to the attached PDF.
- relevant_*_image_pages list every page whose figures or diagrams are needed
  to understand the question or answer; repeat the context page if it applies.
- Preserve clinical vignettes, lab values and units exactly.
- Do not invent pairs; skip pages with no question/answer content.
- Output must parse with a strict JSON parser.`

const BookProcessing = `You are an assistant that converts running textbook prose into flashcards.
A chunk of extracted text follows the instructions. Generate concise
question/answer pairs covering every testable fact in the chunk.

Return ONLY a valid JSON array, no markdown fences, no commentary.
Each element must be an object with exactly these keys:
{
  "question": "a single focused question",
  "answer": "the complete answer in one short paragraph"
}

Rules:
- One fact per card; split multi-part statements into separate pairs.
- Phrase questions so they can be answered without seeing the text.
- Keep mnemonics and numeric values from the source intact.
- Never refer to "the text", "the author" or "this chapter".
- Output must parse with a strict JSON parser.`

const BatchTagging = `You are a medical flashcard classifier. For every numbered item below, assign
the most specific applicable tags from the allowed list. Reply with one line
per item, formatted exactly as:

[1] #tag_one #tag_two
[2] #tag_three

Use only tags from the allowed list. If nothing fits, reply with the bare
item number. Do not add commentary.

Allowed subject tags:
{
#anatomy #physiology #biochemistry #pharmacology #pathology #microbiology
#immunology #genetics #embryology #histology #neuroscience #psychiatry
#cardiology #pulmonology #gastroenterology #nephrology #endocrinology
#hematology #oncology #rheumatology #dermatology #obgyn #pediatrics
#surgery #emergency_medicine #radiology #biostatistics #ethics
}

Allowed modifier tags:
{
#high_yield #mnemonic #clinical_vignette #lab_values #imaging #drug_of_choice
#mechanism #side_effects #diagnosis #treatment #screening #epidemiology
}`

// SecondPassTagging refines first-pass output: the prompt line for each item
// carries the tags chosen in pass one.
const SecondPassTagging = `You are reviewing tags previously assigned to medical flashcards. Each
numbered item shows the card and its initial tags. Correct mistakes, remove
tags that do not apply, and add missing ones. Reply with one line per item:

[1] #tag_one #tag_two

Use only tags from the allowed list. Keep correct initial tags. Do not add
commentary.

Allowed subject tags:
{
#anatomy #physiology #biochemistry #pharmacology #pathology #microbiology
#immunology #genetics #embryology #histology #neuroscience #psychiatry
#cardiology #pulmonology #gastroenterology #nephrology #endocrinology
#hematology #oncology #rheumatology #dermatology #obgyn #pediatrics
#surgery #emergency_medicine #radiology #biostatistics #ethics
}

Allowed modifier tags:
{
#high_yield #mnemonic #clinical_vignette #lab_values #imaging #drug_of_choice
#mechanism #side_effects #diagnosis #treatment #screening #epidemiology
}`

var (
	braceBlockRe = regexp.MustCompile(`\{[^{}]*\}`)
	tagRe        = regexp.MustCompile(`#[A-Za-z0-9_:\-]+`)
)

// ExtractAllowedTags collects every #tag inside {...} blocks of a tagging
// prompt. When the prompt has no blocks, the whole prompt is scanned so a
// hand-edited prompt without braces still produces a usable filter.
func ExtractAllowedTags(prompt string) map[string]struct{} {
	allowed := make(map[string]struct{})

	blocks := braceBlockRe.FindAllString(prompt, -1)
	if len(blocks) == 0 {
		blocks = []string{prompt}
	}
	for _, block := range blocks {
		for _, tag := range tagRe.FindAllString(block, -1) {
			if len(tag) > 1 {
				allowed[tag] = struct{}{}
			}
		}
	}
	return allowed
}
