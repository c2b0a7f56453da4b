// Package tsv turns parsed Gemini records into Anki-importable
// tab-separated files and writes the intermediate snapshots that make a
// partially failed run recoverable.
package tsv

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ankitagger/ankitagger/pkg/models"
)

// Column layout of the visual-extraction TSV.
var VisualHeader = models.Row{"Question", "QuestionMedia", "Answer", "AnswerMedia"}

// Column layout of the text-analysis TSV.
var TextAnalysisHeader = models.Row{"Question", "Answer"}

// priorityColumns come first in tagged output, in this order, when the
// records carry them.
var priorityColumns = []string{"Question", "question_text", "Answer", "answer_text", "Tags", "QuestionMedia", "AnswerMedia"}

// Cell flattens field text for a single TSV cell: newlines become <br> so
// Anki renders them, tabs become spaces so the column count survives.
func Cell(s string) string {
	s = strings.ReplaceAll(s, "\n", "<br>")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\t", " ")
}

// WriteRows writes header plus rows as tab-joined lines.
func WriteRows(path string, header models.Row, rows []models.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(f, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return nil
}

// SaveJSONSnapshot writes the accumulated records to
// <dir>/<base>_<step>_temp_results.json, overwriting the previous snapshot.
// The file is what a user recovers from after a mid-run failure.
func SaveJSONSnapshot(records []models.Record, dir, baseName, stepName string) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s_temp_results.json", baseName, stepName))
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// SaveRowsSnapshot is the TSV flavor of SaveJSONSnapshot.
func SaveRowsSnapshot(header models.Row, rows []models.Row, dir, baseName, stepName string) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s_temp_results.tsv", baseName, stepName))
	if err := WriteRows(path, header, rows); err != nil {
		return "", err
	}
	return path, nil
}

// LoadRecords reads a JSON array of records, the format both Gemini steps
// snapshot and the tagging step consumes.
func LoadRecords(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// VisualRecords flattens extraction records into the visual column set,
// resolving each record's context and relevant page references into <img>
// media cells. The page-number fields do not survive; the flattened records
// are what the tagging step and the final tagged TSV carry forward.
func VisualRecords(records []models.Record, pageImages map[int]string) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, rec := range records {
		qMedia := mediaTags(rec, pageImages, "question_page", "relevant_question_image_pages")
		aMedia := mediaTags(rec, pageImages, "answer_page", "relevant_answer_image_pages")
		out = append(out, models.Record{
			"Question":      rec.Question(),
			"QuestionMedia": strings.Join(qMedia, " "),
			"Answer":        rec.Answer(),
			"AnswerMedia":   strings.Join(aMedia, " "),
		})
	}
	return out
}

// GenerateVisual writes the visual Q&A TSV. pageImages maps 1-based page
// numbers to generated image filenames.
func GenerateVisual(records []models.Record, dir, baseName string, pageImages map[int]string) (string, error) {
	path := filepath.Join(dir, baseName+"_visual_anki.txt")

	rows := make([]models.Row, 0, len(records))
	for _, rec := range VisualRecords(records, pageImages) {
		rows = append(rows, models.Row{
			Cell(rec.String("Question")),
			rec.String("QuestionMedia"),
			Cell(rec.String("Answer")),
			rec.String("AnswerMedia"),
		})
	}

	if err := WriteRows(path, VisualHeader, rows); err != nil {
		return "", err
	}
	return path, nil
}

func mediaTags(rec models.Record, pageImages map[int]string, contextKey, relevantKey string) []string {
	seen := make(map[string]struct{})
	if page, ok := rec.Int(contextKey); ok {
		if name, ok := pageImages[page]; ok {
			seen[imgTag(name)] = struct{}{}
		}
	}
	for _, page := range rec.IntSlice(relevantKey) {
		if name, ok := pageImages[page]; ok {
			seen[imgTag(name)] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func imgTag(filename string) string {
	return fmt.Sprintf("<img src=%q>", filename)
}

// GenerateTextAnalysis writes the two-column Question/Answer TSV produced by
// the chunked book-processing step.
func GenerateTextAnalysis(records []models.Record, dir, baseName string) (string, error) {
	path := filepath.Join(dir, baseName+"_text_analysis.txt")

	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.Row{Cell(rec.Question()), Cell(rec.Answer())})
	}

	if err := WriteRows(path, TextAnalysisHeader, rows); err != nil {
		return "", err
	}
	return path, nil
}

// TaggedHeader derives the output column order for tagged records: known
// priority columns first, then the record's remaining keys sorted, with Tags
// always present.
func TaggedHeader(records []models.Record) models.Row {
	if len(records) == 0 {
		return models.Row{"Question", "Answer", "Tags"}
	}

	first := records[0]
	var header models.Row
	for _, col := range priorityColumns {
		if _, ok := first[col]; ok {
			header = append(header, col)
		}
	}
	var remaining []string
	for key := range first {
		if strings.HasPrefix(key, "_") || contains(header, key) || isPriority(key) {
			continue
		}
		remaining = append(remaining, key)
	}
	sort.Strings(remaining)
	header = append(header, remaining...)

	if !contains(header, "Tags") {
		header = append(header, "Tags")
	}
	return header
}

// GenerateTagged writes tagged records under the derived header.
func GenerateTagged(records []models.Record, path string) error {
	header := TaggedHeader(records)

	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		row := make(models.Row, 0, len(header))
		for _, col := range header {
			row = append(row, Cell(rec.String(col)))
		}
		rows = append(rows, row)
	}
	return WriteRows(path, header, rows)
}

func contains(row models.Row, s string) bool {
	for _, v := range row {
		if v == s {
			return true
		}
	}
	return false
}

func isPriority(key string) bool {
	for _, col := range priorityColumns {
		if col == key {
			return true
		}
	}
	return false
}
