package anki

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ankitagger/ankitagger/internal/tsv"
	"github.com/ankitagger/ankitagger/pkg/models"
)

// UntaggedMarker in IncludeTags selects notes with no tags at all
// (AnkiConnect's tag:none).
const UntaggedMarker = "untagged"

// ExportOptions selects which notes leave Anki and which fields each TSV
// row carries, in order.
type ExportOptions struct {
	Deck        string
	IncludeTags []string
	ExcludeTags []string
	Fields      []string
}

var htmlTagRe = regexp.MustCompile(`<[^<]+?>`)

// BuildQuery assembles the AnkiConnect search string: deck scope, included
// tags OR-ed together (with the untagged marker translated to tag:none),
// excluded tags negated.
func BuildQuery(opts ExportOptions) string {
	query := fmt.Sprintf("deck:%q", opts.Deck)

	var include []string
	for _, tag := range opts.IncludeTags {
		if tag == UntaggedMarker {
			include = append(include, "tag:none")
		} else {
			include = append(include, fmt.Sprintf("tag:%q", tag))
		}
	}
	if len(include) == 1 {
		query += " " + include[0]
	} else if len(include) > 1 {
		query += " (" + strings.Join(include, " OR ") + ")"
	}

	for _, tag := range opts.ExcludeTags {
		query += fmt.Sprintf(" -tag:%q", tag)
	}

	return query
}

// CleanFieldValue strips HTML and flattens whitespace so a field fits one
// TSV cell.
func CleanFieldValue(value string) string {
	value = htmlTagRe.ReplaceAllString(value, "")
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	return strings.TrimSpace(value)
}

// NotesToRows converts notes to TSV rows under the selected field order. A
// note missing a field still yields a cell, so the column count stays
// consistent.
func NotesToRows(notes []NoteInfo, fields []string) []models.Row {
	rows := make([]models.Row, 0, len(notes))
	for _, note := range notes {
		if note.Fields == nil {
			continue
		}
		row := make(models.Row, 0, len(fields))
		for _, field := range fields {
			row = append(row, CleanFieldValue(note.Fields[field].Value))
		}
		rows = append(rows, row)
	}
	return rows
}

// ExportNotes runs the full export: query, fetch, clean, write. It returns
// the number of exported rows.
func (s *Service) ExportNotes(opts ExportOptions, outputPath string) (int, error) {
	if opts.Deck == "" {
		return 0, fmt.Errorf("no deck selected")
	}
	if len(opts.Fields) == 0 {
		return 0, fmt.Errorf("no fields selected")
	}

	query := BuildQuery(opts)
	s.logger.Debug("Anki query: %s", query)

	noteIDs, err := s.FindNotes(query)
	if err != nil {
		return 0, err
	}
	if len(noteIDs) == 0 {
		return 0, fmt.Errorf("no notes found matching criteria")
	}

	notes, err := s.NotesInfo(noteIDs)
	if err != nil {
		return 0, err
	}

	rows := NotesToRows(notes, opts.Fields)
	header := make(models.Row, len(opts.Fields))
	copy(header, opts.Fields)
	if err := tsv.WriteRows(outputPath, header, rows); err != nil {
		return 0, err
	}

	s.logger.Info("Exported %d notes to %s", len(rows), outputPath)
	return len(rows), nil
}

// FieldsForDeck resolves the field list of the note type used by the first
// note in deck. Mixed-model decks follow the first note, matching what the
// export UI shows.
func (s *Service) FieldsForDeck(deck string, snapshot *Snapshot) ([]string, error) {
	noteIDs, err := s.FindNotes(fmt.Sprintf("deck:%q", deck))
	if err != nil {
		return nil, err
	}
	if len(noteIDs) == 0 {
		return nil, nil
	}

	notes, err := s.NotesInfo(noteIDs[:1])
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("could not retrieve note information")
	}

	model := notes[0].ModelName
	fields, ok := snapshot.NoteTypes[model]
	if !ok {
		return nil, fmt.Errorf("unknown note type %q for deck %q", model, deck)
	}
	return fields, nil
}
