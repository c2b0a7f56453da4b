package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ankitagger/ankitagger/pkg/models"
)

// StripCodeFences removes a leading ```json (or bare ```) fence and a
// trailing ``` from a model reply. Models wrap JSON in fences even when
// asked not to.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// ParseRecordArray decodes a JSON array of records. On a decode failure it
// strips code fences and tries once more.
func ParseRecordArray(raw string) ([]models.Record, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var records []models.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		cleaned := StripCodeFences(raw)
		if cleaned == raw {
			return nil, fmt.Errorf("reply is not a JSON array: %w", err)
		}
		if err2 := json.Unmarshal([]byte(cleaned), &records); err2 != nil {
			return nil, fmt.Errorf("reply is not a JSON array even after stripping fences: %w", err2)
		}
	}
	return records, nil
}

// FilterQA keeps records that carry both a question and an answer and
// reports how many were dropped.
func FilterQA(records []models.Record) (valid []models.Record, dropped int) {
	for _, rec := range records {
		if rec.Question() != "" && rec.Answer() != "" {
			valid = append(valid, rec)
		} else {
			dropped++
		}
	}
	return valid, dropped
}
