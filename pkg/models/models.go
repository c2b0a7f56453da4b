package models

import "time"

// Row is one flashcard line destined for a TSV file: an ordered list of
// string fields. Column meaning is positional and file-scoped.
type Row []string

// Record is a loosely-typed object parsed from a Gemini JSON reply. Fields
// are present only if the model emitted them.
type Record map[string]interface{}

// String returns the value under key as a string, or "" when absent or not
// a string.
func (r Record) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// FirstString returns the first non-empty string among keys. Replies from
// different prompts name the same field differently (question_text vs
// Question), so lookups are best-effort.
func (r Record) FirstString(keys ...string) string {
	for _, key := range keys {
		if s := r.String(key); s != "" {
			return s
		}
	}
	return ""
}

// Int returns the value under key as an int. JSON numbers decode as
// float64, so both are accepted.
func (r Record) Int(key string) (int, bool) {
	switch v := r[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// IntSlice returns the value under key as a list of ints, dropping entries
// that are not numbers.
func (r Record) IntSlice(key string) []int {
	raw, ok := r[key].([]interface{})
	if !ok {
		return nil
	}
	var out []int
	for _, item := range raw {
		if f, ok := item.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// Question returns the question text under any of its known keys.
func (r Record) Question() string {
	return r.FirstString("question_text", "question", "Question")
}

// Answer returns the answer text under any of its known keys.
func (r Record) Answer() string {
	return r.FirstString("answer_text", "answer", "Answer")
}

// Tags returns the assigned tag string, empty until tagging has run.
func (r Record) Tags() string {
	return r.String("Tags")
}

// SetTags stores the tag string produced by the tagging pass.
func (r Record) SetTags(tags string) {
	r["Tags"] = tags
}

// Clone returns a shallow copy so a second tagging pass can overwrite Tags
// without mutating first-pass results.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// WorkflowReport accumulates counters for a single- or bulk-mode run.
type WorkflowReport struct {
	RunID        string
	StartTime    time.Time
	EndTime      time.Time
	TotalFiles   int
	SuccessFiles int
	FailedFiles  int
	SkippedFiles int
	TotalRecords int
	RenamedFiles []string
	FinalOutputs []string
}

func (r *WorkflowReport) TimeTaken() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
