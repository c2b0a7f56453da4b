package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ankitagger/ankitagger/internal/batch"
	"github.com/ankitagger/ankitagger/internal/tsv"
	"github.com/ankitagger/ankitagger/pkg/models"
	"github.com/ankitagger/ankitagger/pkg/prompts"
)

// Tag cell markers for rows whose batch went wrong. They travel in the Tags
// column so a user can find and re-run the affected rows.
const (
	TagErrNoResponse  = "ERROR: No Response Parsed"
	TagErrIncomplete  = "ERROR: Parsing Mismatch/Incomplete"
	TagErrEmptyVocab  = "ERROR: Allowed Tag List Empty"
	TagInfoNoValid    = "INFO: No Valid Tags Found"
	tagErrCallFailedF = "ERROR: API Call Failed (%s)"
)

// TagOptions configures one or two tagging passes over a record list.
type TagOptions struct {
	Model     string
	Prompt    string
	BatchSize int
	Delay     time.Duration
	// SnapshotDir/BaseName locate the per-pass recoverable JSON. Empty
	// SnapshotDir disables snapshots.
	SnapshotDir string
	BaseName    string
	// SecondPassModel + SecondPassPrompt enable the refinement pass; the
	// pass-2 prompt lines carry pass-1 tags.
	SecondPassModel  string
	SecondPassPrompt string
	// Progress, when set, receives (processed, total) after every item.
	Progress func(done, total int)
}

var itemLineRe = regexp.MustCompile(`^\s*\[\s*(\d+)\s*\]\s*(.*)$`)

// ParseBatchTagResponse maps a numbered-list reply back onto batch
// positions and filters each item's tags against the allowed set. Every
// position gets a value: filtered tags, an empty string, or an error
// marker.
func ParseBatchTagResponse(response string, batchSize int, allowed map[string]struct{}) []string {
	tags := make([]string, batchSize)
	for i := range tags {
		tags[i] = TagErrNoResponse
	}
	if len(allowed) == 0 {
		for i := range tags {
			tags[i] = TagErrEmptyVocab
		}
		return tags
	}

	parsed := 0
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := itemLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		idx := num - 1
		if idx < 0 || idx >= batchSize {
			continue
		}

		raw := strings.TrimSpace(m[2])
		if raw == "" {
			tags[idx] = ""
			parsed++
			continue
		}

		var kept []string
		for _, tag := range strings.Fields(raw) {
			if _, ok := allowed[tag]; ok {
				kept = append(kept, tag)
			}
		}
		if len(kept) > 0 {
			tags[idx] = strings.Join(kept, " ")
		} else {
			tags[idx] = TagInfoNoValid
		}
		parsed++
	}

	if parsed != batchSize {
		for i := range tags {
			if tags[i] == TagErrNoResponse {
				tags[i] = TagErrIncomplete
			}
		}
	}
	return tags
}

// TagRecords assigns tags to every record in batches. A failed batch marks
// its rows with an error tag and the run continues; the output always has
// one record per input record, in order.
func (c *Client) TagRecords(ctx context.Context, records []models.Record, opts TagOptions) ([]models.Record, error) {
	if len(records) == 0 {
		c.logger.Warn("No records to tag")
		return nil, nil
	}

	passes := 1
	if opts.SecondPassModel != "" && opts.SecondPassPrompt != "" {
		passes = 2
	}
	c.logger.Info("Starting tagging: %d records, batch size %d, %d pass(es)", len(records), opts.BatchSize, passes)

	items := records
	for pass := 1; pass <= passes; pass++ {
		model, prompt := opts.Model, opts.Prompt
		if pass == 2 {
			model, prompt = opts.SecondPassModel, opts.SecondPassPrompt
		}

		tagged, err := c.runTaggingPass(ctx, items, pass, model, prompt, opts)
		if err != nil {
			return tagged, err
		}
		items = tagged
	}

	c.logger.Info("Tagging complete: %d records", len(items))
	return items, nil
}

func (c *Client) runTaggingPass(ctx context.Context, items []models.Record, pass int, model, prompt string, opts TagOptions) ([]models.Record, error) {
	allowed := prompts.ExtractAllowedTags(prompt)
	if len(allowed) == 0 {
		c.logger.Warn("Pass %d prompt contains no allowed tags; all suggestions will be filtered out", pass)
	}

	ranges := batch.Ranges(len(items), opts.BatchSize)
	stepName := fmt.Sprintf("tagging_pass%d", pass)
	c.logger.Info("--- Tagging pass %d: %d batches ---", pass, len(ranges))

	runner := batch.Runner[models.Record]{
		Delay:  opts.Delay,
		Policy: batch.ContinueOnError,
		Log:    c.logger,
	}
	if opts.SnapshotDir != "" {
		runner.Checkpoint = func(acc []models.Record) error {
			_, err := tsv.SaveJSONSnapshot(acc, opts.SnapshotDir, opts.BaseName, stepName)
			return err
		}
	}

	tagged, _, err := runner.Process(ctx, len(ranges), func(ctx context.Context, unit int) ([]models.Record, error) {
		start, end := ranges[unit][0], ranges[unit][1]
		batchItems := items[start:end]
		c.logger.Debug("Pass %d - batch %d/%d (%d items)", pass, unit+1, len(ranges), len(batchItems))

		response, callErr := c.generateText(ctx, model, buildBatchPrompt(prompt, batchItems, pass))
		var parsedTags []string
		if callErr != nil {
			if !IsRecoverable(callErr) && unit == 0 && pass == 1 {
				// Nothing tagged yet; a config-level failure should stop
				// the run instead of stamping every row with errors.
				return nil, callErr
			}
			c.logger.Error("Pass %d - batch %d call failed: %v", pass, unit+1, callErr)
			// The allowed-set filter would strip the marker words, so the
			// rows are stamped directly instead of going through the parser.
			parsedTags = CallFailedTags(len(batchItems), callErr)
		} else {
			parsedTags = ParseBatchTagResponse(response, len(batchItems), allowed)
		}

		out := make([]models.Record, 0, len(batchItems))
		for i, item := range batchItems {
			rec := item.Clone()
			rec.SetTags(parsedTags[i])
			out = append(out, rec)
			if opts.Progress != nil {
				opts.Progress(start+i+1, len(items))
			}
		}
		return out, nil
	})
	if err != nil {
		return tagged, fmt.Errorf("tagging pass %d aborted: %w", pass, err)
	}
	return tagged, nil
}

// buildBatchPrompt numbers each record into the prompt; pass 2 lines also
// carry the tags chosen in pass 1 (unless those are error markers).
func buildBatchPrompt(prompt string, items []models.Record, pass int) string {
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "[%d] Q: %s A: %s", i+1, item.Question(), item.Answer())
		if pass == 2 {
			if initial := item.Tags(); initial != "" && !strings.HasPrefix(initial, "ERROR:") {
				fmt.Fprintf(&sb, " Initial Tags: %s", initial)
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// CallFailedTags builds the per-row markers for a batch whose API call
// failed. The ERROR: prefix keeps the rows out of the refinement pass and
// flags them for a manual re-run.
func CallFailedTags(batchSize int, err error) []string {
	kind := "call failed"
	if err != nil {
		kind = firstWord(err.Error())
	}
	tags := make([]string, batchSize)
	for i := range tags {
		tags[i] = fmt.Sprintf(tagErrCallFailedF, kind)
	}
	return tags
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return strings.Trim(fields[0], ":,")
	}
	return s
}
