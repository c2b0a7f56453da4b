package gemini

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	genai "google.golang.org/genai"

	"github.com/ankitagger/ankitagger/internal/batch"
	"github.com/ankitagger/ankitagger/internal/tsv"
	"github.com/ankitagger/ankitagger/pkg/models"
)

// TextOptions configures the chunked text-analysis loop.
type TextOptions struct {
	Model     string
	Prompt    string
	ChunkSize int
	Delay     time.Duration
	// SnapshotDir/BaseName locate the recoverable JSON rewritten after
	// every chunk. Empty SnapshotDir disables snapshots.
	SnapshotDir string
	BaseName    string
}

// AnalyzeText splits text into chunks and generates question/answer records
// chunk by chunk. A failed chunk is skipped unless the error is
// unrecoverable; the returned records always reflect every chunk that
// succeeded, in input order.
func (c *Client) AnalyzeText(ctx context.Context, text string, opts TextOptions) ([]models.Record, []batch.UnitError, error) {
	chunks := batch.SplitText(text, opts.ChunkSize)
	if len(chunks) == 0 {
		c.logger.Warn("Input text is empty, nothing to analyze")
		return nil, nil, nil
	}
	c.logger.Info("Splitting text (%d chars) into %d chunks of up to %d", len([]rune(text)), len(chunks), opts.ChunkSize)

	runner := batch.Runner[models.Record]{
		Delay:  opts.Delay,
		Policy: batch.ContinueOnError,
		FatalIf: func(err error) bool {
			return !IsRecoverable(err)
		},
		Log: c.logger,
	}
	if opts.SnapshotDir != "" {
		runner.Checkpoint = func(acc []models.Record) error {
			_, err := tsv.SaveJSONSnapshot(acc, opts.SnapshotDir, opts.BaseName, "text_analysis")
			return err
		}
	}

	records, failed, err := runner.Process(ctx, len(chunks), func(ctx context.Context, unit int) ([]models.Record, error) {
		chunk := chunks[unit]
		c.logger.Info("Processing chunk %d/%d (%d chars)...", unit+1, len(chunks), len([]rune(chunk)))

		fullPrompt := fmt.Sprintf("%s\n\n--- Text Chunk ---\n%s", opts.Prompt, chunk)
		raw, err := c.generateJSON(ctx, opts.Model, []*genai.Content{
			genai.NewContentFromText(fullPrompt, genai.RoleUser),
		})
		if err != nil {
			return nil, err
		}
		if raw == "" {
			c.logger.Warn("Empty response for chunk %d", unit+1)
			return nil, nil
		}

		parsed, err := ParseRecordArray(raw)
		if err != nil {
			return nil, fmt.Errorf("chunk %d reply did not parse: %w", unit+1, err)
		}

		valid, invalid := FilterQA(parsed)
		if invalid > 0 {
			c.logger.Warn("Skipped %d items without question/answer in chunk %d", invalid, unit+1)
		}
		c.logger.Debug("Parsed %d valid items from chunk %d", len(valid), unit+1)
		return valid, nil
	})
	if err != nil {
		// Partial results are already on disk via the checkpoint.
		return records, failed, fmt.Errorf("text analysis aborted: %w", err)
	}

	if opts.SnapshotDir != "" && len(records) > 0 {
		if path, err := tsv.SaveJSONSnapshot(records, opts.SnapshotDir, opts.BaseName, "text_analysis_final"); err != nil {
			c.logger.Error("Failed to save final text analysis results: %v", err)
		} else {
			c.logger.Info("Final combined results saved to %s", filepath.Base(path))
		}
	}

	c.logger.Info("Text analysis complete: %d records, %d failed chunks", len(records), len(failed))
	return records, failed, nil
}
