package gemini

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	genai "google.golang.org/genai"

	"github.com/ankitagger/ankitagger/internal/tsv"
	"github.com/ankitagger/ankitagger/pkg/models"
)

// VisualOptions configures a visual extraction call.
type VisualOptions struct {
	Model  string
	Prompt string
	// SnapshotDir/BaseName locate the recoverable JSON written after a
	// successful parse. Empty SnapshotDir disables the snapshot.
	SnapshotDir string
	BaseName    string
}

// ExtractVisual sends the whole PDF inline with the extraction prompt and
// parses the JSON array of question/answer records from the reply.
func (c *Client) ExtractVisual(ctx context.Context, pdfPath string, opts VisualOptions) ([]models.Record, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	c.logger.Info("Sending %s (%d bytes) for visual extraction (%s)...",
		filepath.Base(pdfPath), len(data), opts.Model)

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: opts.Prompt},
				{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: data}},
			},
		},
	}

	raw, err := c.generateJSON(ctx, opts.Model, contents)
	if err != nil {
		return nil, fmt.Errorf("visual extraction call failed: %w", err)
	}
	if raw == "" {
		c.logger.Warn("Received empty response from Gemini")
		return nil, nil
	}

	records, err := ParseRecordArray(raw)
	if err != nil {
		c.logger.Error("Visual extraction reply did not parse: %v", err)
		return nil, err
	}
	c.logger.Info("Parsed %d records from visual extraction", len(records))

	if opts.SnapshotDir != "" && len(records) > 0 {
		if path, err := tsv.SaveJSONSnapshot(records, opts.SnapshotDir, opts.BaseName, "visual_extract"); err != nil {
			c.logger.Error("Failed to save visual extraction snapshot: %v", err)
		} else {
			c.logger.Debug("Saved snapshot to %s", filepath.Base(path))
		}
	}

	return records, nil
}
