// Package workflow chains the pipeline steps (render, extract, tag, write)
// for single files and bulk directory runs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ankitagger/ankitagger/internal/anki"
	"github.com/ankitagger/ankitagger/internal/config"
	"github.com/ankitagger/ankitagger/internal/gemini"
	"github.com/ankitagger/ankitagger/internal/pdf"
	"github.com/ankitagger/ankitagger/internal/tsv"
	"github.com/ankitagger/ankitagger/pkg/logger"
	"github.com/ankitagger/ankitagger/pkg/models"
	"github.com/ankitagger/ankitagger/pkg/prompts"
	"github.com/ankitagger/ankitagger/pkg/utils"
)

// Mode selects how flashcard content is pulled out of an input file.
type Mode string

const (
	// ModeVisual sends the PDF itself to the model so layout and images
	// survive; page renders back the media columns.
	ModeVisual Mode = "visual"
	// ModeText extracts plain text first and analyzes it in chunks.
	ModeText Mode = "text"
)

// FailedInputPrefix marks an input file whose processing failed so a
// re-run of the same directory picks it up visibly.
const FailedInputPrefix = "UP_"

// ErrNoFlashcards means the pipeline ran but the model produced nothing
// usable. Bulk runs count such inputs as skipped rather than failed.
var ErrNoFlashcards = errors.New("no flashcards extracted")

// Runner owns the clients a pipeline run needs. Anki is optional; without
// it images always land in a per-document folder instead of the media dir.
type Runner struct {
	cfg    *config.Config
	gemini *gemini.Client
	pdf    *pdf.Processor
	anki   *anki.Service
	logger *logger.Logger
}

func New(cfg *config.Config, gem *gemini.Client, proc *pdf.Processor, ankiSvc *anki.Service, log *logger.Logger) *Runner {
	return &Runner{cfg: cfg, gemini: gem, pdf: proc, anki: ankiSvc, logger: log}
}

// Options carries the per-run knobs on top of the loaded config.
type Options struct {
	Mode      Mode
	OutputDir string
	// SkipTagging stops the pipeline after the intermediate TSV.
	SkipTagging bool
	// TagPrompt overrides the default first-pass tagging prompt; the
	// allowed-tag vocabulary is re-extracted from it.
	TagPrompt string
	// Progress, when set, receives (done, total) after each record is
	// tagged.
	Progress func(done, total int)
}

// FileResult reports one input file's outcome inside a run.
type FileResult struct {
	Input   string
	Output  string
	Records int
	Err     error
}

// ProcessFile runs the full pipeline for one input and returns the final
// output path. Intermediate artifacts (page images, snapshots, the untagged
// TSV) are left in the output directory for recovery.
func (r *Runner) ProcessFile(ctx context.Context, inputPath string, opts Options) (*FileResult, error) {
	result := &FileResult{Input: inputPath}
	base := utils.SanitizeFilename(inputPath)
	outputDir := opts.OutputDir
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		result.Err = fmt.Errorf("failed to create output directory: %w", err)
		return result, result.Err
	}

	var (
		records []models.Record
		err     error
	)
	switch opts.Mode {
	case ModeVisual:
		records, err = r.extractVisual(ctx, inputPath, base, outputDir)
	case ModeText:
		records, err = r.analyzeText(ctx, inputPath, base, outputDir)
	default:
		err = fmt.Errorf("unknown processing mode: %q", opts.Mode)
	}
	if err != nil {
		result.Err = err
		return result, err
	}
	if len(records) == 0 {
		result.Err = fmt.Errorf("%w from %s", ErrNoFlashcards, filepath.Base(inputPath))
		return result, result.Err
	}
	result.Records = len(records)

	if opts.SkipTagging {
		r.logger.Info("Tagging skipped for %s (%d records)", filepath.Base(inputPath), len(records))
		return result, nil
	}

	tagged, err := r.tagRecords(ctx, records, base, outputDir, opts)
	if err != nil {
		result.Err = err
		return result, err
	}

	finalPath := filepath.Join(outputDir, base+"_final_tagged.txt")
	if err := tsv.GenerateTagged(tagged, finalPath); err != nil {
		result.Err = err
		return result, err
	}
	r.logger.Info("Final tagged file: %s", finalPath)
	result.Output = finalPath
	return result, nil
}

// Run processes a batch of inputs sequentially, writing everything into a
// run-scoped subdirectory. Failures never stop the run; with
// rename_failed_inputs set, each failed input is renamed with the UP_
// prefix in place. Inputs that yield no flashcards count as skipped.
func (r *Runner) Run(ctx context.Context, inputs []string, opts Options) (*models.WorkflowReport, []FileResult, error) {
	report := &models.WorkflowReport{
		RunID:      uuid.NewString(),
		StartTime:  time.Now(),
		TotalFiles: len(inputs),
	}
	opts.OutputDir = filepath.Join(opts.OutputDir, "run_"+report.RunID[:8])
	r.logger.Info("=== Workflow run %s: %d file(s), mode %s, output %s ===",
		report.RunID, len(inputs), opts.Mode, opts.OutputDir)

	results := make([]FileResult, 0, len(inputs))
	for i, input := range inputs {
		if err := ctx.Err(); err != nil {
			report.EndTime = time.Now()
			return report, results, err
		}
		r.logger.Info("--- File %d/%d: %s ---", i+1, len(inputs), filepath.Base(input))

		res, err := r.ProcessFile(ctx, input, opts)
		results = append(results, *res)
		report.TotalRecords += res.Records

		if err != nil {
			if errors.Is(err, ErrNoFlashcards) {
				report.SkippedFiles++
				r.logger.Warn("File %s skipped: %v", filepath.Base(input), err)
				continue
			}
			report.FailedFiles++
			r.logger.Error("File %s failed: %v", filepath.Base(input), err)
			if r.cfg.Workflow.RenameFailedInputs {
				if renamed, renameErr := markFailedInput(input); renameErr != nil {
					r.logger.Warn("Could not rename failed input %s: %v", input, renameErr)
				} else {
					r.logger.Info("Renamed failed input to %s", filepath.Base(renamed))
					report.RenamedFiles = append(report.RenamedFiles, renamed)
				}
			}
			continue
		}

		report.SuccessFiles++
		if res.Output != "" {
			report.FinalOutputs = append(report.FinalOutputs, res.Output)
		}
	}

	report.EndTime = time.Now()
	r.logger.Info("=== Run %s done in %s: %d ok, %d failed, %d skipped, %d records ===",
		report.RunID, report.TimeTaken().Round(time.Second),
		report.SuccessFiles, report.FailedFiles, report.SkippedFiles, report.TotalRecords)
	return report, results, nil
}

func (r *Runner) extractVisual(ctx context.Context, inputPath, base, outputDir string) ([]models.Record, error) {
	if !strings.EqualFold(filepath.Ext(inputPath), ".pdf") {
		return nil, fmt.Errorf("visual mode needs a PDF input, got %s", filepath.Base(inputPath))
	}
	if _, err := r.pdf.Validate(inputPath); err != nil {
		return nil, err
	}

	renderOpts := pdf.RenderOptions{DestDir: filepath.Join(outputDir, base+"_images")}
	if r.cfg.Workflow.SaveImagesToMedia && r.anki != nil {
		if mediaDir, err := r.anki.MediaDirPath(); err != nil {
			r.logger.Warn("Anki media folder unavailable, keeping images in output dir: %v", err)
		} else {
			renderOpts = pdf.RenderOptions{DestDir: mediaDir, SaveDirect: true}
		}
	}
	pageImages, err := r.pdf.RenderPages(ctx, inputPath, base, renderOpts)
	if err != nil {
		return nil, err
	}

	records, err := r.gemini.ExtractVisual(ctx, inputPath, gemini.VisualOptions{
		Model:       r.cfg.Gemini.VisualModel,
		Prompt:      prompts.VisualExtraction,
		SnapshotDir: outputDir,
		BaseName:    base,
	})
	if err != nil {
		return nil, err
	}

	if len(records) > 0 {
		if path, err := tsv.GenerateVisual(records, outputDir, base, pageImages); err != nil {
			r.logger.Warn("Could not write intermediate visual TSV: %v", err)
		} else {
			r.logger.Info("Intermediate visual TSV: %s", path)
		}
	}
	// Tagging and the final TSV work on the flattened rows so the media
	// cells survive past the intermediate file.
	return tsv.VisualRecords(records, pageImages), nil
}

func (r *Runner) analyzeText(ctx context.Context, inputPath, base, outputDir string) ([]models.Record, error) {
	var (
		text string
		err  error
	)
	if strings.EqualFold(filepath.Ext(inputPath), ".pdf") {
		text, err = r.pdf.ExtractText(ctx, inputPath)
	} else {
		var data []byte
		data, err = os.ReadFile(inputPath)
		text = string(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input text: %w", err)
	}

	records, failed, err := r.gemini.AnalyzeText(ctx, text, gemini.TextOptions{
		Model:       r.cfg.Gemini.Model,
		Prompt:      prompts.BookProcessing,
		ChunkSize:   r.cfg.Gemini.ChunkSize,
		Delay:       r.cfg.APIDelay(),
		SnapshotDir: outputDir,
		BaseName:    base,
	})
	if err != nil {
		return records, err
	}
	if len(failed) > 0 {
		r.logger.Warn("%d chunk(s) failed during text analysis of %s", len(failed), filepath.Base(inputPath))
	}

	if len(records) > 0 {
		if path, err := tsv.GenerateTextAnalysis(records, outputDir, base); err != nil {
			r.logger.Warn("Could not write intermediate text TSV: %v", err)
		} else {
			r.logger.Info("Intermediate text-analysis TSV: %s", path)
		}
	}
	return records, nil
}

// TagFile tags an existing record file. JSON snapshots and TSV exports are
// both accepted; the result is a tagged TSV next to the input unless
// outputPath names a destination.
func (r *Runner) TagFile(ctx context.Context, inputPath, outputPath string, opts Options) (string, int, error) {
	var (
		records []models.Record
		err     error
	)
	if strings.EqualFold(filepath.Ext(inputPath), ".json") {
		records, err = tsv.LoadRecords(inputPath)
	} else {
		records, err = tsv.ReadTSV(inputPath)
	}
	if err != nil {
		return "", 0, err
	}
	if len(records) == 0 {
		return "", 0, fmt.Errorf("no records found in %s", filepath.Base(inputPath))
	}

	base := utils.SanitizeFilename(inputPath)
	dir := filepath.Dir(inputPath)
	if outputPath == "" {
		outputPath = filepath.Join(dir, base+"_tagged.txt")
	}

	tagged, err := r.tagRecords(ctx, records, base, dir, opts)
	if err != nil {
		return "", 0, err
	}
	if err := tsv.GenerateTagged(tagged, outputPath); err != nil {
		return "", 0, err
	}
	r.logger.Info("Tagged %d records -> %s", len(tagged), outputPath)
	return outputPath, len(tagged), nil
}

func (r *Runner) tagRecords(ctx context.Context, records []models.Record, base, outputDir string, opts Options) ([]models.Record, error) {
	prompt := opts.TagPrompt
	if prompt == "" {
		prompt = prompts.BatchTagging
	}
	tagOpts := gemini.TagOptions{
		Model:       r.cfg.Gemini.Model,
		Prompt:      prompt,
		BatchSize:   r.cfg.Gemini.BatchSize,
		Delay:       r.cfg.APIDelay(),
		SnapshotDir: outputDir,
		BaseName:    base,
		Progress:    opts.Progress,
	}
	if r.cfg.Tagging.SecondPass {
		tagOpts.SecondPassModel = r.cfg.Tagging.SecondPassModel
		if tagOpts.SecondPassModel == "" {
			tagOpts.SecondPassModel = r.cfg.Gemini.Model
		}
		tagOpts.SecondPassPrompt = prompts.SecondPassTagging
	}
	return r.gemini.TagRecords(ctx, records, tagOpts)
}

// markFailedInput renames the file in place with the UP_ prefix. Already
// marked files are left alone.
func markFailedInput(path string) (string, error) {
	dir, name := filepath.Split(path)
	if strings.HasPrefix(name, FailedInputPrefix) {
		return path, nil
	}
	renamed := filepath.Join(dir, FailedInputPrefix+name)
	if err := os.Rename(path, renamed); err != nil {
		return "", err
	}
	return renamed, nil
}
