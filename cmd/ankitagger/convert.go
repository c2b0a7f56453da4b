package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitagger/ankitagger/internal/anki"
	"github.com/ankitagger/ankitagger/internal/config"
	"github.com/ankitagger/ankitagger/internal/gemini"
	"github.com/ankitagger/ankitagger/internal/pdf"
	"github.com/ankitagger/ankitagger/internal/workflow"
	"github.com/ankitagger/ankitagger/pkg/logger"
	"github.com/ankitagger/ankitagger/pkg/utils"
)

func convertCmd() *cobra.Command {
	var (
		mode   string
		outDir string
		tag    bool
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a PDF or text file into a flashcard TSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			runner, err := buildRunner(cmd, cfg, log)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = cfg.OutputDir
			}
			if outDir == "" {
				outDir = utils.GetDefaultOutputDir()
			}

			res, err := runner.ProcessFile(cmd.Context(), args[0], workflow.Options{
				Mode:        workflow.Mode(mode),
				OutputDir:   outDir,
				SkipTagging: !tag,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d flashcards from %s\n", res.Records, res.Input)
			if res.Output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Tagged output: %s\n", res.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(workflow.ModeVisual), "processing mode: visual|text")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default: config output_dir or a temp dir)")
	cmd.Flags().BoolVar(&tag, "tag", false, "also run the tagging step on the extracted flashcards")
	return cmd
}

// buildRunner wires the clients a pipeline run needs. Anki is contacted
// only when the config wants images saved into the media folder.
func buildRunner(cmd *cobra.Command, cfg *config.Config, log *logger.Logger) (*workflow.Runner, error) {
	gem, err := gemini.NewClient(cmd.Context(), cfg.Gemini.APIKey, log)
	if err != nil {
		return nil, err
	}

	if !pdf.Available() {
		log.Warn("PDF rendering backend unavailable; PDF inputs will fail")
	}
	processor := pdf.NewProcessor(cfg.Workflow.ImageZoom, log)

	var ankiSvc *anki.Service
	if cfg.Workflow.SaveImagesToMedia {
		ankiSvc = anki.NewServiceWithURL(cfg.AnkiConnectURL, log)
		if err := ankiSvc.CheckConnection(); err != nil {
			log.Warn("Anki not reachable, images will stay in the output dir: %v", err)
			ankiSvc = nil
		}
	}

	return workflow.New(cfg, gem, processor, ankiSvc, log), nil
}
