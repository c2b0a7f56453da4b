package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankitagger/ankitagger/internal/scanner"
	"github.com/ankitagger/ankitagger/internal/workflow"
	"github.com/ankitagger/ankitagger/pkg/utils"
)

func workflowCmd() *cobra.Command {
	var (
		mode   string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "workflow <file-or-directory>",
		Short: "Run the full extract-and-tag pipeline; a directory runs in bulk mode",
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

			input := args[0]
			info, err := os.Stat(input)
			if err != nil {
				return err
			}

			inputs := []string{input}
			if info.IsDir() {
				exts := []string{".pdf"}
				if workflow.Mode(mode) == workflow.ModeText {
					exts = append(exts, ".txt")
				}
				inputs, err = scanner.New(log).FindFiles(cmd.Context(), input, exts...)
				if err != nil {
					return err
				}
			}

			if outDir == "" {
				outDir = cfg.OutputDir
			}
			if outDir == "" {
				outDir = utils.GetDefaultOutputDir()
			}

			report, results, err := runner.Run(cmd.Context(), inputs, workflow.Options{
				Mode:      workflow.Mode(mode),
				OutputDir: outDir,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run %s: %d/%d file(s) succeeded, %d flashcards, took %s\n",
				report.RunID, report.SuccessFiles, report.TotalFiles, report.TotalRecords,
				report.TimeTaken().Round(time.Second))
			for _, res := range results {
				if res.Err != nil {
					fmt.Fprintf(w, "  FAILED %s: %v\n", res.Input, res.Err)
				} else if res.Output != "" {
					fmt.Fprintf(w, "  ok     %s -> %s\n", res.Input, res.Output)
				}
			}
			if report.FailedFiles > 0 {
				return fmt.Errorf("%d file(s) failed", report.FailedFiles)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(workflow.ModeVisual), "processing mode: visual|text")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "output directory (default: config output_dir or a temp dir)")
	return cmd
}
