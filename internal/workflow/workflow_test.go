package workflow_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ankitagger/ankitagger/internal/config"
	"github.com/ankitagger/ankitagger/internal/workflow"
	"github.com/ankitagger/ankitagger/pkg/logger"
)

func workflowTestLogger() *logger.Logger {
	log := logger.New(
		logger.WithOutput(GinkgoWriter),
		logger.WithPrefix("[workflow-test] "),
		logger.WithFlags(0),
	)
	log.SetVerbose(true)
	return log
}

var _ = Describe("Runner", func() {
	var (
		inputDir  string
		outputDir string
		cfg       *config.Config
		runner    *workflow.Runner
		ctx       context.Context
	)

	BeforeEach(func() {
		var err error
		inputDir, err = os.MkdirTemp("", "workflow-in-*")
		Expect(err).NotTo(HaveOccurred())
		outputDir, err = os.MkdirTemp("", "workflow-out-*")
		Expect(err).NotTo(HaveOccurred())

		cfg = &config.Config{}
		runner = workflow.New(cfg, nil, nil, nil, workflowTestLogger())
		ctx = context.Background()
	})

	AfterEach(func() {
		os.RemoveAll(inputDir)
		os.RemoveAll(outputDir)
	})

	writeInput := func(name string) string {
		path := filepath.Join(inputDir, name)
		Expect(os.WriteFile(path, []byte("not really a pdf"), 0644)).To(Succeed())
		return path
	}

	Describe("ProcessFile", func() {
		It("rejects an unknown mode", func() {
			input := writeInput("doc.pdf")

			_, err := runner.ProcessFile(ctx, input, workflow.Options{
				Mode:      "bogus",
				OutputDir: outputDir,
			})
			Expect(err).To(MatchError(ContainSubstring("unknown processing mode")))
		})

		It("rejects a non-PDF input in visual mode", func() {
			input := writeInput("notes.txt")

			_, err := runner.ProcessFile(ctx, input, workflow.Options{
				Mode:      workflow.ModeVisual,
				OutputDir: outputDir,
			})
			Expect(err).To(MatchError(ContainSubstring("needs a PDF input")))
		})

		It("reports a missing text input", func() {
			_, err := runner.ProcessFile(ctx, filepath.Join(inputDir, "missing.txt"), workflow.Options{
				Mode:      workflow.ModeText,
				OutputDir: outputDir,
			})
			Expect(err).To(MatchError(ContainSubstring("failed to read input text")))
		})
	})

	Describe("Run", func() {
		It("keeps going after failed files and counts them", func() {
			inputs := []string{writeInput("a.txt"), writeInput("b.txt")}

			report, results, err := runner.Run(ctx, inputs, workflow.Options{
				Mode:      workflow.ModeVisual,
				OutputDir: outputDir,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(report.RunID).NotTo(BeEmpty())
			Expect(report.TotalFiles).To(Equal(2))
			Expect(report.FailedFiles).To(Equal(2))
			Expect(report.SuccessFiles).To(BeZero())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Err).To(HaveOccurred())
			Expect(report.EndTime).NotTo(BeZero())
		})

		It("leaves failed inputs alone by default", func() {
			input := writeInput("a.txt")

			report, _, err := runner.Run(ctx, []string{input}, workflow.Options{
				Mode:      workflow.ModeVisual,
				OutputDir: outputDir,
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(report.RenamedFiles).To(BeEmpty())
			Expect(input).To(BeAnExistingFile())
		})

		Context("with rename_failed_inputs enabled", func() {
			BeforeEach(func() {
				cfg.Workflow.RenameFailedInputs = true
			})

			It("renames failed inputs with the failure prefix", func() {
				input := writeInput("a.txt")

				report, _, err := runner.Run(ctx, []string{input}, workflow.Options{
					Mode:      workflow.ModeVisual,
					OutputDir: outputDir,
				})

				Expect(err).NotTo(HaveOccurred())
				renamed := filepath.Join(inputDir, workflow.FailedInputPrefix+"a.txt")
				Expect(report.RenamedFiles).To(Equal([]string{renamed}))
				Expect(renamed).To(BeAnExistingFile())
				Expect(input).NotTo(BeAnExistingFile())
			})

			It("does not stack the prefix on an already marked input", func() {
				input := writeInput(workflow.FailedInputPrefix + "a.txt")

				report, _, err := runner.Run(ctx, []string{input}, workflow.Options{
					Mode:      workflow.ModeVisual,
					OutputDir: outputDir,
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(report.RenamedFiles).To(Equal([]string{input}))
				Expect(input).To(BeAnExistingFile())
			})
		})

		It("stops between files when the context is cancelled", func() {
			cancelCtx, cancel := context.WithCancel(ctx)
			cancel()

			report, results, err := runner.Run(cancelCtx, []string{writeInput("a.txt")}, workflow.Options{
				Mode:      workflow.ModeVisual,
				OutputDir: outputDir,
			})

			Expect(err).To(Equal(context.Canceled))
			Expect(results).To(BeEmpty())
			Expect(report.TotalFiles).To(Equal(1))
		})
	})

	Describe("TagFile", func() {
		It("fails for a missing input", func() {
			_, _, err := runner.TagFile(ctx, filepath.Join(inputDir, "missing.txt"), "", workflow.Options{})
			Expect(err).To(HaveOccurred())
		})

		It("fails for a TSV with a header but no rows", func() {
			path := filepath.Join(inputDir, "empty.txt")
			Expect(os.WriteFile(path, []byte("Question\tAnswer\n"), 0644)).To(Succeed())

			_, _, err := runner.TagFile(ctx, path, "", workflow.Options{})
			Expect(err).To(MatchError(ContainSubstring("no records found")))
		})
	})
})
