package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ankitagger/ankitagger/internal/config"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	writeConfig := func(content string) string {
		path := filepath.Join(tempDir, "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	Context("when the file is missing", func() {
		It("returns a config filled with defaults", func() {
			cfg, err := config.Load(filepath.Join(tempDir, "does-not-exist.yaml"))
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.AnkiConnectURL).To(Equal("http://127.0.0.1:8765"))
			Expect(cfg.Gemini.Model).To(Equal(config.DefaultModel))
			Expect(cfg.Gemini.VisualModel).To(Equal(config.DefaultVisualModel))
			Expect(cfg.Gemini.ChunkSize).To(Equal(config.DefaultChunkSize))
			Expect(cfg.Gemini.BatchSize).To(Equal(config.DefaultBatchSize))
			Expect(cfg.APIDelay()).To(Equal(config.DefaultAPIDelay))
			Expect(cfg.Workflow.ImageZoom).To(Equal(config.DefaultImageZoom))
		})
	})

	Context("when the file sets values", func() {
		It("keeps them over the defaults", func() {
			path := writeConfig(`
ankiconnect_url: "http://localhost:9999"
output_dir: "/tmp/cards"
gemini:
  model: "gemini-2.5-pro"
  chunk_size: 5000
  batch_size: 4
  api_delay_seconds: 1.5
tagging:
  second_pass: true
  second_pass_model: "gemini-2.5-flash"
workflow:
  rename_failed_inputs: true
  image_zoom: 2.0
`)
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.AnkiConnectURL).To(Equal("http://localhost:9999"))
			Expect(cfg.OutputDir).To(Equal("/tmp/cards"))
			Expect(cfg.Gemini.Model).To(Equal("gemini-2.5-pro"))
			Expect(cfg.Gemini.ChunkSize).To(Equal(5000))
			Expect(cfg.Gemini.BatchSize).To(Equal(4))
			Expect(cfg.APIDelay()).To(Equal(1500 * time.Millisecond))
			Expect(cfg.Tagging.SecondPass).To(BeTrue())
			Expect(cfg.Tagging.SecondPassModel).To(Equal("gemini-2.5-flash"))
			Expect(cfg.Workflow.RenameFailedInputs).To(BeTrue())
			Expect(cfg.Workflow.ImageZoom).To(Equal(2.0))
		})

		It("still fills unset fields with defaults", func() {
			path := writeConfig("gemini:\n  model: custom-model\n")
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfg.Gemini.Model).To(Equal("custom-model"))
			Expect(cfg.Gemini.VisualModel).To(Equal(config.DefaultVisualModel))
			Expect(cfg.Gemini.ChunkSize).To(Equal(config.DefaultChunkSize))
		})
	})

	Context("when the file is malformed", func() {
		It("returns an error", func() {
			path := writeConfig("gemini: [not a mapping")
			_, err := config.Load(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("API key resolution", func() {
		It("takes the key from the environment when the file has none", func() {
			os.Setenv("GEMINI_API_KEY", "env-key")
			DeferCleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

			cfg, err := config.Load(filepath.Join(tempDir, "missing.yaml"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Gemini.APIKey).To(Equal("env-key"))
		})

		It("prefers the file value over the environment", func() {
			os.Setenv("GEMINI_API_KEY", "env-key")
			DeferCleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

			path := writeConfig("gemini:\n  api_key: file-key\n")
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Gemini.APIKey).To(Equal("file-key"))
		})
	})

	Context("API delay handling", func() {
		It("clamps a negative delay to zero", func() {
			path := writeConfig("gemini:\n  api_delay_seconds: -3\n")
			cfg, err := config.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.APIDelay()).To(Equal(time.Duration(0)))
		})
	})
})
