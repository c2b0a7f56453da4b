// internal/config/config.go
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AnkiConnectURL string `yaml:"ankiconnect_url"`
	OutputDir      string `yaml:"output_dir"`

	Gemini struct {
		APIKey      string  `yaml:"api_key"`
		Model       string  `yaml:"model"`
		VisualModel string  `yaml:"visual_model"`
		ChunkSize   int     `yaml:"chunk_size"`
		BatchSize   int     `yaml:"batch_size"`
		APIDelay    float64 `yaml:"api_delay_seconds"`
	} `yaml:"gemini"`

	Tagging struct {
		SecondPass      bool   `yaml:"second_pass"`
		SecondPassModel string `yaml:"second_pass_model"`
	} `yaml:"tagging"`

	Workflow struct {
		RenameFailedInputs bool    `yaml:"rename_failed_inputs"`
		ImageZoom          float64 `yaml:"image_zoom"`
		SaveImagesToMedia  bool    `yaml:"save_images_to_media"`
	} `yaml:"workflow"`
}

const (
	DefaultModel       = "gemini-2.0-flash"
	DefaultVisualModel = "gemini-2.0-flash"
	DefaultChunkSize   = 30000
	DefaultBatchSize   = 10
	DefaultAPIDelay    = 5 * time.Second
	DefaultImageZoom   = 1.5
)

// Load reads the yaml config and fills gaps with defaults. A missing file is
// not an error; the zero config plus defaults is a working setup as long as
// GEMINI_API_KEY is in the environment.
func Load(path string) (*Config, error) {
	// .env values never override a key already exported in the shell.
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if cfg.AnkiConnectURL == "" {
		cfg.AnkiConnectURL = "http://127.0.0.1:8765"
	}
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultModel
	}
	if cfg.Gemini.VisualModel == "" {
		cfg.Gemini.VisualModel = DefaultVisualModel
	}
	if cfg.Gemini.ChunkSize <= 0 {
		cfg.Gemini.ChunkSize = DefaultChunkSize
	}
	if cfg.Gemini.BatchSize <= 0 {
		cfg.Gemini.BatchSize = DefaultBatchSize
	}
	if cfg.Gemini.APIDelay < 0 {
		cfg.Gemini.APIDelay = 0
	} else if cfg.Gemini.APIDelay == 0 {
		cfg.Gemini.APIDelay = DefaultAPIDelay.Seconds()
	}
	if cfg.Workflow.ImageZoom <= 0 {
		cfg.Workflow.ImageZoom = DefaultImageZoom
	}

	return &cfg, nil
}

// APIDelay returns the configured inter-call delay as a duration.
func (c *Config) APIDelay() time.Duration {
	return time.Duration(c.Gemini.APIDelay * float64(time.Second))
}
