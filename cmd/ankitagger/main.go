package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankitagger/ankitagger/internal/config"
	"github.com/ankitagger/ankitagger/pkg/logger"
)

var (
	configPath string
	verbose    bool
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:   "ankitagger",
		Short: "Turn documents into tagged Anki flashcard TSVs with Gemini",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode with trace logging")

	root.AddCommand(exportCmd())
	root.AddCommand(convertCmd())
	root.AddCommand(tagCmd())
	root.AddCommand(workflowCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the shared logger the way every
// subcommand expects them.
func setup() (*config.Config, *logger.Logger, error) {
	log := logger.New(logger.WithPrefix("[ankitagger] "))
	log.SetVerbose(verbose)
	if debug {
		log.SetLevel(logger.LevelTrace)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, log, nil
}
