package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitagger/ankitagger/internal/workflow"
)

func tagCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "tag <file>",
		Short: "Tag the flashcards in an existing TSV or JSON snapshot",
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

			path, count, err := runner.TagFile(cmd.Context(), args[0], out, workflow.Options{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged %d flashcards: %s\n", count, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: <input>_tagged.txt next to the input)")
	return cmd
}
