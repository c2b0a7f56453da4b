package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ankitagger/ankitagger/internal/anki"
	"github.com/ankitagger/ankitagger/pkg/utils"
)

func exportCmd() *cobra.Command {
	var (
		deck        string
		includeTags []string
		excludeTags []string
		fields      []string
		out         string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export notes from an Anki deck to a TSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			service := anki.NewServiceWithURL(cfg.AnkiConnectURL, log)
			if err := service.CheckConnection(); err != nil {
				return err
			}

			if len(fields) == 0 {
				snapshot, err := service.LoadSnapshot()
				if err != nil {
					return err
				}
				fields, err = service.FieldsForDeck(deck, snapshot)
				if err != nil {
					return err
				}
				log.Debug("Using fields from deck's note type: %v", fields)
			}

			if out == "" {
				dir := cfg.OutputDir
				if dir == "" {
					dir = utils.GetDefaultOutputDir()
				}
				out = filepath.Join(dir, utils.SanitizeFilename(deck)+"_export.txt")
			}

			count, err := service.ExportNotes(anki.ExportOptions{
				Deck:        deck,
				IncludeTags: includeTags,
				ExcludeTags: excludeTags,
				Fields:      fields,
			}, out)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d notes to %s\n", count, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&deck, "deck", "d", "", "deck to export (required)")
	cmd.Flags().StringSliceVar(&includeTags, "include-tags", nil, "only notes carrying one of these tags ('untagged' matches notes with no tags)")
	cmd.Flags().StringSliceVar(&excludeTags, "exclude-tags", nil, "skip notes carrying any of these tags")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "field names to export (default: the deck's note type fields)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output TSV path (default: <output_dir>/<deck>_export.txt)")
	_ = cmd.MarkFlagRequired("deck")
	return cmd
}
