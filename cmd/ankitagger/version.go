package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankitagger/ankitagger/pkg/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersionInfo())
		},
	}
}
