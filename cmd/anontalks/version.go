package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memohai/anontalks/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		info := version.Get()
		fmt.Fprintf(cmd.OutOrStdout(), "anontalks %s %s\n", info, info.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
