// Package cmd implements the command-line interface for hlsgate.
package cmd

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hlsgate/hlsgate/constant"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.SetOut(os.Stdout)
}

// versionCmd displays application version and build metadata.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version and build metadata",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("%s %s %s/%s\n", constant.Hlsgate, constant.Version, runtime.GOOS, runtime.GOARCH)
	},
}
