package internal

import (
	"github.com/goplus/qjsys/internal/build"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the workspace and build artifacts",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	c, err := loadContext(cmd)
	if err != nil {
		return err
	}
	return build.Clean(c)
}
