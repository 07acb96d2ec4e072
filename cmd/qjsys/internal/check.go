package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Resolve the build configuration without building",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	c, err := loadContext(cmd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "mode:     %s\n", c.Mode)
	fmt.Fprintf(w, "platform: %s\n", c.Platform)
	fmt.Fprintf(w, "features: %s\n", c.Features)
	fmt.Fprintf(w, "project:  %s\n", c.ProjectDir)
	fmt.Fprintf(w, "out:      %s\n", c.OutDir)
	return nil
}
