package internal

import (
	"fmt"

	"github.com/goplus/qjsys/internal/locate"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the dir of the system QuickJS library",
	Long: `Locate runs the system library lookup: $QUICKJS_LIBRARY_PATH if set,
otherwise the first candidate dir holding the archive.`,
	Args: cobra.NoArgs,
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	c, err := loadContext(cmd)
	if err != nil {
		return err
	}
	dir, err := locate.New(c).Locate()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}
