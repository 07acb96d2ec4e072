package internal

import (
	"os"

	"github.com/goplus/qjsys/internal/bindgen"
	"github.com/goplus/qjsys/internal/build"
	"github.com/goplus/qjsys/internal/proc"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build QuickJS and generate the Go declarations",
	Long: `Build resolves the build mode, links the system library or compiles the
vendored sources, generates the Go declarations and prints the link
directives to stdout.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	c, err := loadContext(cmd)
	if err != nil {
		return err
	}
	runner := &proc.Exec{}
	if verbose {
		runner.Tee = os.Stderr
	}
	res, err := build.Run(cmd.Context(), &build.Options{
		Context: c,
		Runner:  runner,
		Engine:  &bindgen.CC{},
		Stdout:  cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	log.Infof("Done: %d archives, bindings in %s", len(res.Archives), res.Bindings.Path)
	return nil
}
