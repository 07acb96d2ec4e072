package internal

import (
	"github.com/goplus/qjsys/internal/config"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var (
	projectDir string
	outDir     string
	features   []string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "qjsys",
	Short: "qjsys builds the QuickJS engine for cgo",
	Long: `qjsys prepares the QuickJS C library for use from Go: it links a system
installation or compiles the vendored sources, generates Go declarations from
the C header and prints the link directives for the enclosing build.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutputLevel(log.Ldebug)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&projectDir, "project-dir", "C", "", "Project root holding qjsys.yaml (default: $QJSYS_PROJECT_DIR or the current dir)")
	flags.StringVarP(&outDir, "out-dir", "o", "", "Workspace and artifact dir (default: $QJSYS_OUT_DIR or <project>/_build)")
	flags.StringSliceVarP(&features, "features", "F", nil, "Build features: system, bundled, patched, bindgen")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return report(err)
	}
	return 0
}

// loadContext resolves the build context from the flags and the
// environment. Features given on the command line win over every other
// source.
func loadContext(cmd *cobra.Command) (*config.BuildContext, error) {
	opts := config.LoadOptions{
		ProjectDir: projectDir,
		OutDir:     outDir,
	}
	if cmd.Flags().Changed("features") {
		opts.Features = append([]string{}, features...)
	}
	return config.Load(opts)
}
