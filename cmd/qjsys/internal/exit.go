package internal

import (
	"errors"
	"fmt"
	"os"

	"github.com/goplus/qjsys/internal/bindgen"
	"github.com/goplus/qjsys/internal/config"
	"github.com/goplus/qjsys/internal/locate"
	"github.com/goplus/qjsys/internal/patch"
	"github.com/goplus/qjsys/internal/stage"
	"github.com/goplus/qjsys/pkgs/buildsys/cc"
)

// Exit codes, one per failure kind.
const (
	exitOther = 1 + iota
	exitConfig
	exitNotFound
	exitWorkspace
	exitPatch
	exitCompile
	exitBindgen
)

func exitCode(err error) int {
	var (
		configErr    *config.Error
		notFoundErr  *locate.NotFoundError
		workspaceErr *stage.WorkspaceError
		patchErr     *patch.ApplyError
		compileErr   *cc.CompileError
		bindgenErr   *bindgen.Error
	)
	switch {
	case errors.As(err, &configErr):
		return exitConfig
	case errors.As(err, &notFoundErr):
		return exitNotFound
	case errors.As(err, &workspaceErr):
		return exitWorkspace
	case errors.As(err, &patchErr):
		return exitPatch
	case errors.As(err, &compileErr):
		return exitCompile
	case errors.As(err, &bindgenErr):
		return exitBindgen
	}
	return exitOther
}

// report prints err and maps it to an exit code. It is the only place a
// build failure ends the process.
func report(err error) int {
	fmt.Fprintln(os.Stderr, "qjsys:", err)
	return exitCode(err)
}
