// Package patch applies the local patch set to a staged workspace.
package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goplus/qjsys/internal/proc"
	"github.com/qiniu/x/log"
)

// ApplyError reports the first patch that did not apply. Patches before it
// stay applied; the workspace is rebuilt from scratch by the next run.
type ApplyError struct {
	Patch  string
	Output string
	Err    error
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("apply patch %s: %v", e.Patch, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n\n" + out
	}
	return msg
}

func (e *ApplyError) Unwrap() error { return e.Err }

// List returns the regular files of dir in application order. Symlinks are
// followed; a link that cannot be resolved is an error.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read patch dir: %w", err)
	}
	var patches []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		fi, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("read patch dir: %w", err)
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		patches = append(patches, p)
	}
	slices.SortFunc(patches, func(a, b string) int {
		return compareNames(filepath.Base(a), filepath.Base(b))
	})
	return patches, nil
}

// Applier runs the external patch tool.
type Applier struct {
	Runner proc.Runner
	Tool   string // defaults to "patch"
}

// Apply applies patches in the given order inside workspace and returns the
// canonical paths it applied. It stops at the first failure.
func (a *Applier) Apply(ctx context.Context, workspace string, patches []string) ([]string, error) {
	tool := a.Tool
	if tool == "" {
		tool = "patch"
	}
	applied := make([]string, 0, len(patches))
	for _, p := range patches {
		abs, err := canonical(p)
		if err != nil {
			return applied, &ApplyError{Patch: p, Err: err}
		}
		log.Infof("Applying %s...", filepath.Base(p))
		res, err := a.Runner.Run(ctx, proc.Command{
			Path: tool,
			Args: []string{"-i", abs},
			Dir:  workspace,
		})
		if err != nil {
			return applied, &ApplyError{Patch: abs, Err: err}
		}
		if !res.Success() {
			return applied, &ApplyError{
				Patch:  abs,
				Output: string(res.Output),
				Err:    fmt.Errorf("%s exited with status %d", tool, res.ExitCode),
			}
		}
		applied = append(applied, abs)
	}
	return applied, nil
}

func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
