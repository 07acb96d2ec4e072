// Package proc runs external tools synchronously and reports their exit
// status and output as values.
package proc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sys/execabs"
)

// Command describes one child process.
type Command struct {
	Path string            // program, looked up in PATH
	Args []string          // arguments, without the program
	Dir  string            // working directory
	Env  map[string]string // overrides on top of the process environment
}

func (c Command) String() string {
	return shellquote.Join(append([]string{c.Path}, c.Args...)...)
}

// Result is the outcome of a child process that was started.
type Result struct {
	ExitCode int
	Output   []byte // combined stdout and stderr
}

// Success reports whether the child exited with status 0.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Runner runs a command to completion. An error is returned only when the
// child could not be started or waited for; a non-zero exit is reported in
// the Result.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Exec runs commands with the host OS.
type Exec struct {
	// Tee receives a copy of the child's output while it runs, if non-nil.
	Tee io.Writer
}

var _ Runner = (*Exec)(nil)

func (e *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := execabs.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = mergeEnv(os.Environ(), c.Env)
	}
	var out bytes.Buffer
	var w io.Writer = &out
	if e.Tee != nil {
		w = io.MultiWriter(&out, e.Tee)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Result{ExitCode: exitErr.ExitCode(), Output: out.Bytes()}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Result{Output: out.Bytes()}, nil
}

func mergeEnv(base []string, override map[string]string) []string {
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
