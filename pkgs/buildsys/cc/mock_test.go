package cc

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/qjsys/internal/proc"
)

// fakeToolchain records every command and produces the files a real
// compiler and archiver would.
type fakeToolchain struct {
	cmds      []proc.Command
	fail      string          // source whose compile exits 1
	rejected  map[string]bool // flags the probe compile rejects
	probes    int
}

func (f *fakeToolchain) Run(_ context.Context, c proc.Command) (*proc.Result, error) {
	f.cmds = append(f.cmds, c)
	if strings.HasSuffix(lastArg(c.Args), "flag_check.c") {
		f.probes++
		for _, a := range c.Args {
			if f.rejected[a] {
				return &proc.Result{ExitCode: 1, Output: []byte("unknown flag " + a)}, nil
			}
		}
		return &proc.Result{}, nil
	}
	switch c.Path {
	case "cc", "cl":
		src := lastArg(c.Args)
		if f.fail != "" && filepath.Base(src) == f.fail {
			return &proc.Result{ExitCode: 1, Output: []byte(src + ":1:1: error: boom")}, nil
		}
		if err := os.WriteFile(outputOf(c.Args), []byte("obj"), 0o644); err != nil {
			return nil, err
		}
	case "ar":
		if err := os.WriteFile(c.Args[1], []byte("!<arch>\n"), 0o644); err != nil {
			return nil, err
		}
	case "lib":
		if err := os.WriteFile(strings.TrimPrefix(c.Args[1], "-out:"), []byte("lib"), 0o644); err != nil {
			return nil, err
		}
	}
	return &proc.Result{}, nil
}

func (f *fakeToolchain) compiles() (ret []proc.Command) {
	for _, c := range f.cmds {
		if (c.Path == "cc" || c.Path == "cl") && !strings.HasSuffix(lastArg(c.Args), "flag_check.c") {
			ret = append(ret, c)
		}
	}
	return
}

func lastArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

func outputOf(args []string) string {
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, "-Fo") {
			return a[len("-Fo"):]
		}
	}
	return ""
}
