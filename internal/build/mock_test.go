package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/qjsys/internal/bindgen"
	"github.com/goplus/qjsys/internal/proc"
)

// fakeRunner stands in for the compiler, archiver and patch tool. Patches
// use a toy format: "require <file>" lines must exist in the working dir,
// "create <file>" lines are created.
type fakeRunner struct {
	cmds []proc.Command
}

func (f *fakeRunner) Run(ctx context.Context, c proc.Command) (*proc.Result, error) {
	f.cmds = append(f.cmds, c)
	switch c.Path {
	case "cc":
		if out := argAfter(c.Args, "-o"); out != "" {
			if err := os.WriteFile(out, []byte("obj"), 0o644); err != nil {
				return nil, err
			}
		}
	case "cl":
		for _, a := range c.Args {
			if strings.HasPrefix(a, "-Fo") {
				if err := os.WriteFile(a[len("-Fo"):], []byte("obj"), 0o644); err != nil {
					return nil, err
				}
			}
		}
	case "ar":
		if err := os.WriteFile(c.Args[1], []byte("!<arch>\n"), 0o644); err != nil {
			return nil, err
		}
	case "lib":
		if err := os.WriteFile(strings.TrimPrefix(c.Args[1], "-out:"), []byte("lib"), 0o644); err != nil {
			return nil, err
		}
	case "patch":
		return applyToyPatch(c)
	}
	return &proc.Result{}, nil
}

func applyToyPatch(c proc.Command) (*proc.Result, error) {
	data, err := os.ReadFile(c.Args[1])
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		verb, file, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		p := filepath.Join(c.Dir, file)
		switch verb {
		case "require":
			if _, err := os.Stat(p); err != nil {
				return &proc.Result{ExitCode: 1, Output: []byte("can't find file to patch: " + file)}, nil
			}
		case "create":
			if err := os.WriteFile(p, []byte("patched\n"), 0o644); err != nil {
				return nil, err
			}
		}
	}
	return &proc.Result{}, nil
}

// compiles returns the compiler runs for real translation units.
func (f *fakeRunner) compiles() (ret []proc.Command) {
	for _, c := range f.cmds {
		if c.Path != "cc" && c.Path != "cl" {
			continue
		}
		if src := c.Args[len(c.Args)-1]; !strings.HasSuffix(src, "flag_check.c") {
			ret = append(ret, c)
		}
	}
	return
}

func (f *fakeRunner) ran(path string) int {
	n := 0
	for _, c := range f.cmds {
		if c.Path == path {
			n++
		}
	}
	return n
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// fakeEngine reports one macro per entry and consults the callbacks.
type fakeEngine struct {
	macros []string
	calls  int
	req    *bindgen.Request
}

func (e *fakeEngine) Parse(ctx context.Context, req *bindgen.Request) ([]bindgen.Decl, error) {
	e.calls++
	e.req = req
	decls := []bindgen.Decl{
		{Kind: bindgen.Type, Name: "JSRuntime", CType: "struct JSRuntime"},
		{Kind: bindgen.Func, Name: "JS_NewRuntime", CType: "JSRuntime *(void)"},
	}
	for i, m := range e.macros {
		if req.WillParse(m) {
			decls = append(decls, bindgen.Decl{Kind: bindgen.Const, Name: m, Value: string(rune('0' + i))})
		}
	}
	return decls, nil
}
