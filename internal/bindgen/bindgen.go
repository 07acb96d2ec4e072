// Package bindgen turns a C header into Go declarations for cgo callers.
package bindgen

import (
	"bytes"
	"context"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qiniu/x/log"
	"golang.org/x/tools/imports"
)

// MacroBehavior tells the engine what to do with a macro.
type MacroBehavior int

const (
	MacroDefault MacroBehavior = iota
	MacroIgnore
)

// Callbacks lets the caller steer parsing. WillParseMacro is called once for
// every constant macro the preprocessor ends up with, including those from
// system headers, before the engine filters by origin.
type Callbacks interface {
	WillParseMacro(name string) MacroBehavior
}

// IgnoreMacros drops the named macros.
type IgnoreMacros map[string]struct{}

// NewIgnoreMacros returns an IgnoreMacros holding names.
func NewIgnoreMacros(names ...string) IgnoreMacros {
	m := make(IgnoreMacros, len(names))
	for _, name := range names {
		m[name] = struct{}{}
	}
	return m
}

func (m IgnoreMacros) WillParseMacro(name string) MacroBehavior {
	if _, ok := m[name]; ok {
		return MacroIgnore
	}
	return MacroDefault
}

// Kind classifies a declaration.
type Kind int

const (
	Const Kind = iota
	Type
	Func
)

func (k Kind) String() string {
	switch k {
	case Const:
		return "const"
	case Type:
		return "type"
	case Func:
		return "func"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Decl is one declaration reported by an Engine.
type Decl struct {
	Kind  Kind
	Name  string
	Value string // Go literal, consts only
	CType string // C spelling of the type, types and funcs only
	Pos   string // file:line
}

// Request is the input of an Engine.
type Request struct {
	Header      string
	IncludeDirs []string
	Defines     []string // NAME or NAME=VALUE
	Callbacks   Callbacks
}

// Engine parses a header. Implementations consult Request.Callbacks for
// every constant macro, wherever it is defined, and report declarations from
// the header and the include dirs only.
type Engine interface {
	Parse(ctx context.Context, req *Request) ([]Decl, error)
}

// WillParse reports whether a macro named name should be kept.
func (r *Request) WillParse(name string) bool {
	return r.Callbacks == nil || r.Callbacks.WillParseMacro(name) != MacroIgnore
}

// Error reports a failed binding generation step.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bindgen: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures a Generate call.
type Options struct {
	Header      string   // absolute path of the entry header
	IncludeDirs []string // extra -I dirs
	Defines     []string
	Package     string
	Output      string
	Callbacks   Callbacks
}

// Result summarizes the generated file.
type Result struct {
	Path   string
	Consts int
	Types  int
	Funcs  int
}

// Generator writes bindings produced by Engine.
type Generator struct {
	Engine Engine
}

// Generate parses opts.Header and writes the Go bindings to opts.Output.
// The output is rewritten in place; the result of identical inputs is
// byte-identical.
func (g *Generator) Generate(ctx context.Context, opts *Options) (*Result, error) {
	if _, err := os.Stat(opts.Header); err != nil {
		return nil, &Error{Op: "open", Path: opts.Header, Err: err}
	}
	decls, err := g.Engine.Parse(ctx, &Request{
		Header:      opts.Header,
		IncludeDirs: opts.IncludeDirs,
		Defines:     opts.Defines,
		Callbacks:   opts.Callbacks,
	})
	if err != nil {
		return nil, &Error{Op: "parse", Path: opts.Header, Err: err}
	}

	src, res := render(opts, decls)
	out, err := imports.Process(opts.Output, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, &Error{Op: "format", Path: opts.Output, Err: err}
	}
	if err := writeFile(opts.Output, out); err != nil {
		return nil, &Error{Op: "write", Path: opts.Output, Err: err}
	}
	res.Path = opts.Output
	log.Infof("Generated %s: %d consts, %d types, %d funcs", opts.Output, res.Consts, res.Types, res.Funcs)
	return res, nil
}

func render(opts *Options, decls []Decl) ([]byte, *Result) {
	var consts, types, funcs []Decl
	seen := make(map[string]bool)
	for _, d := range decls {
		key := d.Kind.String() + " " + d.Name
		if seen[key] {
			continue
		}
		seen[key] = true
		switch d.Kind {
		case Const:
			if d.Value != "" {
				consts = append(consts, d)
			}
		case Type:
			types = append(types, d)
		case Func:
			funcs = append(funcs, d)
		}
	}
	byName := func(a []Decl) {
		sort.SliceStable(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	}
	byName(consts)
	byName(types)
	byName(funcs)

	var b bytes.Buffer
	b.WriteString("// Code generated by qjsys. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", opts.Package)
	b.WriteString("/*\n")
	for _, dir := range includeDirs(opts) {
		fmt.Fprintf(&b, "#cgo CFLAGS: -I%s\n", filepath.ToSlash(dir))
	}
	fmt.Fprintf(&b, "#include %q\n", filepath.Base(opts.Header))
	b.WriteString("*/\nimport \"C\"\n")

	if len(consts) > 0 {
		b.WriteString("\nconst (\n")
		for _, d := range consts {
			fmt.Fprintf(&b, "%s = %s\n", goName(d.Name), d.Value)
		}
		b.WriteString(")\n")
	}
	if len(types) > 0 {
		b.WriteString("\ntype (\n")
		for _, d := range types {
			fmt.Fprintf(&b, "%s = C.%s\n", goName(d.Name), d.Name)
		}
		b.WriteString(")\n")
	}
	b.WriteString("\n// Prototypes maps each declared function to its C type.\n")
	b.WriteString("var Prototypes = map[string]string{\n")
	for _, d := range funcs {
		fmt.Fprintf(&b, "%q: %q,\n", d.Name, d.CType)
	}
	b.WriteString("}\n")
	return b.Bytes(), &Result{Consts: len(consts), Types: len(types), Funcs: len(funcs)}
}

// includeDirs puts the header's own dir first.
func includeDirs(opts *Options) []string {
	dirs := []string{filepath.Dir(opts.Header)}
	for _, dir := range opts.IncludeDirs {
		if dir != dirs[0] {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func goName(name string) string {
	if token.IsKeyword(name) {
		return "_" + name
	}
	return name
}

func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, name)
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

func isSystemMacro(name string) bool {
	return strings.HasPrefix(name, "__")
}
