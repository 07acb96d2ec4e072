package bindgen

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qiniu/x/log"
	"modernc.org/cc/v4"
)

// CC is an Engine backed by the modernc.org/cc/v4 front end. It needs a
// host C compiler to learn the predefined macros and system include paths.
type CC struct {
	GOOS, GOARCH string   // default to the host
	Opts         []string // extra flags for the host compiler probe
}

var _ Engine = (*CC)(nil)

func (e *CC) Parse(ctx context.Context, req *Request) ([]Decl, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg, err := cc.NewConfig(e.GOOS, e.GOARCH, e.Opts...)
	if err != nil {
		return nil, err
	}
	cfg.Header = true
	cfg.EvalAllMacros = true

	own := append([]string{filepath.Dir(req.Header)}, req.IncludeDirs...)
	cfg.IncludePaths = append([]string{""}, own...)
	cfg.IncludePaths = append(cfg.IncludePaths, cfg.HostIncludePaths...)
	cfg.IncludePaths = append(cfg.IncludePaths, cfg.HostSysIncludePaths...)
	cfg.SysIncludePaths = append(append([]string(nil), own...), cfg.HostSysIncludePaths...)

	sources := []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
	}
	if defs := buildDefs(req.Defines); defs != "" {
		sources = append(sources, cc.Source{Name: "<command-line>", Value: defs})
	}
	sources = append(sources, cc.Source{Name: req.Header})
	ast, err := cc.Translate(cfg, sources)
	if err != nil {
		return nil, err
	}

	inScope := func(file string) bool {
		for _, dir := range own {
			if rel, err := filepath.Rel(dir, file); err == nil && !strings.HasPrefix(rel, "..") {
				return true
			}
		}
		return false
	}

	var decls []Decl
	for name, m := range ast.Macros {
		if m.IsFnLike || !m.IsConst || isSystemMacro(name) {
			continue
		}
		if !req.WillParse(name) {
			log.Debugf("bindgen: ignoring macro %s", name)
			continue
		}
		pos := m.Position()
		if !inScope(pos.Filename) {
			continue
		}
		if v, ok := goLiteral(m.Value()); ok {
			decls = append(decls, Decl{Kind: Const, Name: name, Value: v, Pos: posString(pos.Filename, pos.Line)})
		}
	}

	for n := ast.TranslationUnit; n != nil; n = n.TranslationUnit {
		ed := n.ExternalDeclaration
		if ed == nil || ed.Case != cc.ExternalDeclarationDecl || ed.Declaration == nil {
			continue
		}
		for l := ed.Declaration.InitDeclaratorList; l != nil; l = l.InitDeclaratorList {
			if l.InitDeclarator == nil || l.InitDeclarator.Declarator == nil {
				continue
			}
			d := l.InitDeclarator.Declarator
			name := d.Name()
			pos := d.Position()
			if name == "" || isSystemMacro(name) || !inScope(pos.Filename) {
				continue
			}
			t := d.Type()
			switch {
			case d.IsTypename():
				decls = append(decls, Decl{Kind: Type, Name: name, CType: t.String(), Pos: posString(pos.Filename, pos.Line)})
			case t.Kind() == cc.Function && !d.IsStatic():
				decls = append(decls, Decl{Kind: Func, Name: name, CType: t.String(), Pos: posString(pos.Filename, pos.Line)})
			}
		}
	}
	return decls, nil
}

func goLiteral(v cc.Value) (string, bool) {
	switch x := v.(type) {
	case cc.Int64Value:
		return strconv.FormatInt(int64(x), 10), true
	case cc.UInt64Value:
		return strconv.FormatUint(uint64(x), 10), true
	case cc.Float64Value:
		f := float64(x)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return "", false
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, true
	case cc.StringValue:
		return strconv.Quote(strings.TrimSuffix(string(x), "\x00")), true
	}
	return "", false
}

func buildDefs(defines []string) string {
	var a []string
	for _, v := range defines {
		if k, val, ok := strings.Cut(v, "="); ok {
			a = append(a, fmt.Sprintf("#define %s %s", k, val))
			continue
		}
		a = append(a, fmt.Sprintf("#define %s 1", v))
	}
	return strings.Join(a, "\n")
}

func posString(file string, line int) string {
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
