package bindgen

import (
	"context"
	"errors"
)

type fakeMacro struct {
	name, value string
}

// fakeEngine reports a fixed set of declarations and honors the macro
// callbacks the way a real engine does.
type fakeEngine struct {
	macros []fakeMacro
	decls  []Decl
	err    error

	asked []string
	req   *Request
}

func (e *fakeEngine) Parse(ctx context.Context, req *Request) ([]Decl, error) {
	e.req = req
	if e.err != nil {
		return nil, e.err
	}
	var decls []Decl
	for _, m := range e.macros {
		e.asked = append(e.asked, m.name)
		if req.WillParse(m.name) {
			decls = append(decls, Decl{Kind: Const, Name: m.name, Value: m.value})
		}
	}
	return append(decls, e.decls...), nil
}

var errParse = errors.New("wrapper.h:3:1: unexpected token")

func quickjsEngine() *fakeEngine {
	return &fakeEngine{
		macros: []fakeMacro{
			{"JS_TAG_INT", "0"},
			{"QJS_VERSION", `"2021-03-27"`},
			{"FP_NAN", "0"},
			{"JS_TAG_BOOL", "1"},
			{"FP_ZERO", "2"},
		},
		decls: []Decl{
			{Kind: Type, Name: "JSRuntime", CType: "struct JSRuntime"},
			{Kind: Func, Name: "JS_NewRuntime", CType: "JSRuntime *(void)"},
			{Kind: Type, Name: "JSContext", CType: "struct JSContext"},
			{Kind: Func, Name: "JS_NewContext", CType: "JSContext *(JSRuntime *)"},
			{Kind: Type, Name: "JSRuntime", CType: "struct JSRuntime"},
		},
	}
}
