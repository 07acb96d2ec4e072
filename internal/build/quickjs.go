package build

import (
	"github.com/goplus/qjsys/internal/config"
	"github.com/goplus/qjsys/pkgs/buildsys/cc"
)

const (
	libName = "quickjs"
	auxName = "quickjs-static-functions"
)

// Core translation units of the vendored engine.
var coreUnits = []string{
	"cutils.c",
	"libbf.c",
	"libregexp.c",
	"libunicode.c",
	"quickjs.c",
}

// Flags of the engine's own Makefile, plus suppressions for warnings that
// show up on some compilers.
var unixWarnings = []string{
	"-Wchar-subscripts",
	"-Wno-array-bounds",
	"-Wno-format-truncation",
	"-Wno-missing-field-initializers",
	"-Wno-sign-compare",
	"-Wno-unused-parameter",
	"-Wundef",
	"-Wuninitialized",
	"-Wunused",
	"-Wwrite-strings",
	"-funsigned-char",
	"-Wno-cast-function-type",
	"-Wno-implicit-fallthrough",
}

// fpMacros produce invalid declarations on glibc.
var fpMacros = []string{
	"FP_INFINITE",
	"FP_NAN",
	"FP_NORMAL",
	"FP_SUBNORMAL",
	"FP_ZERO",
}

// configureCore sets up the engine build. Higher optimization levels are
// known to miscompile the engine, so the level is pinned on every platform.
// toolEnv pins the language of tool diagnostics, which end up verbatim in
// compile errors.
func toolEnv(b *cc.Build, p config.Platform) {
	if p == config.WindowsMSVC {
		b.Env("VSLANG", "1033")
		return
	}
	b.Env("LC_ALL", "C")
}

func configureCore(b *cc.Build, p config.Platform, workspace string) {
	toolEnv(b, p)
	b.Source(workspace)
	b.Files(coreUnits...)
	if p == config.WindowsMSVC {
		b.Define("JS_STRICT_NAN_BOXING", "").
			Define("_CRT_SECURE_NO_WARNINGS", "").
			Define("CONFIG_BIGNUM", "").
			FlagIfSupported("/std:c++latest").
			PinOptLevel("1")
		return
	}
	b.Define("_GNU_SOURCE", "").
		Define("CONFIG_BIGNUM", "")
	for _, f := range unixWarnings {
		b.FlagIfSupported(f)
	}
	b.PinOptLevel("2")
}

// configureAux sets up the helper unit built in every mode.
func configureAux(b *cc.Build, c *config.BuildContext) {
	toolEnv(b, c.Platform)
	b.File(c.Layout.StaticFunctions).
		Include(c.ProjectDir).
		OptLevel(c.OptLevel)
	if c.Platform == config.WindowsMSVC {
		b.Define("JS_STRICT_NAN_BOXING", "").
			Define("_CRT_SECURE_NO_WARNINGS", "").
			FlagIfSupported("/std:c++latest")
	}
}
