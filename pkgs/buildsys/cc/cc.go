// Package cc compiles C translation units into a static archive with the
// host C toolchain.
package cc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goplus/qjsys/internal/config"
	"github.com/goplus/qjsys/internal/proc"
	"github.com/goplus/qjsys/pkgs/buildsys"
	"github.com/qiniu/x/log"
)

// CompileError reports a failed compiler or archiver run. Output is the
// tool's own diagnostics, unmodified.
type CompileError struct {
	Unit    string
	Command string
	Output  string
	Err     error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile %s: %v", e.Unit, e.Err)
	if e.Command != "" {
		msg += "\ncommand: " + e.Command
	}
	if e.Output != "" {
		msg += "\n\n" + e.Output
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }

// Toolchain is the compiler and archiver of one platform.
type Toolchain struct {
	Platform config.Platform
	CC       string
	AR       string
	CFlags   []string // ambient flags, from CFLAGS
	Runner   proc.Runner

	supported map[string]bool
}

// NewToolchain returns the toolchain described by c.
func NewToolchain(c *config.BuildContext, r proc.Runner) *Toolchain {
	return &Toolchain{
		Platform: c.Platform,
		CC:       c.CC,
		AR:       c.AR,
		CFlags:   c.CFlags,
		Runner:   r,
	}
}

type define struct {
	key, value string
}

// Build collects translation units and their flags.
type Build struct {
	tc        *Toolchain
	sourceDir string
	outDir    string
	files     []string
	defines   []define
	includes  []string
	flags     []string
	probe     []string
	optLevel  string
	pinned    bool
	env       map[string]string
}

var _ buildsys.BuildSystem = (*Build)(nil)

// New returns a Build writing objects and the archive below outDir.
func New(tc *Toolchain, outDir string) *Build {
	return &Build{
		tc:       tc,
		outDir:   outDir,
		optLevel: "0",
		env:      map[string]string{},
	}
}

// Source sets the dir relative file names are resolved against.
func (b *Build) Source(dir string) { b.sourceDir = dir }

// Env sets key for every compiler and archiver run of b.
func (b *Build) Env(key, val string) { b.env[key] = val }

func (b *Build) File(name string) *Build {
	if !filepath.IsAbs(name) && b.sourceDir != "" {
		name = filepath.Join(b.sourceDir, name)
	}
	b.files = append(b.files, name)
	return b
}

func (b *Build) Files(names ...string) *Build {
	for _, name := range names {
		b.File(name)
	}
	return b
}

// Define adds a preprocessor define; an empty value defines key alone.
func (b *Build) Define(key, value string) *Build {
	b.defines = append(b.defines, define{key, value})
	return b
}

func (b *Build) Include(dir string) *Build {
	b.includes = append(b.includes, dir)
	return b
}

// Flag adds a flag unconditionally.
func (b *Build) Flag(flag string) *Build {
	b.flags = append(b.flags, flag)
	return b
}

// FlagIfSupported adds a flag when a probe compile with it succeeds.
func (b *Build) FlagIfSupported(flag string) *Build {
	b.probe = append(b.probe, flag)
	return b
}

// OptLevel sets the optimization level. Ambient CFLAGS may still override
// it.
func (b *Build) OptLevel(level string) *Build {
	b.optLevel = level
	b.pinned = false
	return b
}

// PinOptLevel sets the optimization level and drops every optimization flag
// found in the ambient CFLAGS.
func (b *Build) PinOptLevel(level string) *Build {
	b.optLevel = level
	b.pinned = true
	return b
}

// Compile compiles every file, one process at a time, and archives the
// objects. name follows the "quickjs" or "libquickjs.a" conventions.
func (b *Build) Compile(ctx context.Context, name string) (*buildsys.Archive, error) {
	link, file := archiveNames(b.tc.Platform, name)
	if len(b.files) == 0 {
		return nil, &CompileError{Unit: link, Err: fmt.Errorf("no input files")}
	}
	objDir := filepath.Join(b.outDir, link+".objs")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return nil, &CompileError{Unit: link, Err: err}
	}

	ambient := b.tc.CFlags
	if b.pinned {
		kept, dropped, err := stripOptLevel(b.tc.Platform, ambient)
		if err != nil {
			return nil, &CompileError{Unit: link, Err: fmt.Errorf("parse CFLAGS: %w", err)}
		}
		for _, f := range dropped {
			log.Warnf("%s: ignoring %s from CFLAGS, optimization level is pinned to %s", link, f, b.optLevel)
		}
		ambient = kept
	}

	flags := append([]string(nil), b.flags...)
	for _, f := range b.probe {
		ok, err := b.tc.supports(ctx, objDir, f)
		if err != nil {
			return nil, err
		}
		if ok {
			flags = append(flags, f)
		} else {
			log.Debugf("%s: %s not supported by %s", link, f, b.tc.CC)
		}
	}

	objects := make([]string, 0, len(b.files))
	for _, src := range b.files {
		if _, err := os.Stat(src); err != nil {
			return nil, &CompileError{Unit: src, Err: err}
		}
		obj := filepath.Join(objDir, objectName(b.tc.Platform, src))
		cmd := proc.Command{
			Path: b.tc.CC,
			Args: b.compileArgs(ambient, flags, src, obj),
			Dir:  b.outDir,
			Env:  b.env,
		}
		if err := b.tc.run(ctx, src, cmd); err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}

	out := filepath.Join(b.outDir, file)
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return nil, &CompileError{Unit: link, Err: err}
	}
	if err := b.tc.run(ctx, link, proc.Command{
		Path: b.tc.AR,
		Args: archiveArgs(b.tc.Platform, out, objects),
		Dir:  b.outDir,
		Env:  b.env,
	}); err != nil {
		return nil, err
	}

	a := &buildsys.Archive{Name: link, Path: out, Objects: objects}
	if fi, err := os.Stat(out); err == nil {
		a.Size = fi.Size()
	}
	log.Infof("Built %s (%d units, %s)", file, len(objects), humanize.Bytes(uint64(a.Size)))
	return a, nil
}

func (b *Build) compileArgs(ambient, flags []string, src, obj string) []string {
	var args []string
	if b.tc.Platform == config.WindowsMSVC {
		args = append(args, "-nologo", "-c", "-MD", optFlag(b.tc.Platform, b.optLevel))
	} else {
		args = append(args, "-c", optFlag(b.tc.Platform, b.optLevel),
			"-ffunction-sections", "-fdata-sections", "-fPIC")
	}
	args = append(args, ambient...)
	for _, dir := range b.includes {
		args = append(args, "-I"+dir)
	}
	for _, d := range b.defines {
		if d.value == "" {
			args = append(args, "-D"+d.key)
		} else {
			args = append(args, "-D"+d.key+"="+d.value)
		}
	}
	args = append(args, flags...)
	if b.tc.Platform == config.WindowsMSVC {
		return append(args, "-Fo"+obj, src)
	}
	return append(args, "-o", obj, src)
}

func (tc *Toolchain) run(ctx context.Context, unit string, cmd proc.Command) error {
	log.Debugf("%s", cmd)
	res, err := tc.Runner.Run(ctx, cmd)
	if err != nil {
		return &CompileError{Unit: unit, Command: cmd.String(), Err: err}
	}
	if !res.Success() {
		return &CompileError{
			Unit:    unit,
			Command: cmd.String(),
			Output:  string(res.Output),
			Err:     fmt.Errorf("%s exited with status %d", cmd.Path, res.ExitCode),
		}
	}
	if len(res.Output) > 0 {
		log.Debugf("%s", res.Output)
	}
	return nil
}

// supports probe-compiles an empty program with flag. Results are cached
// for the lifetime of the toolchain.
func (tc *Toolchain) supports(ctx context.Context, dir, flag string) (bool, error) {
	if ok, seen := tc.supported[flag]; seen {
		return ok, nil
	}
	src := filepath.Join(dir, "flag_check.c")
	if err := os.WriteFile(src, []byte("int main(void) { return 0; }\n"), 0o644); err != nil {
		return false, &CompileError{Unit: src, Err: err}
	}
	obj := filepath.Join(dir, objectName(tc.Platform, src))
	var args []string
	if tc.Platform == config.WindowsMSVC {
		args = []string{"-nologo", flag, "-c", "-Fo" + obj, src}
	} else {
		args = []string{"-Werror", flag, "-c", "-o", obj, src}
	}
	res, err := tc.Runner.Run(ctx, proc.Command{Path: tc.CC, Args: args, Dir: dir})
	if err != nil {
		return false, &CompileError{Unit: src, Command: tc.CC, Err: err}
	}
	if tc.supported == nil {
		tc.supported = map[string]bool{}
	}
	tc.supported[flag] = res.Success()
	return res.Success(), nil
}

func archiveArgs(p config.Platform, out string, objects []string) []string {
	if p == config.WindowsMSVC {
		return append([]string{"-nologo", "-out:" + out}, objects...)
	}
	return append([]string{"crs", out}, objects...)
}

// archiveNames splits name into the link name and the archive file name.
func archiveNames(p config.Platform, name string) (link, file string) {
	if p == config.WindowsMSVC {
		link = strings.TrimSuffix(name, ".lib")
		return link, link + ".lib"
	}
	if strings.HasPrefix(name, "lib") && strings.HasSuffix(name, ".a") {
		return name[len("lib") : len(name)-len(".a")], name
	}
	return name, "lib" + name + ".a"
}

// ArchiveFile returns the file name Compile gives the archive name on p.
func ArchiveFile(p config.Platform, name string) string {
	_, file := archiveNames(p, name)
	return file
}

func objectName(p config.Platform, src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if p == config.WindowsMSVC {
		return base + ".obj"
	}
	return base + ".o"
}
