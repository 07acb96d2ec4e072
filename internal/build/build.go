// Package build drives the stages of a QuickJS build in order.
package build

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/clock"
	"github.com/goplus/qjsys/internal/bindgen"
	"github.com/goplus/qjsys/internal/config"
	"github.com/goplus/qjsys/internal/locate"
	"github.com/goplus/qjsys/internal/patch"
	"github.com/goplus/qjsys/internal/proc"
	"github.com/goplus/qjsys/internal/publish"
	"github.com/goplus/qjsys/internal/stage"
	"github.com/goplus/qjsys/pkgs/buildsys"
	"github.com/goplus/qjsys/pkgs/buildsys/cc"
	"github.com/qiniu/x/log"
)

// Options configures Run.
type Options struct {
	Context *config.BuildContext
	Runner  proc.Runner    // defaults to proc.Exec
	Engine  bindgen.Engine // defaults to bindgen.CC
	Stdout  io.Writer      // directives, defaults to os.Stdout

	// Locator overrides the locator derived from Context.
	Locator *locate.Locator
	// Clock stamps the workspace manifest; defaults to the wall clock.
	Clock clock.Clock
}

// Result describes a successful build.
type Result struct {
	Mode       config.Mode
	LibDir     string // system mode only
	Archives   []*buildsys.Archive
	Patches    []string
	Bindings   *bindgen.Result
	Manifest   *stage.Manifest
	Directives []publish.Directive
}

// Run executes the pipeline. Stages run strictly in sequence and the first
// failure aborts the build.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	c := opts.Context
	mode := c.Mode
	if mode == 0 {
		var err error
		if mode, err = config.Resolve(c.Features); err != nil {
			return nil, err
		}
	}
	runner := opts.Runner
	if runner == nil {
		runner = &proc.Exec{}
	}
	engine := opts.Engine
	if engine == nil {
		engine = &bindgen.CC{}
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewClock()
	}

	log.Infof("Building quickjs (%s, %s)", mode, c.Platform)
	res := &Result{Mode: mode}
	tc := cc.NewToolchain(c, runner)
	genOpts := &bindgen.Options{
		Header:  c.Layout.Header,
		Package: c.Package,
		Output:  c.BindingsPath(),
	}
	var libs []publish.Library

	if mode.Bundled() {
		m, err := stageSources(ctx, c, runner, mode, clk)
		if err != nil {
			return nil, err
		}
		res.Manifest = m
		res.Patches = m.Patches

		core := cc.New(tc, c.OutDir)
		configureCore(core, c.Platform, c.Workspace())
		a, err := core.Compile(ctx, libName)
		if err != nil {
			return nil, err
		}
		res.Archives = append(res.Archives, a)
		libs = append(libs, publish.Library{Name: a.Name, Dir: a.Dir()})

		genOpts.IncludeDirs = []string{c.OutDir, c.Workspace()}
		if c.Platform == config.Unix {
			genOpts.Callbacks = bindgen.NewIgnoreMacros(fpMacros...)
		}
	} else {
		l := opts.Locator
		if l == nil {
			l = locate.New(c)
		}
		dir, err := l.Locate()
		if err != nil {
			return nil, err
		}
		log.Infof("Using system quickjs in %s", dir)
		res.LibDir = dir
		libs = append(libs, publish.Library{Name: libName, Dir: dir})
		genOpts.IncludeDirs = []string{dir}
	}

	aux := cc.New(tc, c.OutDir)
	configureAux(aux, c)
	if mode.Bundled() {
		aux.Include(c.OutDir)
	} else {
		aux.Include(res.LibDir)
	}
	a, err := aux.Compile(ctx, auxName)
	if err != nil {
		return nil, err
	}
	res.Archives = append(res.Archives, a)
	libs = append(libs, publish.Library{Name: a.Name, Dir: a.Dir()})

	gen := &bindgen.Generator{Engine: engine}
	if res.Bindings, err = gen.Generate(ctx, genOpts); err != nil {
		return nil, err
	}

	if c.CgoLink {
		if err := publish.WriteCgoLink(c.CgoLinkPath(), c.Package, libs); err != nil {
			return nil, &stage.WorkspaceError{Op: "write", Path: c.CgoLinkPath(), Err: err}
		}
	}
	res.Directives = publish.Directives(libs, c.Layout.Header)
	p := &publish.Publisher{W: stdout, Prefix: c.DirectivePrefix}
	if err := p.Emit(res.Directives...); err != nil {
		return nil, err
	}
	return res, nil
}

// stageSources copies the vendored tree into a fresh workspace, applies the
// patches in patched mode and records the result.
func stageSources(ctx context.Context, c *config.BuildContext, runner proc.Runner, mode config.Mode, clk clock.Clock) (*stage.Manifest, error) {
	src := c.Layout.Vendor
	ws := c.Workspace()
	log.Infof("Staging %s", stage.Source(src))
	if err := stage.Stage(src, ws); err != nil {
		return nil, err
	}
	vendorHash, err := stage.HashTree(stage.Source(src))
	if err != nil {
		return nil, &stage.WorkspaceError{Op: "hash", Path: src, Err: err}
	}

	m := &stage.Manifest{Vendor: src, VendorHash: vendorHash}
	if mode == config.BundledPatched {
		patches, err := patch.List(c.Layout.Patches)
		if err != nil {
			return nil, &patch.ApplyError{Patch: c.Layout.Patches, Err: err}
		}
		a := &patch.Applier{Runner: runner, Tool: c.Patch}
		if m.Patches, err = a.Apply(ctx, ws, patches); err != nil {
			return nil, err
		}
	}

	if m.WorkspaceHash, err = stage.HashTree(ws); err != nil {
		return nil, &stage.WorkspaceError{Op: "hash", Path: ws, Err: err}
	}
	m.BuildTime = clk.Now()
	if err := stage.WriteManifest(c.ManifestPath(), m); err != nil {
		return nil, &stage.WorkspaceError{Op: "write", Path: c.ManifestPath(), Err: err}
	}
	return m, nil
}

// Clean removes everything Run writes below the out dir.
func Clean(c *config.BuildContext) error {
	p := c.Platform
	paths := []string{
		c.Workspace(),
		c.ManifestPath(),
		c.BindingsPath(),
		c.CgoLinkPath(),
	}
	for _, name := range []string{libName, auxName} {
		paths = append(paths,
			filepath.Join(c.OutDir, cc.ArchiveFile(p, name)),
			filepath.Join(c.OutDir, name+".objs"))
	}
	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			return &stage.WorkspaceError{Op: "remove", Path: path, Err: err}
		}
		log.Debugf("Removed %s", path)
	}
	return nil
}
