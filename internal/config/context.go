package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/goplus/qjsys/internal/env"
	"github.com/kballard/go-shellquote"
)

// Default project layout, relative to the project dir.
const (
	DefaultVendor          = "embed/quickjs"
	DefaultPatches         = "embed/patches"
	DefaultHeader          = "wrapper.h"
	DefaultStaticFunctions = "static-functions.c"
	DefaultPackage         = "quickjs"
	DefaultDirectivePrefix = "qjsys:"
)

// Layout holds the absolute paths of the project inputs.
type Layout struct {
	Vendor          string // vendored source tree
	Patches         string // patch directory, read in patched mode only
	Header          string // binding entry point
	StaticFunctions string // auxiliary translation unit
}

// BuildContext carries every environment input and path a stage needs.
// Stages never consult the process environment themselves.
//
// The workspace below OutDir is owned by a single build; running two builds
// against the same OutDir concurrently is not supported.
type BuildContext struct {
	ProjectDir string
	OutDir     string
	Layout     Layout

	LibraryOverride    string
	HasLibraryOverride bool

	OptLevel string // ambient optimization level (OPT_LEVEL)
	CC       string
	AR       string
	Patch    string
	CFlags   []string

	Platform Platform
	Features Features
	Mode     Mode

	Package         string
	CgoLink         bool
	DirectivePrefix string
}

// Workspace is the disposable staging dir for the vendored sources.
func (c *BuildContext) Workspace() string { return filepath.Join(c.OutDir, "quickjs") }

// BindingsPath is where the generated declarations are written.
func (c *BuildContext) BindingsPath() string { return filepath.Join(c.OutDir, "bindings.go") }

// ManifestPath is where the workspace manifest is written.
func (c *BuildContext) ManifestPath() string { return filepath.Join(c.OutDir, "quickjs.manifest.json") }

// CgoLinkPath is where the cgo link file is written when CgoLink is set.
func (c *BuildContext) CgoLinkPath() string { return filepath.Join(c.OutDir, "zz_cgo_link.go") }

// LoadOptions are the explicit inputs of Load. Explicit values win over the
// environment, which wins over the project file.
type LoadOptions struct {
	ProjectDir string
	OutDir     string
	Features   []string // nil when not given explicitly
	Lookup     env.Lookup
	GOOS       string // defaults to runtime.GOOS
}

// Load resolves the build mode and assembles a BuildContext. It reads the
// project file but performs no writes and spawns no processes.
func Load(opts LoadOptions) (*BuildContext, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = env.OS()
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = lookup.Get(env.ProjectDir, "")
	}
	if projectDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		projectDir = wd
	}
	projectDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, err
	}

	file, err := LoadFile(filepath.Join(projectDir, FileName))
	if err != nil {
		return nil, err
	}

	names := opts.Features
	if names == nil {
		if list, ok := lookup.List(env.Features); ok {
			names = list
		} else if file.Features != nil {
			names = file.Features
		} else {
			names = DefaultFeatures
		}
	}
	features, err := ParseFeatures(names)
	if err != nil {
		return nil, err
	}
	mode, err := Resolve(features)
	if err != nil {
		return nil, err
	}

	outDir := opts.OutDir
	if outDir == "" {
		outDir = lookup.Get(env.OutDir, env.DefaultOutDir(projectDir))
	}
	if outDir, err = filepath.Abs(outDir); err != nil {
		return nil, err
	}

	platform := DetectPlatform(goos, lookup.Get(env.TargetEnv, ""))

	cflags, err := shellquote.Split(lookup.Get(env.CFlags, ""))
	if err != nil {
		return nil, &Error{Flags: []string{env.CFlags}, Reason: fmt.Sprintf("cannot split: %v", err)}
	}

	c := &BuildContext{
		ProjectDir: projectDir,
		OutDir:     outDir,
		Layout: Layout{
			Vendor:          projectPath(projectDir, file.Vendor, DefaultVendor),
			Patches:         projectPath(projectDir, file.Patches, DefaultPatches),
			Header:          projectPath(projectDir, file.Header, DefaultHeader),
			StaticFunctions: projectPath(projectDir, file.StaticFunctions, DefaultStaticFunctions),
		},
		OptLevel:        lookup.Get(env.OptLevel, "0"),
		CC:              lookup.Get(env.CC, defaultCC(platform)),
		AR:              lookup.Get(env.AR, defaultAR(platform)),
		Patch:           lookup.Get(env.Patch, "patch"),
		CFlags:          cflags,
		Platform:        platform,
		Features:        features,
		Mode:            mode,
		Package:         DefaultPackage,
		CgoLink:         true,
		DirectivePrefix: DefaultDirectivePrefix,
	}
	c.LibraryOverride, c.HasLibraryOverride = lookup(env.LibraryPath)
	if file.Package != "" {
		c.Package = file.Package
	}
	if file.CgoLink != nil {
		c.CgoLink = *file.CgoLink
	}
	if file.DirectivePrefix != nil {
		c.DirectivePrefix = *file.DirectivePrefix
	}
	return c, nil
}

func projectPath(projectDir, p, deflt string) string {
	if p == "" {
		p = deflt
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(projectDir, filepath.FromSlash(p))
}

func defaultCC(p Platform) string {
	if p == WindowsMSVC {
		return "cl"
	}
	return "cc"
}

func defaultAR(p Platform) string {
	if p == WindowsMSVC {
		return "lib"
	}
	return "ar"
}
