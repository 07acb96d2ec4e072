// Package buildsys holds what native build helpers have in common.
package buildsys

import (
	"context"
	"path/filepath"
)

// BuildSystem captures the shared lifecycle of a native build helper.
type BuildSystem interface {
	// Dir relative source names are resolved against.
	Source(dir string)

	// Environment of the spawned tools.
	Env(key, val string)

	// Compile builds everything configured so far into a static archive
	// called name.
	Compile(ctx context.Context, name string) (*Archive, error)
}

// Archive is a static library produced by a BuildSystem.
type Archive struct {
	Name    string   // link name, e.g. "quickjs" for libquickjs.a
	Path    string   // archive file
	Objects []string // object files it was built from
	Size    int64
}

// Dir is the link search path of the archive.
func (a *Archive) Dir() string { return filepath.Dir(a.Path) }
