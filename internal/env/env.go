package env

import (
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the pipeline. None are ever written.
const (
	LibraryPath = "QUICKJS_LIBRARY_PATH"
	ProjectDir  = "QJSYS_PROJECT_DIR"
	OutDir      = "QJSYS_OUT_DIR"
	Features    = "QJSYS_FEATURES"
	TargetEnv   = "QJSYS_TARGET_ENV"
	OptLevel    = "OPT_LEVEL"
	CC          = "CC"
	AR          = "AR"
	CFlags      = "CFLAGS"
	Patch       = "PATCH"
)

// Lookup reports the value of an environment variable and whether it is set.
type Lookup func(key string) (string, bool)

// OS looks variables up in the process environment.
func OS() Lookup { return os.LookupEnv }

// Map returns a Lookup backed by m.
func Map(m map[string]string) Lookup {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Get returns the value of key, or deflt when key is unset or empty.
func (l Lookup) Get(key, deflt string) string {
	if l == nil {
		return deflt
	}
	if v, ok := l(key); ok && v != "" {
		return v
	}
	return deflt
}

// List splits a comma separated variable, dropping blanks.
func (l Lookup) List(key string) (list []string, ok bool) {
	if l == nil {
		return nil, false
	}
	v, ok := l(key)
	if !ok {
		return nil, false
	}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	return list, true
}

// DefaultOutDir returns the output directory used when none is configured.
func DefaultOutDir(projectDir string) string {
	return filepath.Join(projectDir, "_build")
}
