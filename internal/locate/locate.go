// Package locate finds a pre-installed QuickJS static library.
package locate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/qjsys/internal/config"
	"github.com/goplus/qjsys/internal/env"
)

// DefaultCandidates returns the well-known installation dirs for p, in probe
// order.
func DefaultCandidates(p config.Platform) []string {
	if p == config.WindowsMSVC {
		return nil
	}
	return []string{"/usr/lib/quickjs", "/usr/local/lib/quickjs"}
}

// ArchiveName is the static library file expected in a candidate dir.
func ArchiveName(p config.Platform) string {
	if p == config.WindowsMSVC {
		return "quickjs.lib"
	}
	return "libquickjs.a"
}

// NotFoundError reports that no candidate dir held the library.
type NotFoundError struct {
	Archive string
	Probed  []string
	EnvVar  string
}

func (e *NotFoundError) Error() string {
	probed := "no candidate locations"
	if len(e.Probed) > 0 {
		probed = "probed " + strings.Join(e.Probed, ", ")
	}
	return fmt.Sprintf("quickjs library %s could not be found (%s); set %s to its directory", e.Archive, probed, e.EnvVar)
}

// Locator resolves the dir of an installed library.
type Locator struct {
	Override    string
	HasOverride bool
	Candidates  []string
	Archive     string

	// Stat defaults to os.Stat.
	Stat func(name string) (os.FileInfo, error)
}

// New returns a Locator configured from c.
func New(c *config.BuildContext) *Locator {
	return &Locator{
		Override:    c.LibraryOverride,
		HasOverride: c.HasLibraryOverride,
		Candidates:  DefaultCandidates(c.Platform),
		Archive:     ArchiveName(c.Platform),
	}
}

// Locate returns the override unchecked when one is set, otherwise the first
// candidate dir containing the archive.
func (l *Locator) Locate() (string, error) {
	if l.HasOverride {
		return l.Override, nil
	}
	stat := l.Stat
	if stat == nil {
		stat = os.Stat
	}
	probed := make([]string, 0, len(l.Candidates))
	for _, dir := range l.Candidates {
		p := filepath.Join(dir, l.Archive)
		probed = append(probed, p)
		if fi, err := stat(p); err == nil && !fi.IsDir() {
			return dir, nil
		}
	}
	return "", &NotFoundError{Archive: l.Archive, Probed: probed, EnvVar: env.LibraryPath}
}
