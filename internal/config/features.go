// Package config resolves the build mode and assembles the BuildContext
// every pipeline stage receives.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Feature names accepted on the command line, in QJSYS_FEATURES and in the
// project file.
const (
	FeatureSystem  = "system"
	FeatureBundled = "bundled"
	FeaturePatched = "patched"
	FeatureBindgen = "bindgen"
)

// DefaultFeatures is used when no feature list is configured anywhere.
var DefaultFeatures = []string{FeatureBundled}

// Features is the set of build switches.
type Features struct {
	System  bool
	Bundled bool
	Patched bool
	Bindgen bool
}

// ParseFeatures converts feature names into Features.
func ParseFeatures(names []string) (Features, error) {
	var f Features
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case FeatureSystem:
			f.System = true
		case FeatureBundled:
			f.Bundled = true
		case FeaturePatched:
			f.Patched = true
		case FeatureBindgen:
			f.Bindgen = true
		case "":
		default:
			return Features{}, &Error{
				Flags:  []string{name},
				Reason: "unknown feature",
			}
		}
	}
	return f, nil
}

// Names returns the enabled features, sorted.
func (f Features) Names() []string {
	var names []string
	if f.Bindgen {
		names = append(names, FeatureBindgen)
	}
	if f.Bundled {
		names = append(names, FeatureBundled)
	}
	if f.Patched {
		names = append(names, FeaturePatched)
	}
	if f.System {
		names = append(names, FeatureSystem)
	}
	sort.Strings(names)
	return names
}

func (f Features) String() string {
	return strings.Join(f.Names(), ",")
}

// Mode is how the native library is obtained.
type Mode int

const (
	SystemLinked Mode = iota + 1
	BundledUnpatched
	BundledPatched
)

func (m Mode) String() string {
	switch m {
	case SystemLinked:
		return "system"
	case BundledUnpatched:
		return "bundled"
	case BundledPatched:
		return "bundled+patched"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Bundled reports whether m compiles the vendored sources.
func (m Mode) Bundled() bool { return m == BundledUnpatched || m == BundledPatched }

// Resolve validates f and selects exactly one Mode. It has no side effects.
func Resolve(f Features) (Mode, error) {
	switch {
	case f.System && f.Bundled:
		return 0, &Error{
			Flags:  []string{FeatureSystem, FeatureBundled},
			Reason: "features are mutually exclusive",
		}
	case !f.System && !f.Bundled:
		return 0, &Error{
			Flags:  []string{FeatureSystem, FeatureBundled},
			Reason: "one of the features must be enabled",
		}
	case f.Patched && !f.Bundled:
		return 0, &Error{
			Flags:  []string{FeaturePatched, FeatureBundled},
			Reason: "patched requires bundled",
		}
	case f.System && !f.Bindgen:
		return 0, &Error{
			Flags:  []string{FeatureSystem, FeatureBindgen},
			Reason: "system requires bindgen",
		}
	}
	if f.System {
		return SystemLinked, nil
	}
	if f.Patched {
		return BundledPatched, nil
	}
	return BundledUnpatched, nil
}
