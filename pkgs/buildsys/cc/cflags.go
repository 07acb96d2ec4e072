package cc

import (
	"strings"

	"github.com/goplus/qjsys/internal/config"
	"modernc.org/opt"
)

// stripOptLevel removes optimization level flags from ambient compiler
// flags, keeping everything else in order.
func stripOptLevel(p config.Platform, args []string) (kept, dropped []string, err error) {
	if p == config.WindowsMSVC {
		for _, a := range args {
			if len(a) > 2 && (a[0] == '/' || a[0] == '-') && a[1] == 'O' {
				dropped = append(dropped, a)
				continue
			}
			kept = append(kept, a)
		}
		return kept, dropped, nil
	}

	norm := make([]string, len(args))
	for i, a := range args {
		if a == "-O" {
			a = "-O1"
		}
		norm[i] = a
	}
	set := opt.NewSet()
	set.Arg("O", true, func(opt, val string) error {
		dropped = append(dropped, opt+val)
		return nil
	})
	if err := set.Parse(norm, func(arg string) error {
		kept = append(kept, arg)
		return nil
	}); err != nil {
		return nil, nil, err
	}
	return kept, dropped, nil
}

// optFlag renders an optimization level for p.
func optFlag(p config.Platform, level string) string {
	if p != config.WindowsMSVC {
		return "-O" + level
	}
	switch strings.TrimSpace(level) {
	case "0", "":
		return "-Od"
	case "1", "s", "z":
		return "-O1"
	}
	return "-O2"
}
