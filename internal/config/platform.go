package config

import "strings"

// Platform selects the flag and define sets of the compiler invoker and the
// binding generator.
type Platform int

const (
	Unix Platform = iota
	WindowsMSVC
)

func (p Platform) String() string {
	if p == WindowsMSVC {
		return "windows-msvc"
	}
	return "unix"
}

// DetectPlatform maps host identity to a Platform. targetEnv is the target
// ABI; windows defaults to msvc, "gnu" selects the unix-like toolchain.
func DetectPlatform(goos, targetEnv string) Platform {
	if goos != "windows" {
		return Unix
	}
	switch strings.ToLower(targetEnv) {
	case "gnu", "gnullvm", "mingw":
		return Unix
	}
	return WindowsMSVC
}
