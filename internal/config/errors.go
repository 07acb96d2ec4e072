package config

import (
	"fmt"
	"strings"
)

// Error reports an invalid or incomplete feature combination.
type Error struct {
	Flags  []string // features involved in the conflict
	Reason string
}

func (e *Error) Error() string {
	if len(e.Flags) == 0 {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s (features: %s)", e.Reason, strings.Join(e.Flags, ", "))
}
