package patch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/qjsys/internal/proc"
)

// fakePatchTool understands a toy patch format: "require <file>" lines must
// exist in the working dir, "create <file>" lines are created.
type fakePatchTool struct {
	calls []proc.Command
}

func (f *fakePatchTool) Run(ctx context.Context, cmd proc.Command) (*proc.Result, error) {
	f.calls = append(f.calls, cmd)
	if len(cmd.Args) != 2 || cmd.Args[0] != "-i" {
		return nil, fmt.Errorf("unexpected args %v", cmd.Args)
	}
	data, err := os.ReadFile(cmd.Args[1])
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		verb, file, ok := strings.Cut(strings.TrimSpace(line), " ")
		if !ok {
			continue
		}
		p := filepath.Join(cmd.Dir, file)
		switch verb {
		case "require":
			if _, err := os.Stat(p); err != nil {
				return &proc.Result{ExitCode: 1, Output: []byte("can't find file to patch: " + file)}, nil
			}
		case "create":
			if err := os.WriteFile(p, nil, 0o644); err != nil {
				return nil, err
			}
		}
	}
	return &proc.Result{Output: []byte("patching file")}, nil
}
