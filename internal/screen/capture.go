package screen

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// tool is one candidate screenshot command. args receives the output path.
type tool struct {
	name string
	args func(path string) []string
}

// toolBackend runs the first tool found on PATH.
type toolBackend struct {
	tools []tool
}

func (b toolBackend) grab(ctx context.Context, path string) error {
	t, err := b.pick()
	if err != nil {
		return err
	}
	return run(ctx, t.name, t.args(path)...)
}

func (b toolBackend) pick() (tool, error) {
	names := make([]string, 0, len(b.tools))
	for _, t := range b.tools {
		if _, err := exec.LookPath(t.name); err == nil {
			return t, nil
		}
		names = append(names, t.name)
	}
	return tool{}, fmt.Errorf("no screenshot tool found (install one of: %s)", strings.Join(names, ", "))
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
