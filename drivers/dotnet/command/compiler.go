// Package command compiles candidates by running an external tool that
// prints a JSON symbol dump, typically a small Roslyn host.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/emenda-labs/nuver/drivers/dotnet/symbols"
	"github.com/emenda-labs/nuver/pkg/logging"
)

// Placeholders substituted in each argument of the command line.
const (
	ProjectPlaceholder = "{project}"
	TargetPlaceholder  = "{target}"
)

// Compiler runs Command once per project and target.
type Compiler struct {
	command []string
	logger  *slog.Logger
}

// NewCompiler returns a Compiler for the given command line.
func NewCompiler(command []string, logger *slog.Logger) (*Compiler, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("compiler command is empty")
	}
	return &Compiler{command: command, logger: logging.OrDiscard(logger)}, nil
}

// Compile runs the command in the project's directory and decodes its
// standard output.
func (c *Compiler) Compile(ctx context.Context, projectPath, target string) (*symbols.Compilation, error) {
	args := make([]string, len(c.command))
	for i, arg := range c.command {
		arg = strings.ReplaceAll(arg, ProjectPlaceholder, projectPath)
		args[i] = strings.ReplaceAll(arg, TargetPlaceholder, target)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Dir(projectPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("running compiler", "args", args, "target", target)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited with code %d: %s", args[0], exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("running %s: %w", args[0], err)
	}

	comp, err := symbols.Decode(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if comp.Target == "" {
		comp.Target = target
	}
	return comp, nil
}
