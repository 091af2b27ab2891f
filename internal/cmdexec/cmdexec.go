// Package cmdexec abstracts running external tools so tests can swap them out.
package cmdexec

import (
	"context"
	"os/exec"

	"github.com/aleister1102/hostpulse/internal/common/errors"
)

// ErrCommandNotFound is returned when the tool is not on PATH
var ErrCommandNotFound = errors.NewError("command not found: %w", errors.ErrUnavailable)

// Runner abstracts external command execution.
type Runner interface {
	Exists(name string) bool
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// NewRunner returns a Runner backed by os/exec. Commands are killed when
// ctx is done.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Exists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, errors.WrapErrorf(ErrCommandNotFound, "%s", name)
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WrapErrorf(ctxErr, "%s abandoned", name)
		}
		return nil, errors.WrapErrorf(err, "%s failed", name)
	}
	return out, nil
}
