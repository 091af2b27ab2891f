package cmdexec

import (
	"context"
	stderrors "errors"
	"os/exec"
	"testing"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_MissingCommand(t *testing.T) {
	r := NewRunner()
	assert.False(t, r.Exists("hostpulse-no-such-tool"))

	_, err := r.Output(context.Background(), "hostpulse-no-such-tool")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrCommandNotFound))
	assert.True(t, stderrors.Is(err, errors.ErrUnavailable))
}

func TestRunner_Output(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	out, err := NewRunner().Output(context.Background(), "echo", "42")
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(out))
}

func TestRunner_CancelledContext(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewRunner().Output(ctx, "sleep", "5")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 4*time.Second)
}
