package process

import (
	"bytes"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

type exitError struct {
	err    error
	stderr string
}

func (e *exitError) Error() string { return e.err.Error() }

func TestStart_WrapsFailure(t *testing.T) {
	sh := requireShell(t)

	var tee bytes.Buffer
	cmd := exec.Command(sh, "-c", "echo boom >&2; exit 3")
	cmd.Stderr = &tee

	p, err := Start(cmd, func(err error, stderr string) error {
		return &exitError{err: err, stderr: stderr}
	})
	require.NoError(t, err)

	err = p.Wait()
	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, "boom\n", exitErr.stderr)
	require.Equal(t, "boom\n", p.Stderr())
	require.Equal(t, "boom\n", tee.String())
	require.True(t, p.Exited())
}

func TestStart_CleanExit(t *testing.T) {
	sh := requireShell(t)

	p, err := Start(exec.Command(sh, "-c", "exit 0"), nil)
	require.NoError(t, err)
	require.NoError(t, p.Wait())
	require.Empty(t, p.Stderr())
}

func TestKill(t *testing.T) {
	sh := requireShell(t)

	p, err := Start(exec.Command(sh, "-c", "exec sleep 30"), nil)
	require.NoError(t, err)
	require.False(t, p.Exited())
	require.Empty(t, p.Stderr())

	require.NoError(t, p.Kill())
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after kill")
	}
	require.True(t, p.Exited())
	require.Error(t, p.Wait())
	require.NoError(t, p.Kill())
}

func TestStart_MissingBinary(t *testing.T) {
	_, err := Start(exec.Command("/nonexistent/binary"), nil)
	require.Error(t, err)
}
