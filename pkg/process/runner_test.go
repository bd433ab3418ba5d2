package process

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(script string) Spec {
	return Spec{Name: "test", Command: "sh", Args: []string{"-c", script}}
}

func TestRunCapturesOutput(t *testing.T) {
	res, err := NewOSRunner().Run(context.Background(), sh("echo hello; echo oops >&2"), 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "hello")
	assert.Contains(t, res.Output, "oops")
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunFailure(t *testing.T) {
	res, err := NewOSRunner().Run(context.Background(), sh("echo broken; exit 3"), 5*time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "broken")
}

func TestRunTimeout(t *testing.T) {
	started := time.Now()
	_, err := NewOSRunner().Run(context.Background(), sh("sleep 30"), 200*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(started), 10*time.Second)
}

func TestRunPassesEnvAndDir(t *testing.T) {
	dir := t.TempDir()
	spec := sh(`echo "$GREETING"; pwd`)
	spec.Env = []string{"GREETING=olá"}
	spec.Dir = dir

	res, err := NewOSRunner().Run(context.Background(), spec, 5*time.Second)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "olá")
	assert.Contains(t, res.Output, dir)
}

func TestStartAndStop(t *testing.T) {
	h, err := NewOSRunner().Start(sh("echo up; sleep 30"))
	require.NoError(t, err)
	assert.Greater(t, h.Pid(), 0)

	require.NoError(t, h.Stop(2*time.Second))
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after Stop")
	}

	// stopping twice is fine
	assert.NoError(t, h.Stop(time.Second))
}

func TestKillPortWithNothingListening(t *testing.T) {
	if _, err := exec.LookPath("lsof"); err != nil {
		t.Skip("lsof not installed")
	}
	assert.NoError(t, NewOSRunner().KillPort(context.Background(), 39999))
	assert.Error(t, NewOSRunner().KillPort(context.Background(), 0))
}

func TestKillPortWithoutLsofFails(t *testing.T) {
	r := &OSRunner{lsof: "turion-lsof-missing"}
	err := r.KillPort(context.Background(), 39999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortLookupUnavailable)
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	b := newTailBuffer(5)
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("defg"))
	assert.Equal(t, "cdefg", b.String())
	_, _ = b.Write([]byte(strings.Repeat("z", 10)))
	assert.Equal(t, "zzzzz", b.String())
}
