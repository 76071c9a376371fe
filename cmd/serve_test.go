package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/bugboard/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	expected := filepath.Join(dir, "bugboard-serve.pid")
	assert.Equal(t, expected, pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)

	logPath := serveLogPath()
	expected := filepath.Join(dir, "bugboard-serve.log")
	assert.Equal(t, expected, logPath)
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)
	out, _ := captureUI(t)

	// No PID file exists, so status should show "not running" without error.
	err := serveStatusRun()
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "not running")
}

func TestServeStatusRun_Running(t *testing.T) {
	dir := testEnv(t)
	out, _ := captureUI(t)

	pf := daemon.NewPIDFile(filepath.Join(dir, "bugboard-serve.pid"))
	require.NoError(t, pf.Acquire(9090))
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	require.NoError(t, serveStatusRun())
	assert.Contains(t, out.String(), "localhost:9090")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStopRun_RemovesStaleFile(t *testing.T) {
	dir := testEnv(t)

	pf := daemon.NewPIDFile(filepath.Join(dir, "bugboard-serve.pid"))
	require.NoError(t, os.WriteFile(pf.Path, []byte("999999999"), 0o644))

	err := serveStopRun()
	require.Error(t, err)
	_, statErr := os.Stat(pf.Path)
	assert.True(t, os.IsNotExist(statErr), "stale PID file should be removed")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	dir := testEnv(t)

	// Record the current process (which is alive) as the server.
	pf := daemon.NewPIDFile(filepath.Join(dir, "bugboard-serve.pid"))
	require.NoError(t, pf.Acquire(8080))
	t.Cleanup(func() { _ = os.Remove(pf.Path) })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestServeStartRun_DryRun(t *testing.T) {
	testEnv(t)
	dryRun = true
	t.Cleanup(func() { dryRun = false })
	ui.DryRun = true
	_, errOut := captureUI(t)

	require.NoError(t, serveStartRun())
	assert.Contains(t, errOut.String(), "Would start")
	assert.Contains(t, errOut.String(), "serve run --port 8080")
}
