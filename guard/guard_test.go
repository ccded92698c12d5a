package guard

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/autojson/errors"
	"github.com/teranos/autojson/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, logger.InitializeWithWriter(&buf, false, 0))
	t.Cleanup(func() { _ = logger.InitializeWithWriter(&bytes.Buffer{}, false, 0) })
	return &buf
}

func TestAcquireAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	flag := &MemoryFlag{}
	g := New(flag, dir)
	g.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	token, skip, err := g.Acquire()
	require.NoError(t, err)
	require.Equal(t, NotSkipped, skip)
	require.NotNil(t, token)

	assert.True(t, flag.Raised())
	info, err := ReadLock(g.LockPath())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.StartedAt.Format(time.RFC3339))
	assert.Equal(t, token.Info.RunID, info.RunID)
	assert.NotEmpty(t, info.RunID)

	token.Release()
	token.Release()
	assert.False(t, flag.Raised())
	assert.NoFileExists(t, g.LockPath())
}

func TestAcquireSkipsWhenFlagRaised(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	flag := &MemoryFlag{}
	require.NoError(t, flag.Raise())

	token, skip, err := New(flag, dir).Acquire()
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Equal(t, SkipFlagRaised, skip)
	assert.NoDirExists(t, dir, "a skipped run has no side effects")
}

func TestAcquireSkipsWhenLockPresent(t *testing.T) {
	dir := t.TempDir()
	g := New(&MemoryFlag{}, dir)
	require.NoError(t, os.WriteFile(g.LockPath(), []byte("started_at = 2026-01-01T00:00:00Z\npid = 1\n"), 0644))
	g.pidExists = func(int32) (bool, error) { return true, nil }

	token, skip, err := g.Acquire()
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Equal(t, SkipLockHeld, skip)
	assert.FileExists(t, g.LockPath())
}

func TestStaleLockIsReportedNotRemoved(t *testing.T) {
	logs := captureLogs(t)
	dir := t.TempDir()
	g := New(&MemoryFlag{}, dir)
	require.NoError(t, writeLock(g.LockPath(), LockInfo{
		StartedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		PID:       999999,
		RunID:     "dead-run",
	}))
	g.pidExists = func(pid int32) (bool, error) {
		assert.Equal(t, int32(999999), pid)
		return false, nil
	}

	_, skip, err := g.Acquire()
	require.NoError(t, err)
	assert.Equal(t, SkipLockHeld, skip)
	assert.FileExists(t, g.LockPath())
	assert.Contains(t, logs.String(), "Stale lock file")
	assert.Contains(t, logs.String(), "dead-run")
}

func TestRunReleasesOnError(t *testing.T) {
	flag := &MemoryFlag{}
	g := New(flag, t.TempDir())

	skip, err := g.Run(func() error {
		assert.FileExists(t, g.LockPath())
		assert.True(t, flag.Raised())
		return errors.New("boom")
	})
	assert.Equal(t, NotSkipped, skip)
	require.EqualError(t, err, "boom")
	assert.NoFileExists(t, g.LockPath())
	assert.False(t, flag.Raised())
}

func TestRunReleasesOnPanic(t *testing.T) {
	flag := &MemoryFlag{}
	g := New(flag, t.TempDir())

	assert.Panics(t, func() {
		_, _ = g.Run(func() error { panic("kaboom") })
	})
	assert.NoFileExists(t, g.LockPath())
	assert.False(t, flag.Raised())
}

func TestRunSkipsNestedInvocation(t *testing.T) {
	flag := &MemoryFlag{}
	g := New(flag, t.TempDir())

	var nested SkipReason
	_, err := g.Run(func() error {
		var err error
		nested, err = New(flag, t.TempDir()).Run(func() error {
			t.Fatal("nested run must not execute")
			return nil
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, SkipFlagRaised, nested)
}

func TestReleaseSwallowsRemovalFailure(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("requires POSIX permissions as a non-root user")
	}
	logs := captureLogs(t)
	dir := t.TempDir()
	flag := &MemoryFlag{}
	token, _, err := New(flag, dir).Acquire()
	require.NoError(t, err)

	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0755) })

	token.Release()
	assert.False(t, flag.Raised())
	assert.Contains(t, logs.String(), "Failed to remove lock file")
}

func TestEnvFlag(t *testing.T) {
	t.Setenv(EnvVar, "")
	flag := EnvFlag(EnvVar)
	assert.False(t, flag.Raised())
	require.NoError(t, flag.Raise())
	assert.True(t, flag.Raised())
	require.NoError(t, flag.Lower())
	assert.False(t, flag.Raised())
}

func TestEnvFlagIgnoresFalseValues(t *testing.T) {
	flag := EnvFlag(EnvVar)
	for _, value := range []string{"0", "false", "FALSE", "no", "off"} {
		t.Setenv(EnvVar, value)
		assert.False(t, flag.Raised(), "value %q", value)
	}
	for _, value := range []string{"1", "true", "TRUE"} {
		t.Setenv(EnvVar, value)
		assert.True(t, flag.Raised(), "value %q", value)
	}
}

func TestAcquireRunsWithInheritedFalseFlag(t *testing.T) {
	t.Setenv(EnvVar, "false")
	g := New(EnvFlag(EnvVar), t.TempDir())

	token, skip, err := g.Acquire()
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, NotSkipped, skip)
	token.Release()
}

func TestSkipReasonString(t *testing.T) {
	assert.Equal(t, "lock file present", SkipLockHeld.String())
	assert.Equal(t, "not skipped", NotSkipped.String())
}
