package lock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "muster.lock")
	l, err := Acquire(lockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	pid, err := ReadPID(lockPath)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, lockPath, l.Path())
}

func TestAcquireSecondHolderFails(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "muster.lock")
	l, err := Acquire(lockPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Release() })

	_, err = Acquire(lockPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "held by pid")
}

func TestAcquireAfterRelease(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "muster.lock")
	l, err := Acquire(lockPath)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	require.NoError(t, l.Release()) // idempotent

	l2, err := Acquire(lockPath)
	require.NoError(t, err)
	_ = l2.Release()
}

func TestAcquireEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := Acquire("")
	assert.Error(t, err)
}

func TestReadPIDGarbage(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "muster.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("not-a-pid\n"), 0o644))

	_, err := ReadPID(lockPath)
	assert.Error(t, err)
}
