package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndOpenWorkspace(t *testing.T) {
	local, err := NewLocal(t.TempDir(), time.Hour)
	require.NoError(t, err)
	defer local.Close()

	ws, err := local.Create("job-1")
	require.NoError(t, err)
	assert.DirExists(t, ws.InDir)
	assert.DirExists(t, ws.OutDir)

	path, err := ws.SaveInput("001_a.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.InDir, "001_a.pdf"), path)
	assert.FileExists(t, path)

	copied, err := ws.CopyInput("002_b.pdf", path)
	require.NoError(t, err)
	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
	_, err = ws.CopyInput("002_b.pdf", filepath.Join(ws.InDir, "missing.pdf"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = local.Create("job-1")
	assert.Error(t, err, "creating the same job twice fails")

	opened, err := local.Open("job-1")
	require.NoError(t, err)
	assert.Equal(t, ws.Dir, opened.Dir)

	_, err = local.Open("job-2")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRejectsUnsafeNames(t *testing.T) {
	local, err := NewLocal(t.TempDir(), time.Hour)
	require.NoError(t, err)

	for _, id := range []string{"", ".", "..", "../etc", "a/b", `a\b`} {
		_, err := local.Create(id)
		assert.ErrorIs(t, err, ErrInvalidJobID, id)
	}

	ws, err := local.Create("job")
	require.NoError(t, err)
	_, err = ws.SaveInput("../escape.pdf", []byte("x"))
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":           "report.pdf",
		"../../etc/passwd":     "passwd",
		`C:\docs\final v2.pdf`: "final_v2.pdf",
		"..hidden.pdf":         "hidden.pdf",
		"":                     "file",
		"レポート.pdf":             "____.pdf",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeName(in), in)
	}
}

func TestScheduleRemoval(t *testing.T) {
	local, err := NewLocal(t.TempDir(), 20*time.Millisecond)
	require.NoError(t, err)

	ws, err := local.Create("job-1")
	require.NoError(t, err)
	require.NoError(t, local.ScheduleRemoval("job-1"))
	assert.Equal(t, 1, local.Pending())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(ws.Dir)
		return errors.Is(err, fs.ErrNotExist)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return local.Pending() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRemoveCancelsScheduledRemoval(t *testing.T) {
	local, err := NewLocal(t.TempDir(), time.Hour)
	require.NoError(t, err)

	ws, err := local.Create("job-1")
	require.NoError(t, err)
	require.NoError(t, local.ScheduleRemoval("job-1"))
	require.NoError(t, local.Remove("job-1"))
	assert.Zero(t, local.Pending())
	assert.NoDirExists(t, ws.Dir)
}

func TestZeroRetentionRemovesImmediately(t *testing.T) {
	local, err := NewLocal(t.TempDir(), 0)
	require.NoError(t, err)

	ws, err := local.Create("job-1")
	require.NoError(t, err)
	require.NoError(t, local.ScheduleRemoval("job-1"))
	assert.NoDirExists(t, ws.Dir)
}

func TestUploadsStashDropRelease(t *testing.T) {
	root := filepath.Join(t.TempDir(), "uploads")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "stale"), 0o750))

	uploads, err := NewUploads(root)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, "stale"), "leftovers from a previous run are removed")

	first, err := uploads.Stash("wiz-1", 1, "report.pdf", []byte("one"))
	require.NoError(t, err)
	second, err := uploads.Stash("wiz-1", 2, "report.pdf", []byte("two"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	require.NoError(t, uploads.Drop(first))
	assert.NoFileExists(t, first)
	require.NoError(t, uploads.Drop(first), "dropping twice is fine")
	assert.Error(t, uploads.Drop(filepath.Join(t.TempDir(), "elsewhere.pdf")))

	require.NoError(t, uploads.Release("wiz-1"))
	assert.NoDirExists(t, filepath.Join(root, "wiz-1"))

	_, err = uploads.Stash("../wiz", 1, "a.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidJobID)
}
