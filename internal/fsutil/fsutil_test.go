package fsutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, WriteFile(path, []byte("one"), 0o644))
	require.NoError(t, WriteFile(path, []byte("two"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestWriteFile_MissingDir(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "x"), []byte("x"), 0o644)
	assert.Error(t, err)
}

func TestLock_Serializes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.lock")
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := Lock(path)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, counter)
}

func TestAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	var empties []bool
	appendLine := func(line string) error {
		return AppendFile(path, 0o644, func(w io.Writer, empty bool) error {
			empties = append(empties, empty)
			_, err := io.WriteString(w, line)
			return err
		})
	}

	require.NoError(t, appendLine("header\n"))
	require.NoError(t, appendLine("row 1\n"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "header\nrow 1\n", string(got))
	assert.Equal(t, []bool{true, false}, empties)
}

func TestAppendFile_RollsBackPartialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.csv")
	require.NoError(t, os.WriteFile(path, []byte("header\nrow 1\n"), 0o644))

	diskFull := errors.New("no space left on device")
	err := AppendFile(path, 0o644, func(w io.Writer, empty bool) error {
		_, _ = io.WriteString(w, "row 2,trunc")
		return diskFull
	})
	assert.ErrorIs(t, err, diskFull)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "header\nrow 1\n", string(got))

	require.NoError(t, AppendFile(path, 0o644, func(w io.Writer, empty bool) error {
		assert.False(t, empty)
		_, err := io.WriteString(w, "row 2\n")
		return err
	}))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "header\nrow 1\nrow 2\n", string(got))
}
