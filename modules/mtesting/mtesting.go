package mtesting

import (
	"os"
	"path/filepath"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/nemulo/nemulo"
)

// NewContext is a convenience helper to create a new nemulo.Context suitable
// for use in the test suite.
func NewContext() *nemulo.Context {
	return nemulo.NewContext(&nemulo.Args{Log: &nemulo.Logger{Level: nemulo.LevelInfo}})
}

// NewPooledContext is like NewContext, but its jobs run on a started pool of
// workers so that they can be waited on with Wait.
func NewPooledContext(sourceDir, targetDir string) *nemulo.Context {
	log := &nemulo.Logger{Level: nemulo.LevelInfo}

	pool := nemulo.NewPool(log, 2)
	pool.StartRound(0)

	c := nemulo.NewContext(&nemulo.Args{
		Concurrency: 2,
		Log:         log,
		Pool:        pool,
		SourceDir:   sourceDir,
		TargetDir:   targetDir,
	})
	c.Stats.Reset()
	return c
}

// WriteTempFile writes the given data to a temporary file. It returns the path
// to the temporary file which should be removed with `defer os.Remove(path)`.
func WriteTempFile(t *testing.T, data []byte) string {
	t.Helper()

	tempFile, err := os.CreateTemp("", "nemulo")
	assert.NoError(t, err)

	_, err = tempFile.Write(data)
	assert.NoError(t, err)

	err = tempFile.Close()
	assert.NoError(t, err)

	return tempFile.Name()
}

// WriteFile writes data to a file named base in dir, which is usually from
// t.TempDir. It returns the file's full path.
func WriteFile(t *testing.T, dir, base string, data string) string {
	t.Helper()

	path := filepath.Join(dir, base)
	assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	assert.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	return path
}
