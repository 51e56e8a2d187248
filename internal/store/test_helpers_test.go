package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/diary/internal/testutil"
)

// testOptions stamps entries with a deterministic clock and dumps into a
// per-test directory.
func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Now:     testutil.NewDefaultClock().Now,
		DumpDir: filepath.Join(t.TempDir(), "dumps"),
	}
}

// createTestSQLite creates a new SQLite store in a temp directory.
func createTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(context.Background(), path, testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestPebble creates a new Pebble store in a temp directory.
func createTestPebble(t *testing.T) *Pebble {
	t.Helper()
	p, err := OpenPebble(filepath.Join(t.TempDir(), "pebble"), testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// backends runs fn once per backend.
func backends(t *testing.T, fn func(t *testing.T, h Handle)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestSQLite(t)) })
	t.Run("pebble", func(t *testing.T) { fn(t, createTestPebble(t)) })
}
