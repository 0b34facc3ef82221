package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession registers a session with a fixed config hash.
func createTestSession(t *testing.T, s *Store, token string) {
	t.Helper()
	require.NoError(t, s.BeginSession(context.Background(), Session{
		Token:      token,
		ConfigHash: "test-hash",
	}))
}
