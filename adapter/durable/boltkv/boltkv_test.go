package boltkv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRemovePersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")

	s, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Set("a", []byte("hello")))
	require.NoError(t, s.Close())

	reopened, err := Open(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	v, found, err := reopened.Get("a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), v)

	require.NoError(t, reopened.Remove("a"))
	_, found, err = reopened.Get("a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")
	s, err := Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)
}
