package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateUUIDPersistsAcrossCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uuid.etny")

	first, err := loadOrCreateUUID(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := loadOrCreateUUID(path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestLoadOrCreateUUIDIgnoresEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uuid.etny")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	id, err := loadOrCreateUUID(path)
	require.NoError(t, err)
	require.NotEmpty(t, id)
}
