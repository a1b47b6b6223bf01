package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustStampFile_IsStableAndContentSensitive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.so")
	require.NoError(t, os.WriteFile(path, []byte("plugin contents v1"), 0o644))

	first, err := trustStampFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := trustStampFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "hashing the same bytes twice must produce the same stamp")

	require.NoError(t, os.WriteFile(path, []byte("plugin contents v2"), 0o644))
	third, err := trustStampFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "changed contents must change the stamp")
}

func TestTrustStampFile_MissingFileErrors(t *testing.T) {
	_, err := trustStampFile(filepath.Join(t.TempDir(), "missing.so"))
	assert.Error(t, err)
}
