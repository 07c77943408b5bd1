package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVersionFile(t *testing.T, content string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "chrome"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, VersionFile), []byte(content), 0o644))
	return root
}

func TestReadVersion(t *testing.T) {
	root := writeVersionFile(t, "MAJOR=126\nMINOR=0\nBUILD=6478\nPATCH=127\n")
	v, err := ReadVersion(root)
	require.NoError(t, err)
	assert.Equal(t, "126.0.6478.127", v)
}

func TestReadVersionIncomplete(t *testing.T) {
	root := writeVersionFile(t, "MAJOR=126\nMINOR=0\n")
	_, err := ReadVersion(root)
	assert.ErrorContains(t, err, "BUILD")

	_, err = ReadVersion(t.TempDir())
	assert.Error(t, err)
}
