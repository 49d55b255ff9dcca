package fileuri

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPath(t *testing.T) {
	path, err := ToPath("file:///home/dev/my%20project/main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/home/dev/my project/main.go"), path)

	path, err = ToPath("/abs/file.go")
	require.NoError(t, err)
	assert.Equal(t, "/abs/file.go", path)
}

func TestToPath_Errors(t *testing.T) {
	for _, uri := range []string{
		"https://example.com/a.go",
		"untitled:Untitled-1",
		"file://",
		"relative/path.go",
		"%zz",
	} {
		_, err := ToPath(uri)
		assert.Error(t, err, uri)
	}
}

func TestFromPath(t *testing.T) {
	assert.Equal(t, "file:///home/dev/my%20project", FromPath("/home/dev/my project"))

	path, err := ToPath(FromPath("/src/a#b.ts"))
	require.NoError(t, err)
	assert.Equal(t, "/src/a#b.ts", path)
}
