package web

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplatePatternsMatchEmbeddedFiles(t *testing.T) {
	for _, pattern := range TemplatePatterns {
		matches, err := fs.Glob(Templates, pattern)
		require.NoError(t, err)
		assert.NotEmpty(t, matches, pattern)
	}
	_, err := fs.Stat(Templates, "templates/pages/dashboard.html")
	assert.NoError(t, err)
}

func TestAssetsAreRootedAtStatic(t *testing.T) {
	assets, err := Assets()
	require.NoError(t, err)
	data, err := fs.ReadFile(assets, "css/app.css")
	require.NoError(t, err)
	assert.Contains(t, string(data), ".users-table")
}
