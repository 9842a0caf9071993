package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: options rooted in a temp dir
func testOptions(t *testing.T) *config.Options {
	dir := t.TempDir()
	opts, err := config.Load([]string{
		"--data-file", filepath.Join(dir, "output", "articles.csv"),
		"--image-dir", filepath.Join(dir, "images"),
		"--sources-db", filepath.Join(dir, "sources.db"),
		"--log-file", filepath.Join(dir, "scraper.log"),
	}, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	return opts
}

func TestNew_WiresComponents(t *testing.T) {
	opts := testOptions(t)

	a, err := New(opts)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Service)
	assert.Equal(t, opts.DataFile, a.Feed.Path())
	require.NotNil(t, a.Images)
	assert.Equal(t, opts.ImageDir, a.Images.Dir())
	assert.DirExists(t, opts.ImageDir)
	assert.FileExists(t, opts.LogFile)

	require.NotNil(t, a.Sources)
	list, err := a.Sources.ListSources(sources.SourceFilter{})
	require.NoError(t, err)
	assert.Len(t, list, len(a.Profile.Categories), "every category gets a source row")
}

func TestNew_Optional(t *testing.T) {
	opts := testOptions(t)
	opts.NoImages = true
	opts.SourcesDB = ""
	opts.LogFile = ""

	a, err := New(opts)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Images)
	assert.Nil(t, a.Sources)
	_, statErr := os.Stat(opts.ImageDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNew_BadProfile(t *testing.T) {
	opts := testOptions(t)
	opts.SiteProfile = filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(opts.SiteProfile, []byte("base_url: [not, a, string]"), 0o600))

	a, err := New(opts)
	assert.Error(t, err)
	assert.Nil(t, a)
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(testOptions(t))
	require.NoError(t, err)

	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
