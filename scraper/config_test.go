package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMerge_KeepsOverrides verifies a partial profile keeps what it names and
// takes everything else from the defaults
func TestMerge_KeepsOverrides(t *testing.T) {
	cfg := &ScraperConfig{
		ListConfig:    ListConfig{MaxPages: 2},
		ArticleConfig: ArticleConfig{TitleSelectors: []string{".headline"}, ReadabilityFallback: true},
	}
	defaults := NewScraperConfig()

	cfg.Merge(defaults)

	assert.Equal(t, 2, cfg.ListConfig.MaxPages)
	assert.Equal(t, []string{".headline"}, cfg.ArticleConfig.TitleSelectors)
	assert.True(t, cfg.ArticleConfig.ReadabilityFallback)

	assert.Equal(t, defaults.ListConfig.ContainerSelectors, cfg.ListConfig.ContainerSelectors)
	assert.Equal(t, "page", cfg.ListConfig.PageParam)
	assert.Equal(t, defaults.ArticleConfig.DateSelectors, cfg.ArticleConfig.DateSelectors)
	assert.Equal(t, 20, cfg.ArticleConfig.MinParagraphLength)
	assert.Equal(t, 100, cfg.ArticleConfig.MinImageSize)
}

func TestMerge_EmptyTakesDefaults(t *testing.T) {
	cfg := &ScraperConfig{}
	cfg.Merge(NewScraperConfig())

	assert.Equal(t, *NewScraperConfig(), *cfg)
}

func TestDefaultCategories(t *testing.T) {
	categories := DefaultCategories()

	assert.Equal(t, "Latest", categories[0].Name, "latest news is harvested first")
	seen := map[string]bool{}
	for _, c := range categories {
		assert.True(t, strings.HasPrefix(c.URL, DefaultBaseURL+"/"), c.URL)
		assert.False(t, seen[c.URL], "duplicate category %s", c.URL)
		seen[c.URL] = true
	}
}
