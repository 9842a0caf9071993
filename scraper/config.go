package scraper

// ScraperConfig defines how to find and read articles on the news site. Each
// selector list is an ordered cascade: earlier entries win.
type ScraperConfig struct {
	ListConfig    ListConfig    `json:"list_config" yaml:"list"`
	ArticleConfig ArticleConfig `json:"article_config" yaml:"article"`
}

// ListConfig defines how to discover article links on listing pages.
type ListConfig struct {
	// ContainerSelectors match elements that wrap one article teaser.
	ContainerSelectors []string `json:"container_selectors" yaml:"container_selectors"`
	// LooseContainerSelectors are tried when no structural container
	// matches.
	LooseContainerSelectors []string `json:"loose_container_selectors" yaml:"loose_container_selectors"`
	// PathIndicators are path fragments that mark a link as an article.
	PathIndicators []string `json:"path_indicators" yaml:"path_indicators"`
	// PageParam is the query parameter used for listing pagination.
	PageParam string `json:"page_param" yaml:"page_param"`
	// MaxPages is the highest listing page number fetched per category.
	MaxPages int `json:"max_pages" yaml:"max_pages"`
}

// CategoryRule maps a URL path fragment to a category label.
type CategoryRule struct {
	PathSegment string `json:"path_segment" yaml:"path_segment"`
	Category    string `json:"category" yaml:"category"`
}

// ArticleConfig defines how to extract fields from individual article pages.
type ArticleConfig struct {
	TitleSelectors     []string       `json:"title_selectors" yaml:"title_selectors"`
	MinHeadingLength   int            `json:"min_heading_length" yaml:"min_heading_length"`
	DateSelectors      []string       `json:"date_selectors" yaml:"date_selectors"`
	ContentSelectors   []string       `json:"content_selectors" yaml:"content_selectors"`
	ContainerSelectors []string       `json:"container_selectors" yaml:"container_selectors"`
	MinParagraphLength int            `json:"min_paragraph_length" yaml:"min_paragraph_length"`
	AuthorSelectors    []string       `json:"author_selectors" yaml:"author_selectors"`
	CategoryRules      []CategoryRule `json:"category_rules" yaml:"category_rules"`
	ImageExclusions    []string       `json:"image_exclusions" yaml:"image_exclusions"`
	MinImageSize       int            `json:"min_image_size" yaml:"min_image_size"`
	// ReadabilityFallback runs a readability pass over the page when no
	// paragraph survives the content cascade.
	ReadabilityFallback bool `json:"readability_fallback" yaml:"readability_fallback"`
}

// NewScraperConfig returns the built-in site profile.
func NewScraperConfig() *ScraperConfig {
	return &ScraperConfig{
		ListConfig:    DefaultListConfig(),
		ArticleConfig: DefaultArticleConfig(),
	}
}

// DefaultListConfig returns the listing-page cascade tuned for the site's
// card layouts.
func DefaultListConfig() ListConfig {
	return ListConfig{
		ContainerSelectors: []string{
			".card", ".news-item", "article", ".list-item",
			".news-card", ".news-list", ".article-list",
		},
		LooseContainerSelectors: []string{
			`div[class*="news"]`, `div[class*="article"]`,
			`div[class*="post"]`, `a[href*="/news/"]`,
		},
		PathIndicators: []string{
			"/news/", "/article/", "/story/", "/latest-news/",
			"/bangladesh/", "/world/", "/sports/", "/entertainment/",
		},
		PageParam: "page",
		MaxPages:  4,
	}
}

// DefaultArticleConfig returns the article-page cascades.
func DefaultArticleConfig() ArticleConfig {
	return ArticleConfig{
		TitleSelectors: []string{
			"h1", ".article-title", ".news-title", ".title", ".headline", ".entry-title",
		},
		MinHeadingLength: 15,
		DateSelectors: []string{
			"time", ".date", ".published-date", ".article-date",
			`[itemprop="datePublished"]`, ".time", ".timestamp",
			".publish-time", ".meta-date", ".post-date",
			".entry-date", ".article-info time",
		},
		ContentSelectors: []string{
			"article p", ".article-body p", ".content p",
			"#content p", ".news-content p", ".story p",
			".description p", ".article-description p",
			".entry-content p", ".article-text p",
			".news-details p", ".post-content p",
		},
		ContainerSelectors: []string{
			"article",
			".article, .article-body, .story-content, .entry-content, .news-details",
		},
		MinParagraphLength: 20,
		AuthorSelectors: []string{
			".author", ".reporter", ".byline", `[rel="author"]`,
			".writer", ".article-author", ".post-author",
		},
		CategoryRules: []CategoryRule{
			{PathSegment: "/bangladesh/", Category: "Bangladesh"},
			{PathSegment: "/world/", Category: "World"},
			{PathSegment: "/sports/", Category: "Sports"},
			{PathSegment: "/entertainment/", Category: "Entertainment"},
			{PathSegment: "/business/", Category: "Business"},
			{PathSegment: "/tech/", Category: "Technology"},
			{PathSegment: "/technology/", Category: "Technology"},
			{PathSegment: "/opinion/", Category: "Opinion"},
			{PathSegment: "/lifestyle/", Category: "Lifestyle"},
		},
		ImageExclusions: []string{
			"icon", "logo", "blank.gif", "pixel.gif", "advertisement",
			"banner", "avatar", "thumb", "1x1",
		},
		MinImageSize: 100,
	}
}

// Merge fills any zero-valued field of c from defaults, so a partial YAML
// profile only overrides what it names.
func (c *ScraperConfig) Merge(defaults *ScraperConfig) {
	l, dl := &c.ListConfig, defaults.ListConfig
	if len(l.ContainerSelectors) == 0 {
		l.ContainerSelectors = dl.ContainerSelectors
	}
	if len(l.LooseContainerSelectors) == 0 {
		l.LooseContainerSelectors = dl.LooseContainerSelectors
	}
	if len(l.PathIndicators) == 0 {
		l.PathIndicators = dl.PathIndicators
	}
	if l.PageParam == "" {
		l.PageParam = dl.PageParam
	}
	if l.MaxPages == 0 {
		l.MaxPages = dl.MaxPages
	}

	a, da := &c.ArticleConfig, defaults.ArticleConfig
	if len(a.TitleSelectors) == 0 {
		a.TitleSelectors = da.TitleSelectors
	}
	if a.MinHeadingLength == 0 {
		a.MinHeadingLength = da.MinHeadingLength
	}
	if len(a.DateSelectors) == 0 {
		a.DateSelectors = da.DateSelectors
	}
	if len(a.ContentSelectors) == 0 {
		a.ContentSelectors = da.ContentSelectors
	}
	if len(a.ContainerSelectors) == 0 {
		a.ContainerSelectors = da.ContainerSelectors
	}
	if a.MinParagraphLength == 0 {
		a.MinParagraphLength = da.MinParagraphLength
	}
	if len(a.AuthorSelectors) == 0 {
		a.AuthorSelectors = da.AuthorSelectors
	}
	if len(a.CategoryRules) == 0 {
		a.CategoryRules = da.CategoryRules
	}
	if len(a.ImageExclusions) == 0 {
		a.ImageExclusions = da.ImageExclusions
	}
	if a.MinImageSize == 0 {
		a.MinImageSize = da.MinImageSize
	}
}
