package discovery

import (
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/recency"
	"github.com/pevans/newsharvest/scraper"
)

// datePattern finds date-shaped text: "14 May 2025", "14/5/2025" or
// "2025-5-14".
var datePattern = regexp.MustCompile(`\d{1,2}\s+[A-Za-z]+\s+\d{4}|\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{1,2}-\d{1,2}`)

// Extractor turns article pages into records.
type Extractor struct {
	config  scraper.ArticleConfig
	recency *recency.Classifier
	logger  *slog.Logger
}

// NewExtractor creates an extractor. A nil classifier uses Asia/Dhaka and a
// nil logger uses slog.Default.
func NewExtractor(config scraper.ArticleConfig, classifier *recency.Classifier, logger *slog.Logger) *Extractor {
	if classifier == nil {
		classifier = recency.NewClassifier(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{config: config, recency: classifier, logger: logger}
}

// Extract builds a record from an article page. It reports false only when
// no title can be found; every other field falls back to a default.
func (e *Extractor) Extract(doc *goquery.Document, articleURL string) (*newsfeed.NewsItem, bool) {
	if doc == nil {
		return nil, false
	}

	title, ok := ExtractTitle(doc, e.config)
	if !ok {
		e.logger.Warn("No title found", "url", articleURL)
		return nil, false
	}

	date := ExtractDate(doc, e.config)
	recent := e.recency.IsRecentOrUndated(date)
	if !recent {
		e.logger.Info("Article not from today or yesterday", "url", articleURL, "date", date)
	}

	content := ExtractContent(doc, e.config)
	if content == "" && e.config.ReadabilityFallback {
		content = readableText(doc, articleURL)
	}
	if content == "" {
		e.logger.Warn("No content found, keeping metadata only", "url", articleURL)
		content = newsfeed.ContentNotAvailable
	}

	return &newsfeed.NewsItem{
		Title:       title,
		Date:        date,
		URL:         articleURL,
		Content:     content,
		Category:    CategoryFromURL(articleURL, e.config.CategoryRules),
		Author:      ExtractAuthor(doc, e.config),
		ImageURLs:   ExtractImages(doc, articleURL, e.config),
		LocalImages: []string{},
		ScrapedAt:   e.recency.Now().Format(newsfeed.TimestampLayout),
		Recent:      recent,
	}, true
}

// ExtractTitle returns the text of the first title selector with a
// non-empty first match, else the first h1 or h2 longer than
// MinHeadingLength.
func ExtractTitle(doc *goquery.Document, cfg scraper.ArticleConfig) (string, bool) {
	for _, selector := range cfg.TitleSelectors {
		if text := normalizeSpace(doc.Find(selector).First().Text()); text != "" {
			return text, true
		}
	}

	var title string
	doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeSpace(s.Text())
		if utf8.RuneCountInString(text) > cfg.MinHeadingLength {
			title = text
			return false
		}
		return true
	})

	return title, title != ""
}

// ExtractDate returns the raw publication date, preferring a datetime
// attribute over element text, or recency.NoDateFound.
func ExtractDate(doc *goquery.Document, cfg scraper.ArticleConfig) string {
	for _, selector := range cfg.DateSelectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		if dt, ok := el.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return strings.TrimSpace(dt)
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text
		}
	}

	date := recency.NoDateFound
	doc.Find("span, div, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		if match := datePattern.FindString(s.Text()); match != "" {
			date = match
			return false
		}
		return true
	})

	return date
}

// ExtractContent joins the paragraphs of the first content selector that
// yields any paragraph longer than MinParagraphLength. Failing that, the
// paragraphs of the article container (or the whole page) are used. It
// returns "" when nothing qualifies.
func ExtractContent(doc *goquery.Document, cfg scraper.ArticleConfig) string {
	for _, selector := range cfg.ContentSelectors {
		if content := joinParagraphs(doc.Find(selector), cfg.MinParagraphLength); content != "" {
			return content
		}
	}

	scope := articleContainer(doc, cfg)
	return joinParagraphs(scope.Find("p"), cfg.MinParagraphLength)
}

func joinParagraphs(paragraphs *goquery.Selection, minLength int) string {
	var parts []string
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > minLength {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}

// articleContainer returns the first element matched by the container
// cascade, or the whole document.
func articleContainer(doc *goquery.Document, cfg scraper.ArticleConfig) *goquery.Selection {
	for _, selector := range cfg.ContainerSelectors {
		if el := doc.Find(selector).First(); el.Length() > 0 {
			return el
		}
	}
	return doc.Selection
}

// readableText runs a readability pass over the page and returns its plain
// text, or "" on failure.
func readableText(doc *goquery.Document, articleURL string) string {
	html, err := doc.Html()
	if err != nil {
		return ""
	}
	pageURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// CategoryFromURL maps the URL path to a category using the first matching
// rule.
func CategoryFromURL(articleURL string, rules []scraper.CategoryRule) string {
	u, err := url.Parse(articleURL)
	if err != nil {
		return newsfeed.DefaultCategory
	}
	for _, rule := range rules {
		if strings.Contains(u.Path, rule.PathSegment) {
			return rule.Category
		}
	}
	return newsfeed.DefaultCategory
}

// ExtractAuthor returns the first non-empty author selector match.
func ExtractAuthor(doc *goquery.Document, cfg scraper.ArticleConfig) string {
	for _, selector := range cfg.AuthorSelectors {
		if text := normalizeSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return newsfeed.UnknownAuthor
}

// ExtractImages returns the absolute URLs of content images in the article
// container, in document order and without duplicates.
func ExtractImages(doc *goquery.Document, articleURL string, cfg scraper.ArticleConfig) []string {
	images := []string{}

	base, err := url.Parse(articleURL)
	if err != nil {
		return images
	}

	seen := make(map[string]struct{})
	articleContainer(doc, cfg).Find("img").Each(func(_ int, img *goquery.Selection) {
		src := imageSource(img)
		if src == "" || isExcludedImage(src, cfg.ImageExclusions) {
			return
		}
		if tooSmall(img, cfg.MinImageSize) {
			return
		}

		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		images = append(images, abs)
	})

	return images
}

// imageSource returns src, data-src or data-lazy-src, whichever is first
// non-empty.
func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

func isExcludedImage(src string, exclusions []string) bool {
	lower := strings.ToLower(src)
	for _, pattern := range exclusions {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// tooSmall reports whether both dimensions are given as integers and either
// is below minSize. Missing or unparseable dimensions never exclude an
// image.
func tooSmall(img *goquery.Selection, minSize int) bool {
	w, err := strconv.Atoi(strings.TrimSpace(img.AttrOr("width", "")))
	if err != nil {
		return false
	}
	h, err := strconv.Atoi(strings.TrimSpace(img.AttrOr("height", "")))
	if err != nil {
		return false
	}
	return w < minSize || h < minSize
}

// normalizeSpace collapses runs of whitespace to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
