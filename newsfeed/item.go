package newsfeed

import "strings"

// Field defaults recorded when extraction cannot recover a value.
const (
	ContentNotAvailable = "Content not available"
	DefaultCategory     = "General"
	UnknownAuthor       = "Unknown"
)

// TimestampLayout is the format of ScrapedAt.
const TimestampLayout = "2006-01-02 15:04:05"

// Columns is the canonical column order of the article store.
var Columns = []string{
	"title", "date", "url", "content", "category", "author",
	"image_urls", "local_images", "scraped_at",
}

// listSeparator joins multi-valued fields inside a single CSV cell.
const listSeparator = ";"

// NewsItem is one captured article. It is built once per successful
// extraction, enriched with local image paths and then appended to the store
// unchanged.
type NewsItem struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	URL         string   `json:"url"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Author      string   `json:"author"`
	ImageURLs   []string `json:"image_urls"`
	LocalImages []string `json:"local_images"`
	ScrapedAt   string   `json:"scraped_at"`

	// Recent is the advisory freshness flag computed at extraction time. It
	// is not persisted.
	Recent bool `json:"-"`
}

// Article is the lighter representation served by the on-demand API.
type Article struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	URL       string `json:"url"`
	Content   string `json:"content"`
	Category  string `json:"category"`
	Author    string `json:"author"`
	ScrapedAt string `json:"scraped_at"`
}

// Article drops the image fields.
func (n NewsItem) Article() Article {
	return Article{
		Title:     n.Title,
		Date:      n.Date,
		URL:       n.URL,
		Content:   n.Content,
		Category:  n.Category,
		Author:    n.Author,
		ScrapedAt: n.ScrapedAt,
	}
}

// record returns the item keyed by column name.
func (n NewsItem) record() map[string]string {
	return map[string]string{
		"title":        n.Title,
		"date":         n.Date,
		"url":          n.URL,
		"content":      n.Content,
		"category":     n.Category,
		"author":       n.Author,
		"image_urls":   strings.Join(n.ImageURLs, listSeparator),
		"local_images": strings.Join(n.LocalImages, listSeparator),
		"scraped_at":   n.ScrapedAt,
	}
}

// itemFromRow rebuilds an item from a row, using index to locate columns.
// Columns absent from the file leave their field empty.
func itemFromRow(row []string, index map[string]int) NewsItem {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	return NewsItem{
		Title:       get("title"),
		Date:        get("date"),
		URL:         get("url"),
		Content:     get("content"),
		Category:    get("category"),
		Author:      get("author"),
		ImageURLs:   splitList(get("image_urls")),
		LocalImages: splitList(get("local_images")),
		ScrapedAt:   get("scraped_at"),
	}
}

func splitList(cell string) []string {
	if cell == "" {
		return []string{}
	}
	return strings.Split(cell, listSeparator)
}
