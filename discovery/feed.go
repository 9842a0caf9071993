package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/newsharvest/scraper"
)

// ParseFeedLinks returns the article links of an RSS or Atom document,
// resolved against feedURL and filtered by the listing path indicators.
func ParseFeedLinks(data []byte, feedURL string, cfg scraper.ListConfig) ([]string, error) {
	base, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed URL: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	links := []string{}
	seen := make(map[string]struct{})
	for _, item := range feed.Items {
		link, ok := resolveArticleLink(base, item.Link, cfg.PathIndicators)
		if !ok {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}

	return links, nil
}

// FetchFeedLinks fetches a category feed and returns its article links.
func (f *Fetcher) FetchFeedLinks(ctx context.Context, feedURL string, cfg scraper.ListConfig) ([]string, error) {
	data, err := f.FetchPage(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return ParseFeedLinks(data, feedURL, cfg)
}
