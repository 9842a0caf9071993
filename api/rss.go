package api

import (
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/recency"
	"github.com/pevans/newsharvest/scraper"
)

// feedItemLimit is the number of stored articles published in the feed.
const feedItemLimit = 50

// descriptionLength caps item descriptions, in runes.
const descriptionLength = 500

// FeedInfo is the channel metadata of the RSS feed.
type FeedInfo struct {
	Title       string
	Link        string
	Description string
	Location    *time.Location
}

// DefaultFeedInfo describes the harvested site.
func DefaultFeedInfo() FeedInfo {
	return FeedInfo{
		Title:       "Dhaka Post",
		Link:        scraper.DefaultBaseURL,
		Description: "Articles harvested from Dhaka Post",
		Location:    recency.Dhaka(),
	}
}

// HandleFeed handles GET /feed.rss.
func (s *APIServer) HandleFeed(c *gin.Context) {
	items, err := s.newestItems()
	if err != nil {
		s.logger.Error("Failed to list stored articles", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to build feed"))
		return
	}
	if len(items) > feedItemLimit {
		items = items[:feedItemLimit]
	}

	rss, err := GenerateRSSFeed(items, s.feed, time.Now())
	if err != nil {
		s.logger.Error("Failed to generate RSS", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to build feed"))
		return
	}

	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}

// GenerateRSSFeed renders items as an RSS 2.0 document.
func GenerateRSSFeed(items []newsfeed.NewsItem, info FeedInfo, now time.Time) (string, error) {
	loc := info.Location
	if loc == nil {
		loc = time.UTC
	}

	feed := &feeds.Feed{
		Title:       info.Title,
		Link:        &feeds.Link{Href: info.Link},
		Description: info.Description,
		Created:     now,
	}

	feed.Items = make([]*feeds.Item, 0, len(items))
	for _, item := range items {
		entry := &feeds.Item{
			Title: item.Title,
			Link:  &feeds.Link{Href: item.URL},
			Id:    item.URL,
		}

		if item.Content != newsfeed.ContentNotAvailable {
			entry.Description = truncate(item.Content, descriptionLength)
		}
		if item.Author != "" && item.Author != newsfeed.UnknownAuthor {
			entry.Author = &feeds.Author{Name: item.Author}
		}

		if scraped, err := time.ParseInLocation(newsfeed.TimestampLayout, item.ScrapedAt, loc); err == nil {
			entry.Created = scraped
		} else {
			entry.Created = now
		}

		feed.Items = append(feed.Items, entry)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to generate RSS: %w", err)
	}
	return rss, nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
