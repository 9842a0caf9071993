// Package api serves scraped articles over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/sources"
)

// DefaultArticleLimit is the number of articles scraped per GET /articles.
const DefaultArticleLimit = 10

const (
	defaultItemLimit = 50
	maxItemLimit     = 1000
)

// ArticleScraper scrapes the site on demand.
type ArticleScraper interface {
	ScrapeLatest(ctx context.Context, limit int) ([]newsfeed.Article, error)
}

// ItemLister returns the stored articles in the order they were appended.
type ItemLister interface {
	List() ([]newsfeed.NewsItem, error)
}

// APIServer represents the HTTP API server.
type APIServer struct {
	scraper      ArticleScraper
	store        ItemLister
	sources      *sources.SourceAPIServer
	articleLimit int
	feed         FeedInfo
	logger       *slog.Logger
}

// NewAPIServer creates a new API server. store may be nil, in which case the
// stored-item routes are not mounted.
func NewAPIServer(scraper ArticleScraper, store ItemLister, logger *slog.Logger) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIServer{
		scraper:      scraper,
		store:        store,
		articleLimit: DefaultArticleLimit,
		feed:         DefaultFeedInfo(),
		logger:       logger,
	}
}

// WithSources mounts the source management routes.
func (s *APIServer) WithSources(store *sources.SourceStore) *APIServer {
	s.sources = sources.NewSourceAPIServer(store)
	return s
}

// WithArticleLimit sets how many articles GET /articles scrapes.
func (s *APIServer) WithArticleLimit(n int) *APIServer {
	if n > 0 {
		s.articleLimit = n
	}
	return s
}

// WithFeedInfo sets the channel metadata of GET /feed.rss.
func (s *APIServer) WithFeedInfo(info FeedInfo) *APIServer {
	s.feed = info
	return s
}

// ArticlesResponse represents the response for GET /articles.
type ArticlesResponse struct {
	Count    int                `json:"count"`
	Articles []newsfeed.Article `json:"articles"`
}

// ListItemsResponse represents the response for GET /api/v1/items.
type ListItemsResponse struct {
	Items  []newsfeed.NewsItem `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SetupRouter configures the Gin router with all routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware)

	router.GET("/health", s.HandleHealth)
	router.GET("/articles", s.HandleArticles)

	if s.store != nil {
		router.GET("/feed.rss", s.HandleFeed)
	}

	api := router.Group("/api/v1")
	if s.store != nil {
		api.GET("/items", s.HandleListItems)
	}
	if s.sources != nil {
		s.sources.RegisterRoutes(api)
	}

	return router
}

func corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request.Method == "OPTIONS" {
		c.AbortWithStatus(http.StatusOK)
		return
	}

	c.Next()
}

// HandleHealth handles GET /health.
func (s *APIServer) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleArticles handles GET /articles by scraping the site on the spot.
func (s *APIServer) HandleArticles(c *gin.Context) {
	articles, err := s.scraper.ScrapeLatest(c.Request.Context(), s.articleLimit)
	if err != nil {
		s.logger.Error("On-demand scrape failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch articles"})
		return
	}
	if articles == nil {
		articles = []newsfeed.Article{}
	}

	c.JSON(http.StatusOK, ArticlesResponse{Count: len(articles), Articles: articles})
}

// HandleListItems handles GET /api/v1/items.
func (s *APIServer) HandleListItems(c *gin.Context) {
	limit := defaultItemLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid limit parameter"))
			return
		}
		limit = min(parsed, maxItemLimit)
	}

	offset := 0
	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid offset parameter"))
			return
		}
		offset = parsed
	}

	items, err := s.newestItems()
	if err != nil {
		s.logger.Error("Failed to list stored articles", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to list items"))
		return
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		items = filterByCategory(items, category)
	}

	c.JSON(http.StatusOK, ListItemsResponse{
		Items:  paginate(items, offset, limit),
		Total:  len(items),
		Limit:  limit,
		Offset: offset,
	})
}

// newestItems returns the stored items, most recently scraped first. Items
// scraped in the same second keep reverse append order.
func (s *APIServer) newestItems() ([]newsfeed.NewsItem, error) {
	items, err := s.store.List()
	if err != nil {
		return nil, err
	}
	slices.Reverse(items)
	slices.SortStableFunc(items, func(a, b newsfeed.NewsItem) int {
		return strings.Compare(b.ScrapedAt, a.ScrapedAt)
	})
	return items, nil
}

// filterByCategory keeps items whose category matches, ignoring case.
func filterByCategory(items []newsfeed.NewsItem, category string) []newsfeed.NewsItem {
	filtered := []newsfeed.NewsItem{}
	for _, item := range items {
		if strings.EqualFold(item.Category, category) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// paginate returns a slice of items for the given offset and limit.
func paginate(items []newsfeed.NewsItem, offset, limit int) []newsfeed.NewsItem {
	if offset >= len(items) {
		return []newsfeed.NewsItem{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
