package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/images"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/recency"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/sources"
)

// ErrNoTitle is returned when an article page has no recognisable title.
var ErrNoTitle = errors.New("no title found")

// DiscoveryService harvests the site on a schedule and appends new articles
// to the store.
type DiscoveryService struct {
	newsFeed  *newsfeed.NewsFeed
	scraper   *scraper.ScraperConfig
	config    *DiscoveryConfig
	logger    *slog.Logger
	fetcher   *Fetcher
	extractor *Extractor
	images    *images.Downloader
	sources   *sources.SourceStore
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// DiscoveryConfig holds configuration for the discovery service.
type DiscoveryConfig struct {
	// Categories harvested when no source store is attached
	Categories []scraper.Category
	// Articles wanted per run; link collection aims for twice this
	MinArticles int
	// Images downloaded per article
	MaxImagesPerArticle int
	// Pause between successive page and article fetches
	Delay time.Duration
	// Time between scheduled runs
	Interval time.Duration
	// Consecutive listing failures before a source is disabled (0 = never)
	DisableThreshold int
}

// DefaultDiscoveryConfig returns the default configuration.
func DefaultDiscoveryConfig() *DiscoveryConfig {
	return &DiscoveryConfig{
		Categories:          scraper.DefaultCategories(),
		MinArticles:         25,
		MaxImagesPerArticle: 3,
		Delay:               2 * time.Second,
		Interval:            10 * time.Minute,
		DisableThreshold:    10,
	}
}

// RunResult summarises one pipeline run.
type RunResult struct {
	RunID      uuid.UUID
	LinksFound int
	Candidates int
	Added      int
	Duplicates int
	Failed     int
	Stale      int
	Total      int
}

// target is a category to harvest, optionally tied to a tracked source.
type target struct {
	category scraper.Category
	sourceID uuid.UUID
	tracked  bool
}

// NewDiscoveryService creates a new discovery service.
func NewDiscoveryService(
	newsFeed *newsfeed.NewsFeed,
	scraperConfig *scraper.ScraperConfig,
	config *DiscoveryConfig,
	logger *slog.Logger,
) *DiscoveryService {
	if config == nil {
		config = DefaultDiscoveryConfig()
	}
	if scraperConfig == nil {
		scraperConfig = scraper.NewScraperConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DiscoveryService{
		newsFeed:  newsFeed,
		scraper:   scraperConfig,
		config:    config,
		logger:    logger,
		fetcher:   NewFetcher(DefaultTimeout, ""),
		extractor: NewExtractor(scraperConfig.ArticleConfig, recency.NewClassifier(nil), logger),
		stopChan:  make(chan struct{}),
	}
}

// WithFetcher replaces the HTTP fetcher.
func (ds *DiscoveryService) WithFetcher(f *Fetcher) *DiscoveryService {
	ds.fetcher = f
	return ds
}

// WithClassifier replaces the recency classifier used by the extractor.
func (ds *DiscoveryService) WithClassifier(c *recency.Classifier) *DiscoveryService {
	ds.extractor = NewExtractor(ds.scraper.ArticleConfig, c, ds.logger)
	return ds
}

// WithImages enables image downloads.
func (ds *DiscoveryService) WithImages(d *images.Downloader) *DiscoveryService {
	ds.images = d
	return ds
}

// WithSources makes the service harvest the enabled sources of store and
// record each listing fetch there.
func (ds *DiscoveryService) WithSources(store *sources.SourceStore) *DiscoveryService {
	ds.sources = store
	return ds
}

// Run runs the pipeline immediately and then every Interval until Stop is
// called or ctx is cancelled. A failed or panicking run is logged and the
// next tick proceeds as usual.
func (ds *DiscoveryService) Run(ctx context.Context) error {
	ds.logger.Info("Discovery service starting", "interval", ds.config.Interval)

	ds.safeRun(ctx)

	ticker := time.NewTicker(ds.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ds.logger.Info("Discovery service stopping (context cancelled)")
			return ctx.Err()
		case <-ds.stopChan:
			ds.logger.Info("Discovery service stopping")
			return nil
		case <-ticker.C:
			ds.safeRun(ctx)
		}
	}
}

// Stop signals the discovery service to stop gracefully.
func (ds *DiscoveryService) Stop() {
	ds.stopOnce.Do(func() { close(ds.stopChan) })
}

func (ds *DiscoveryService) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			ds.logger.Error("Scheduled run panicked", "panic", r)
		}
	}()

	if _, err := ds.RunOnce(ctx); err != nil {
		ds.logger.Error("Scheduled run failed", "error", err)
	}
}

// RunOnce executes one full pipeline pass: collect links, drop known URLs,
// extract articles until MinArticles new ones are found, drop known titles,
// download images and append the batch to the store.
func (ds *DiscoveryService) RunOnce(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: uuid.New()}
	logger := ds.logger.With("run_id", result.RunID)
	start := time.Now()
	logger.Info("Starting scrape run")

	known, err := ds.newsFeed.Known()
	if err != nil {
		logger.Error("Failed to set corrupt store aside", "error", err)
	}

	links := ds.CollectLinks(ctx)
	result.LinksFound = len(links)

	candidates := make([]string, 0, len(links))
	for _, link := range links {
		if !known.HasURL(link) {
			candidates = append(candidates, link)
		}
	}
	result.Candidates = len(candidates)
	logger.Info("Found potential new articles", "count", len(candidates))

	batch := []newsfeed.NewsItem{}
	titles := make(map[string]struct{})
	for _, link := range candidates {
		if len(batch) >= ds.config.MinArticles {
			logger.Info("Reached article goal", "goal", ds.config.MinArticles)
			break
		}
		if ctx.Err() != nil {
			break
		}

		item, err := ds.ScrapeArticle(ctx, link)
		if err != nil {
			logger.Warn("Failed to extract article", "url", link, "error", err)
			result.Failed++
			continue
		}

		_, seen := titles[item.Title]
		if seen || known.HasTitle(item.Title) {
			logger.Info("Skipping duplicate article by title", "title", item.Title)
			result.Duplicates++
			continue
		}
		if !item.Recent {
			result.Stale++
		}

		if ds.images != nil {
			item.LocalImages = ds.images.DownloadAll(ctx, item.ImageURLs, ds.config.MaxImagesPerArticle, item.Title, link)
		}

		batch = append(batch, *item)
		titles[item.Title] = struct{}{}
		logger.Info("Processed article", "n", len(batch), "title", item.Title)

		if err := sleepCtx(ctx, ds.config.Delay); err != nil {
			break
		}
	}

	if len(batch) > 0 {
		if err := ds.newsFeed.Append(batch); err != nil {
			return result, fmt.Errorf("failed to save articles: %w", err)
		}
	}
	result.Added = len(batch)

	total, err := ds.newsFeed.Count()
	if err != nil {
		logger.Warn("Failed to count stored articles", "error", err)
	}
	result.Total = total

	logger.Info("Scrape run finished",
		"added", result.Added,
		"duplicates", result.Duplicates,
		"failed", result.Failed,
		"stale", result.Stale,
		"total", result.Total,
		"duration", time.Since(start))
	if total < ds.config.MinArticles {
		logger.Warn("Store is below the article goal", "goal", ds.config.MinArticles, "total", total)
	}

	return result, nil
}

// ScrapeArticle fetches and extracts one article.
func (ds *DiscoveryService) ScrapeArticle(ctx context.Context, articleURL string) (item *newsfeed.NewsItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			item, err = nil, fmt.Errorf("panic while extracting %s: %v", articleURL, r)
		}
	}()

	doc, err := ds.fetcher.FetchHTML(ctx, articleURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTML: %w", err)
	}

	item, ok := ds.extractor.Extract(doc, articleURL)
	if !ok {
		return nil, ErrNoTitle
	}
	return item, nil
}

// ScrapeLatest harvests the categories and extracts up to limit articles
// without consulting or writing the store. Failed articles are skipped.
func (ds *DiscoveryService) ScrapeLatest(ctx context.Context, limit int) ([]newsfeed.Article, error) {
	articles := []newsfeed.Article{}
	if limit <= 0 {
		return articles, nil
	}

	links := ds.collect(ctx, ds.targets(), limit, 0, false)
	for _, link := range links {
		if len(articles) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item, err := ds.ScrapeArticle(ctx, link)
		if err != nil {
			ds.logger.Warn("Failed to extract article", "url", link, "error", err)
			continue
		}
		articles = append(articles, item.Article())
	}

	return articles, nil
}

// CollectLinks returns the unique article links of every category, in
// discovery order.
func (ds *DiscoveryService) CollectLinks(ctx context.Context) []string {
	return ds.collect(ctx, ds.targets(), ds.config.MinArticles, ds.config.Delay, true)
}

// targets returns the enabled sources when a store is attached, else the
// configured categories.
func (ds *DiscoveryService) targets() []target {
	if ds.sources != nil {
		enabled := true
		list, err := ds.sources.ListSources(sources.SourceFilter{Enabled: &enabled})
		if err == nil {
			out := make([]target, 0, len(list))
			for _, s := range list {
				out = append(out, target{category: s.Category(), sourceID: s.SourceID, tracked: true})
			}
			return out
		}
		ds.logger.Error("Failed to list sources, using configured categories", "error", err)
	}

	out := make([]target, 0, len(ds.config.Categories))
	for _, c := range ds.config.Categories {
		out = append(out, target{category: c})
	}
	return out
}

// collect harvests each target, paginating while fewer than 2*goal unique
// links are known and stopping a category's pagination on an empty page or
// once 3*goal links are known. Source health is only updated when record is
// set.
func (ds *DiscoveryService) collect(ctx context.Context, targets []target, goal int, delay time.Duration, record bool) []string {
	links := []string{}
	seen := make(map[string]struct{})
	add := func(found []string) {
		for _, l := range found {
			if _, dup := seen[l]; !dup {
				seen[l] = struct{}{}
				links = append(links, l)
			}
		}
	}

	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				break
			}
		}

		count, err := ds.collectCategory(ctx, t.category, goal, delay, &links, add)
		if record {
			ds.recordFetch(t, count, err)
		}
	}

	ds.logger.Info("Collected article links", "unique", len(links), "categories", len(targets))
	return links
}

func (ds *DiscoveryService) collectCategory(
	ctx context.Context,
	cat scraper.Category,
	goal int,
	delay time.Duration,
	links *[]string,
	add func([]string),
) (int, error) {
	cfg := ds.scraper.ListConfig

	doc, err := ds.fetcher.FetchHTML(ctx, cat.URL)
	if err != nil {
		ds.logger.Error("Failed to fetch listing page", "url", cat.URL, "error", err)
		return 0, err
	}
	found := HarvestLinks(doc, cat.URL, cfg)
	ds.logger.Info("Extracted article links", "url", cat.URL, "count", len(found))
	add(found)
	count := len(found)

	if cat.FeedURL != "" {
		feedLinks, err := ds.fetcher.FetchFeedLinks(ctx, cat.FeedURL, cfg)
		if err != nil {
			ds.logger.Warn("Failed to read category feed", "url", cat.FeedURL, "error", err)
		} else {
			add(feedLinks)
			count += len(feedLinks)
		}
	}

	if len(*links) >= 2*goal {
		return count, nil
	}

	for page := 2; page <= cfg.MaxPages; page++ {
		if err := sleepCtx(ctx, delay); err != nil {
			break
		}

		pageURL, err := PageURL(cat.URL, cfg.PageParam, page)
		if err != nil {
			break
		}
		doc, err := ds.fetcher.FetchHTML(ctx, pageURL)
		if err != nil {
			ds.logger.Warn("Failed to fetch listing page", "url", pageURL, "error", err)
			break
		}

		pageLinks := HarvestLinks(doc, pageURL, cfg)
		if len(pageLinks) == 0 {
			ds.logger.Info("Pagination exhausted", "url", pageURL)
			break
		}
		add(pageLinks)
		count += len(pageLinks)

		if len(*links) >= 3*goal {
			break
		}
	}

	return count, nil
}

// recordFetch stores the outcome of a category's listing fetch.
func (ds *DiscoveryService) recordFetch(t target, linkCount int, fetchErr error) {
	if !t.tracked || ds.sources == nil {
		return
	}

	if fetchErr == nil {
		if err := ds.sources.RecordFetchSuccess(t.sourceID, linkCount); err != nil {
			ds.logger.Error("Failed to update source", "source", t.category.Name, "error", err)
		}
		return
	}

	disabled, err := ds.sources.RecordFetchError(t.sourceID, fetchErr, ds.config.DisableThreshold)
	if err != nil {
		ds.logger.Error("Failed to update source", "source", t.category.Name, "error", err)
		return
	}
	if disabled {
		ds.logger.Error("Auto-disabled source after consecutive failures",
			"source", t.category.Name,
			"url", t.category.URL,
			"threshold", ds.config.DisableThreshold)
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
