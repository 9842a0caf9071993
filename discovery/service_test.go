package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pevans/newsharvest/images"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves a small news site:
//
//	/latest-news          -> /news/1, /news/2, /news/dup, /news/broken
//	/latest-news?page=2   -> /news/3
//	/latest-news?page=3.. -> no links
//	/news/dup             -> same title as /news/1
//	/news/broken          -> 404
type fakeSite struct {
	server       *httptest.Server
	listingHits  map[string]*int32
	articleHits  int32
	pageFourHits int32
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{listingHits: map[string]*int32{}}
	for _, p := range []string{"1", "2", "3", "4"} {
		site.listingHits[p] = new(int32)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/latest-news", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		if hits, ok := site.listingHits[page]; ok {
			atomic.AddInt32(hits, 1)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch page {
		case "1":
			fmt.Fprint(w, `<html><body>
				<div class="card"><a href="/news/1">One</a></div>
				<div class="card"><a href="/news/2">Two</a></div>
				<div class="card"><a href="/news/dup">Dup</a></div>
				<div class="card"><a href="/news/broken">Broken</a></div>
			</body></html>`)
		case "2":
			fmt.Fprint(w, `<html><body><div class="card"><a href="/news/3">Three</a></div></body></html>`)
		default:
			fmt.Fprint(w, `<html><body><p>No more stories</p></body></html>`)
		}
	})
	mux.HandleFunc("/news/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&site.articleHits, 1)
		id := strings.TrimPrefix(r.URL.Path, "/news/")
		title := "Story " + id
		switch id {
		case "broken":
			http.NotFound(w, r)
			return
		case "dup":
			title = "Story 1"
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><article>
			<h1>%s</h1>
			<time>Today</time>
			<span class="author">Desk</span>
			<img src="/media/%s.jpg">
			<p>This is the body of the story, long enough to keep.</p>
		</article></body></html>`, title, id)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg"))
	})

	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func (s *fakeSite) url(path string) string {
	return s.server.URL + path
}

// Test helper: a service wired to the fake site with no delays
func setupTestService(t *testing.T, site *fakeSite) (*DiscoveryService, *newsfeed.NewsFeed) {
	t.Helper()

	feed, err := newsfeed.NewNewsFeed(filepath.Join(t.TempDir(), "articles.csv"), nil)
	require.NoError(t, err)

	config := DefaultDiscoveryConfig()
	config.Categories = []scraper.Category{{Name: "Latest", URL: site.url("/latest-news")}}
	config.MinArticles = 10
	config.Delay = 0
	config.Interval = time.Hour

	ds := NewDiscoveryService(feed, scraper.NewScraperConfig(), config, nil).
		WithFetcher(NewFetcher(5*time.Second, "")).
		WithClassifier(fixedClassifier())

	return ds, feed
}

// TestRunOnce_AppendsNewArticles verifies a full run against the fake site
func TestRunOnce_AppendsNewArticles(t *testing.T) {
	site := newFakeSite(t)
	ds, feed := setupTestService(t, site)

	result, err := ds.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.LinksFound)
	assert.Equal(t, 5, result.Candidates)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Stale)
	assert.Equal(t, 3, result.Total)

	items, err := feed.List()
	require.NoError(t, err)
	require.Len(t, items, 3)

	titles := []string{items[0].Title, items[1].Title, items[2].Title}
	assert.Equal(t, []string{"Story 1", "Story 2", "Story 3"}, titles)
	assert.Equal(t, site.url("/news/1"), items[0].URL)
	assert.Equal(t, "Today", items[0].Date)
	assert.Equal(t, "Desk", items[0].Author)
	assert.Equal(t, []string{site.url("/media/1.jpg")}, items[0].ImageURLs)
	assert.Empty(t, items[0].LocalImages, "no downloader attached")
}

// TestRunOnce_StopsPaginationOnEmptyPage verifies page 4 is never requested
// once page 3 comes back empty
func TestRunOnce_StopsPaginationOnEmptyPage(t *testing.T) {
	site := newFakeSite(t)
	ds, _ := setupTestService(t, site)

	_, err := ds.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(site.listingHits["1"]))
	assert.Equal(t, int32(1), atomic.LoadInt32(site.listingHits["2"]))
	assert.Equal(t, int32(1), atomic.LoadInt32(site.listingHits["3"]))
	assert.Equal(t, int32(0), atomic.LoadInt32(site.listingHits["4"]))
}

// TestRunOnce_SecondRunAddsNothing verifies URL and title deduplication
// against the store
func TestRunOnce_SecondRunAddsNothing(t *testing.T) {
	site := newFakeSite(t)
	ds, feed := setupTestService(t, site)

	_, err := ds.RunOnce(context.Background())
	require.NoError(t, err)

	result, err := ds.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Candidates, "only the rejected links are retried")
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Total)

	count, err := feed.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// TestRunOnce_StopsAtArticleGoal verifies extraction stops once enough new
// articles are found
func TestRunOnce_StopsAtArticleGoal(t *testing.T) {
	site := newFakeSite(t)
	ds, _ := setupTestService(t, site)
	ds.config.MinArticles = 1

	result, err := ds.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Added)
	assert.Equal(t, int32(1), atomic.LoadInt32(&site.articleHits))
	assert.Equal(t, int32(0), atomic.LoadInt32(site.listingHits["2"]), "page one already holds twice the goal")
}

// TestRunOnce_DownloadsImages verifies local image paths are recorded
func TestRunOnce_DownloadsImages(t *testing.T) {
	site := newFakeSite(t)
	ds, feed := setupTestService(t, site)

	dir := filepath.Join(t.TempDir(), "images")
	downloader, err := images.NewDownloader(dir, ds.fetcher, nil)
	require.NoError(t, err)
	ds.WithImages(downloader)

	_, err = ds.RunOnce(context.Background())
	require.NoError(t, err)

	items, err := feed.List()
	require.NoError(t, err)
	require.NotEmpty(t, items)

	for _, item := range items {
		require.Len(t, item.LocalImages, 1, item.Title)
		assert.FileExists(t, item.LocalImages[0])
		assert.Equal(t, dir, filepath.Dir(item.LocalImages[0]))
	}
}

// TestRunOnce_RecordsSourceHealth verifies listing outcomes reach the
// source store
func TestRunOnce_RecordsSourceHealth(t *testing.T) {
	site := newFakeSite(t)
	ds, _ := setupTestService(t, site)

	store, err := sources.NewSourceStore(filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	defer store.Close()

	synced, err := store.SyncCategories([]scraper.Category{
		{Name: "Latest", URL: site.url("/latest-news")},
		{Name: "Gone", URL: site.url("/missing-section")},
	})
	require.NoError(t, err)
	require.Len(t, synced, 2)
	ds.WithSources(store)

	result, err := ds.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)

	latest, err := store.GetSource(synced[0].SourceID)
	require.NoError(t, err)
	assert.NotNil(t, latest.LastFetchedAt)
	assert.Equal(t, 5, latest.LastLinkCount)
	assert.Equal(t, 0, latest.FetchErrorCount)

	gone, err := store.GetSource(synced[1].SourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, gone.FetchErrorCount)
	require.NotNil(t, gone.LastError)
	assert.Contains(t, *gone.LastError, "404")
	assert.True(t, gone.IsEnabled())
}

// TestRunOnce_DisabledSourcesAreSkipped verifies only enabled sources are
// harvested
func TestRunOnce_DisabledSourcesAreSkipped(t *testing.T) {
	site := newFakeSite(t)
	ds, _ := setupTestService(t, site)

	store, err := sources.NewSourceStore(filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	defer store.Close()

	synced, err := store.SyncCategories([]scraper.Category{{Name: "Latest", URL: site.url("/latest-news")}})
	require.NoError(t, err)
	require.NoError(t, store.SetEnabled(synced[0].SourceID, false))
	ds.WithSources(store)

	result, err := ds.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.LinksFound)
	assert.Equal(t, int32(0), atomic.LoadInt32(site.listingHits["1"]))
}

// TestRunOnce_UnreachableSite verifies a run with no links still succeeds
func TestRunOnce_UnreachableSite(t *testing.T) {
	site := newFakeSite(t)
	ds, feed := setupTestService(t, site)
	site.server.Close()

	result, err := ds.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)

	_, statErr := os.Stat(feed.Path())
	assert.True(t, os.IsNotExist(statErr), "nothing to write means no file")
}

// TestScrapeArticle verifies single-article extraction and its errors
func TestScrapeArticle(t *testing.T) {
	site := newFakeSite(t)
	ds, _ := setupTestService(t, site)

	item, err := ds.ScrapeArticle(context.Background(), site.url("/news/7"))
	require.NoError(t, err)
	assert.Equal(t, "Story 7", item.Title)

	_, err = ds.ScrapeArticle(context.Background(), site.url("/news/broken"))
	assert.Error(t, err)

	_, err = ds.ScrapeArticle(context.Background(), site.url("/latest-news?page=9"))
	assert.ErrorIs(t, err, ErrNoTitle)
}

// TestScrapeLatest verifies on-demand scraping honours the limit and leaves
// the store alone
func TestScrapeLatest(t *testing.T) {
	site := newFakeSite(t)
	ds, feed := setupTestService(t, site)

	articles, err := ds.ScrapeLatest(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Story 1", articles[0].Title)
	assert.Equal(t, "Story 2", articles[1].Title)
	assert.Equal(t, site.url("/news/1"), articles[0].URL)

	count, err := feed.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	empty, err := ds.ScrapeLatest(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

// TestScrapeLatest_LeavesSourceHealthAlone verifies on-demand scrapes do not
// count toward a source's failures
func TestScrapeLatest_LeavesSourceHealthAlone(t *testing.T) {
	site := newFakeSite(t)
	ds, _ := setupTestService(t, site)
	ds.config.DisableThreshold = 1

	store, err := sources.NewSourceStore(filepath.Join(t.TempDir(), "sources.db"))
	require.NoError(t, err)
	defer store.Close()

	synced, err := store.SyncCategories([]scraper.Category{
		{Name: "Latest", URL: site.url("/latest-news")},
		{Name: "Gone", URL: site.url("/missing-section")},
	})
	require.NoError(t, err)
	ds.WithSources(store)

	for range 3 {
		articles, err := ds.ScrapeLatest(context.Background(), 2)
		require.NoError(t, err)
		assert.Len(t, articles, 2)
	}

	latest, err := store.GetSource(synced[0].SourceID)
	require.NoError(t, err)
	assert.Nil(t, latest.LastFetchedAt)

	gone, err := store.GetSource(synced[1].SourceID)
	require.NoError(t, err)
	assert.Equal(t, 0, gone.FetchErrorCount)
	assert.Nil(t, gone.LastError)
	assert.True(t, gone.IsEnabled())
}

// TestRun_StopsOnStop verifies the scheduler runs immediately and exits on
// Stop
func TestRun_StopsOnStop(t *testing.T) {
	site := newFakeSite(t)
	ds, feed := setupTestService(t, site)

	done := make(chan error, 1)
	go func() {
		done <- ds.Run(context.Background())
	}()

	assert.Eventually(t, func() bool {
		count, err := feed.Count()
		return err == nil && count == 3
	}, 5*time.Second, 20*time.Millisecond)

	ds.Stop()
	ds.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

// TestRun_StopsOnCancel verifies context cancellation ends the loop
func TestRun_StopsOnCancel(t *testing.T) {
	site := newFakeSite(t)
	ds, _ := setupTestService(t, site)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ds.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestSleepCtx verifies waits are cut short by cancellation
func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
