package images

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
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: a getter backed by the default client
type httpGetter struct{}

func (httpGetter) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}
	return resp, nil
}

// Test helper: an image server that counts requests
func setupImageServer(t *testing.T) (*httptest.Server, *int32) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("fake image bytes"))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

// TestSlug verifies title slugs keep letters in any script
func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"ascii", "Hello, World: Breaking News!", "Hello-World-Breaking-News"},
		{"bengali", "ঢাকা বৃষ্টি", "ঢাকা-বৃষ্টি"},
		{"collapses whitespace", "  many   spaces\there ", "many-spaces-here"},
		{"keeps dashes and underscores", "a_b - c", "a_b---c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.title, "https://www.dhakapost.com/news/1"))
		})
	}
}

// TestSlug_Truncates verifies slugs are capped at 50 runes
func TestSlug_Truncates(t *testing.T) {
	slug := Slug(strings.Repeat("বাংলা ", 30), "https://www.dhakapost.com/news/1")

	assert.LessOrEqual(t, utf8.RuneCountInString(slug), 50)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

// TestSlug_Fallback verifies an unusable title falls back to the URL hash
func TestSlug_Fallback(t *testing.T) {
	slug := Slug("!!! ???", "https://www.dhakapost.com/news/1")

	assert.True(t, strings.HasPrefix(slug, "article-"))
	assert.Len(t, slug, len("article-")+10)
	assert.Equal(t, slug, Slug("", "https://www.dhakapost.com/news/1"), "fallback is deterministic")
}

// TestFilename verifies the extension and hash suffix
func TestFilename(t *testing.T) {
	tests := []struct {
		imageURL string
		wantExt  string
	}{
		{"https://cdn.example.com/a/photo.PNG", ".png"},
		{"https://cdn.example.com/a/photo.webp?w=800", ".webp"},
		{"https://cdn.example.com/a/photo", ".jpg"},
		{"https://cdn.example.com/a/photo.bmp", ".jpg"},
		{"https://cdn.example.com/a/photo.jpeg", ".jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.imageURL, func(t *testing.T) {
			name := Filename(tt.imageURL, "Some Title", "https://www.dhakapost.com/news/1")
			assert.True(t, strings.HasPrefix(name, "Some-Title-"))
			assert.True(t, strings.HasSuffix(name, tt.wantExt))

			hash := strings.TrimSuffix(strings.TrimPrefix(name, "Some-Title-"), tt.wantExt)
			assert.Len(t, hash, 8)
		})
	}

	a := Filename("https://cdn.example.com/1.jpg", "T", "u")
	b := Filename("https://cdn.example.com/2.jpg", "T", "u")
	assert.NotEqual(t, a, b, "different images of one article must not collide")
}

// TestDownload_SavesAndSkipsExisting verifies downloads are idempotent
func TestDownload_SavesAndSkipsExisting(t *testing.T) {
	server, hits := setupImageServer(t)
	dir := filepath.Join(t.TempDir(), "images")

	d, err := NewDownloader(dir, httpGetter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, dir, d.Dir())

	imageURL := server.URL + "/photo.png"
	path, err := d.Download(context.Background(), imageURL, "Flood in Sylhet", "https://www.dhakapost.com/news/1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Filename(imageURL, "Flood in Sylhet", "https://www.dhakapost.com/news/1")), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake image bytes", string(data))

	again, err := d.Download(context.Background(), imageURL, "Flood in Sylhet", "https://www.dhakapost.com/news/1")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "existing image should not be fetched again")
}

// TestDownload_HTTPError verifies failed downloads leave nothing behind
func TestDownload_HTTPError(t *testing.T) {
	server, _ := setupImageServer(t)
	dir := t.TempDir()

	d, err := NewDownloader(dir, httpGetter{}, nil)
	require.NoError(t, err)

	_, err = d.Download(context.Background(), server.URL+"/missing.jpg", "Title", "u")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestDownloadAll verifies the limit and that failures are skipped
func TestDownloadAll(t *testing.T) {
	server, _ := setupImageServer(t)

	d, err := NewDownloader(t.TempDir(), httpGetter{}, nil)
	require.NoError(t, err)

	urls := []string{
		server.URL + "/1.jpg",
		server.URL + "/missing.jpg",
		server.URL + "/3.jpg",
		server.URL + "/4.jpg",
	}

	paths := d.DownloadAll(context.Background(), urls, 3, "Title", "u")
	assert.Len(t, paths, 2, "only the first three are attempted and one fails")
}

func TestDownloadAll_ZeroLimit(t *testing.T) {
	server, hits := setupImageServer(t)

	dir := t.TempDir()
	d, err := NewDownloader(dir, httpGetter{}, nil)
	require.NoError(t, err)

	urls := []string{server.URL + "/1.jpg", server.URL + "/2.jpg", server.URL + "/3.jpg", server.URL + "/4.jpg"}

	assert.Empty(t, d.DownloadAll(context.Background(), urls, 0, "Title", "u"))
	assert.Empty(t, d.DownloadAll(context.Background(), urls, -1, "Title", "u"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written when the limit is zero")
	assert.Zero(t, atomic.LoadInt32(hits))
}
