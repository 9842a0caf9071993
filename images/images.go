// Package images saves article images to local storage under readable,
// collision-free names.
package images

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxSlugLength is the longest title slug used in a filename, in runes.
const maxSlugLength = 50

// maxImageSize caps a single download.
const maxImageSize = 25 << 20

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var (
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Getter issues GET requests; a non-200 status must be returned as an error.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Downloader stores images in a directory.
type Downloader struct {
	dir    string
	getter Getter
	logger *slog.Logger
}

// NewDownloader creates a downloader writing into dir, creating it if
// needed.
func NewDownloader(dir string, getter Getter, logger *slog.Logger) (*Downloader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{dir: dir, getter: getter, logger: logger}, nil
}

// Dir returns the image directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Download saves imageURL and returns its local path. An image already on
// disk is not fetched again.
func (d *Downloader) Download(ctx context.Context, imageURL, title, articleURL string) (string, error) {
	localPath := filepath.Join(d.dir, Filename(imageURL, title, articleURL))

	if _, err := os.Stat(localPath); err == nil {
		d.logger.Debug("Image already exists", "path", localPath)
		return localPath, nil
	}

	resp, err := d.getter.Get(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to download image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(d.dir, ".image-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image %s: %w", imageURL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}
	if n > maxImageSize {
		return "", fmt.Errorf("image %s exceeds %d bytes", imageURL, maxImageSize)
	}
	if n == 0 {
		return "", errors.New("empty image body")
	}

	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}

	d.logger.Info("Downloaded image", "path", localPath, "bytes", n)
	return localPath, nil
}

// DownloadAll saves at most limit images and returns the local paths of
// those that succeeded. A limit of zero or less downloads nothing. Failures
// are logged and skipped.
func (d *Downloader) DownloadAll(ctx context.Context, imageURLs []string, limit int, title, articleURL string) []string {
	paths := []string{}
	for i, imageURL := range imageURLs {
		if i >= limit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		p, err := d.Download(ctx, imageURL, title, articleURL)
		if err != nil {
			d.logger.Warn("Failed to download image", "url", imageURL, "error", err)
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// Filename returns "<slug>-<hash><ext>" for an image, where slug comes from
// the article title (or its URL) and hash is the first 8 hex digits of the
// MD5 of the image URL.
func Filename(imageURL, title, articleURL string) string {
	sum := md5.Sum([]byte(imageURL))
	return fmt.Sprintf("%s-%s%s", Slug(title, articleURL), hex.EncodeToString(sum[:])[:8], extension(imageURL))
}

// Slug derives a filesystem-safe name from title, keeping letters in any
// script. An empty result falls back to "article-" plus 10 hex digits of the
// article URL's MD5.
func Slug(title, articleURL string) string {
	s := norm.NFC.String(title)
	s = unsafeChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-")

	if runes := []rune(s); len(runes) > maxSlugLength {
		s = strings.TrimRight(string(runes[:maxSlugLength]), "-")
	}
	if s != "" {
		return s
	}

	sum := md5.Sum([]byte(articleURL))
	return "article-" + hex.EncodeToString(sum[:])[:10]
}

// extension returns the image's extension if recognised, else ".jpg".
func extension(imageURL string) string {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if allowedExtensions[ext] {
		return ext
	}
	return ".jpg"
}
