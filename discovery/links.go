package discovery

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/scraper"
)

// HarvestLinksFromHTML parses html and harvests article links from it. Empty
// or unparseable input yields an empty slice.
func HarvestLinksFromHTML(html, pageURL string, cfg scraper.ListConfig) []string {
	if strings.TrimSpace(html) == "" {
		return []string{}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}
	return HarvestLinks(doc, pageURL, cfg)
}

// HarvestLinks returns the absolute URLs of article links on a listing page,
// in document order and without duplicates. Anchors are taken from the
// structural containers if any exist, else from the loose containers, else
// from the whole page.
func HarvestLinks(doc *goquery.Document, pageURL string, cfg scraper.ListConfig) []string {
	links := []string{}
	if doc == nil {
		return links
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return links
	}

	containers := selectAny(doc.Selection, cfg.ContainerSelectors)
	if containers.Length() == 0 {
		containers = selectAny(doc.Selection, cfg.LooseContainerSelectors)
	}
	if containers.Length() == 0 {
		containers = doc.Selection
	}

	seen := make(map[string]struct{})
	containers.Each(func(_ int, container *goquery.Selection) {
		anchors := container.Find("a[href]")
		if goquery.NodeName(container) == "a" {
			anchors = container
		}

		anchors.Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			link, ok := resolveArticleLink(base, href, cfg.PathIndicators)
			if !ok {
				return
			}
			if _, dup := seen[link]; dup {
				return
			}
			seen[link] = struct{}{}
			links = append(links, link)
		})
	})

	return links
}

// resolveArticleLink resolves href against base and reports whether the
// result is an http(s) URL whose path carries an article indicator.
func resolveArticleLink(base *url.URL, href string, indicators []string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	if strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !hasIndicator(abs.Path, indicators) {
		return "", false
	}

	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}

func hasIndicator(path string, indicators []string) bool {
	for _, indicator := range indicators {
		if strings.Contains(path, indicator) {
			return true
		}
	}
	return false
}

// selectAny returns every element matching any of selectors, in document
// order.
func selectAny(root *goquery.Selection, selectors []string) *goquery.Selection {
	if len(selectors) == 0 {
		return root.Slice(0, 0)
	}
	return root.Find(strings.Join(selectors, ", "))
}

// PageURL returns the listing URL for page n, merging the page parameter
// into any existing query.
func PageURL(listingURL, param string, n int) (string, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("invalid listing URL: %w", err)
	}
	if param == "" {
		param = "page"
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
