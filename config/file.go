package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pevans/newsharvest/scraper"
	"gopkg.in/yaml.v3"
)

// SiteProfile describes the site being harvested: where its listing pages
// live and how to read them.
type SiteProfile struct {
	BaseURL    string                `yaml:"base_url"`
	Categories []scraper.Category    `yaml:"categories"`
	Scraper    scraper.ScraperConfig `yaml:"scraper"`
}

// DefaultSiteProfile returns the built-in dhakapost.com profile.
func DefaultSiteProfile() *SiteProfile {
	return &SiteProfile{
		BaseURL:    scraper.DefaultBaseURL,
		Categories: scraper.DefaultCategories(),
		Scraper:    *scraper.NewScraperConfig(),
	}
}

// LoadSiteProfile loads a site profile from path. An empty path or a missing
// file yields the built-in profile. Fields the file leaves out keep their
// built-in values, and relative category URLs are resolved against the
// profile's base URL.
func LoadSiteProfile(path string) (*SiteProfile, error) {
	if path == "" {
		return DefaultSiteProfile(), nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSiteProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site profile: %w", err)
	}

	var profile SiteProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse site profile: %w", err)
	}

	if err := profile.complete(); err != nil {
		return nil, err
	}
	return &profile, nil
}

// complete fills defaults and resolves category URLs.
func (p *SiteProfile) complete() error {
	defaults := DefaultSiteProfile()

	if p.BaseURL == "" {
		p.BaseURL = defaults.BaseURL
	}
	base, err := url.Parse(p.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("invalid base URL %q", p.BaseURL)
	}

	if len(p.Categories) == 0 {
		// The default categories hang off the default host.
		for _, c := range scraper.DefaultCategories() {
			c.URL = strings.Replace(c.URL, scraper.DefaultBaseURL, strings.TrimRight(p.BaseURL, "/"), 1)
			p.Categories = append(p.Categories, c)
		}
	}

	for i := range p.Categories {
		c := &p.Categories[i]
		if c.URL == "" {
			return fmt.Errorf("category %q has no url", c.Name)
		}
		resolved, err := resolve(base, c.URL)
		if err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
		c.URL = resolved
		if c.FeedURL != "" {
			if c.FeedURL, err = resolve(base, c.FeedURL); err != nil {
				return fmt.Errorf("category %q feed: %w", c.Name, err)
			}
		}
		if c.Name == "" {
			c.Name = c.URL
		}
	}

	p.Scraper.Merge(&defaults.Scraper)
	return nil
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}
