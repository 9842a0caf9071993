package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/recency"
	"github.com/pevans/newsharvest/scraper"
)

// Options holds the settings shared by every binary. Each can be given as a
// flag, an environment variable or a line in .env.
type Options struct {
	// Storage
	DataFile  string `long:"data-file" env:"DATA_FILE" default:"output/dhaka_post_today.csv" description:"CSV file the articles are appended to"`
	ImageDir  string `long:"image-dir" env:"IMAGE_DIR" default:"images" description:"Directory downloaded images are saved in"`
	SourcesDB string `long:"sources-db" env:"SOURCES_DB" default:"output/sources.db" description:"SQLite database tracking listing pages"`
	NoImages  bool   `long:"no-images" env:"NO_IMAGES" description:"Do not download article images"`

	// Site
	SiteProfile string        `long:"site-profile" env:"SITE_PROFILE" description:"YAML file overriding the built-in site profile"`
	Timezone    string        `long:"timezone" env:"SITE_TIMEZONE" default:"Asia/Dhaka" description:"Timezone used to decide whether an article is recent"`
	UserAgent   string        `long:"user-agent" env:"USER_AGENT" description:"User agent string for HTTP requests"`
	Timeout     time.Duration `long:"timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Per-request HTTP timeout"`

	// Scheduling
	Interval         time.Duration `long:"interval" env:"SCRAPE_INTERVAL" default:"10m" description:"Time between scheduled runs"`
	Delay            time.Duration `long:"delay" env:"SCRAPE_DELAY" default:"2s" description:"Pause between successive page fetches"`
	MinArticles      int           `long:"min-articles" env:"MIN_ARTICLES" default:"25" description:"New articles wanted per run"`
	MaxImages        int           `long:"max-images" env:"MAX_IMAGES" default:"3" description:"Images downloaded per article (0 downloads none)"`
	DisableThreshold int           `long:"disable-threshold" env:"DISABLE_THRESHOLD" default:"10" description:"Consecutive listing failures before a source is disabled (0 = never)"`

	// API
	Port     string `long:"port" env:"PORT" default:"5000" description:"HTTP server port"`
	APILimit int    `long:"api-limit" env:"API_LIMIT" default:"10" description:"Articles scraped per GET /articles request"`

	// Logging
	LogLevel string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFile  string `long:"log-file" env:"LOG_FILE" default:"scraper.log" description:"Log file written alongside stdout (empty disables)"`
}

// Load reads the given .env files (".env" when none are named) into the
// environment and parses args over Options. Missing .env files are skipped
// and variables already set in the environment win. A nil Options with a
// nil error means help was printed.
func Load(args []string, envFiles ...string) (*Options, error) {
	if err := LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		if IsHelp(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &opts, nil
}

// LoadDotEnv loads each existing file into the environment.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// IsHelp reports whether err is go-flags' help request.
func IsHelp(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp
}

// Validate checks values go-flags cannot.
func (o *Options) Validate() error {
	if o.DataFile == "" {
		return errors.New("data file must not be empty")
	}
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", o.Interval)
	}
	if o.Delay < 0 {
		return fmt.Errorf("delay must not be negative, got %s", o.Delay)
	}
	if o.MinArticles <= 0 {
		return fmt.Errorf("min articles must be positive, got %d", o.MinArticles)
	}
	if o.MaxImages < 0 {
		return fmt.Errorf("max images must not be negative, got %d", o.MaxImages)
	}
	if o.APILimit <= 0 {
		return fmt.Errorf("API limit must be positive, got %d", o.APILimit)
	}
	return nil
}

// Location returns the configured timezone, falling back to Dhaka's when it
// cannot be loaded.
func (o *Options) Location() *time.Location {
	if o.Timezone == "" || o.Timezone == recency.DefaultTimezone {
		return recency.Dhaka()
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return recency.Dhaka()
	}
	return loc
}

// Discovery builds the discovery service settings for the given categories.
func (o *Options) Discovery(categories []scraper.Category) *discovery.DiscoveryConfig {
	return &discovery.DiscoveryConfig{
		Categories:          categories,
		MinArticles:         o.MinArticles,
		MaxImagesPerArticle: o.MaxImages,
		Delay:               o.Delay,
		Interval:            o.Interval,
		DisableThreshold:    o.DisableThreshold,
	}
}

// Fetcher builds the HTTP fetcher.
func (o *Options) Fetcher() *discovery.Fetcher {
	return discovery.NewFetcher(o.Timeout, o.UserAgent)
}
