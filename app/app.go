// Package app assembles the scraper's components from Options.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/discovery"
	"github.com/pevans/newsharvest/images"
	"github.com/pevans/newsharvest/logging"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/recency"
	"github.com/pevans/newsharvest/sources"
)

// App holds the wired components shared by the binaries.
type App struct {
	Options *config.Options
	Profile *config.SiteProfile
	Logger  *slog.Logger
	Feed    *newsfeed.NewsFeed
	Sources *sources.SourceStore
	Images  *images.Downloader
	Service *discovery.DiscoveryService

	closers []func() error
}

// New opens the log file, the article store and the source database, syncs
// the profile's categories into the source database and builds the
// discovery service. The caller must Close the App.
func New(opts *config.Options) (*App, error) {
	logger, closeLog, err := logging.Setup(opts.LogLevel, opts.LogFile)
	if err != nil {
		return nil, err
	}
	a := &App{Options: opts, Logger: logger, closers: []func() error{closeLog}}

	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	opts := a.Options

	profile, err := config.LoadSiteProfile(opts.SiteProfile)
	if err != nil {
		return err
	}
	a.Profile = profile

	feed, err := newsfeed.NewNewsFeed(opts.DataFile, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open article store: %w", err)
	}
	a.Feed = feed

	fetcher := opts.Fetcher()
	service := discovery.NewDiscoveryService(feed, &profile.Scraper, opts.Discovery(profile.Categories), a.Logger).
		WithFetcher(fetcher).
		WithClassifier(recency.NewClassifier(opts.Location()))

	if opts.SourcesDB != "" {
		if err := os.MkdirAll(filepath.Dir(opts.SourcesDB), 0o755); err != nil {
			return fmt.Errorf("failed to create source store directory: %w", err)
		}
		store, err := sources.NewSourceStore(opts.SourcesDB)
		if err != nil {
			return fmt.Errorf("failed to open source store: %w", err)
		}
		a.Sources = store
		a.closers = append(a.closers, store.Close)

		synced, err := store.SyncCategories(profile.Categories)
		if err != nil {
			return fmt.Errorf("failed to sync categories: %w", err)
		}
		a.Logger.Debug("Synced sources", "count", len(synced))
		service.WithSources(store)
	}

	if !opts.NoImages {
		downloader, err := images.NewDownloader(opts.ImageDir, fetcher, a.Logger)
		if err != nil {
			return err
		}
		a.Images = downloader
		service.WithImages(downloader)
	}

	a.Service = service
	return nil
}

// Close releases everything New opened, most recent first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
