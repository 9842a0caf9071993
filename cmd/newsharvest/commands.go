package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/sources"
)

// listCommand prints stored articles.
type listCommand struct {
	Limit    int    `long:"limit" short:"n" default:"20" description:"Number of articles to show"`
	Category string `long:"category" short:"c" description:"Only show this category"`
	JSON     bool   `long:"json" description:"Print JSON instead of a table"`
}

func (c *listCommand) Execute(_ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.Feed.List()
	if err != nil {
		return fmt.Errorf("failed to read articles: %w", err)
	}
	slices.Reverse(items)

	if c.Category != "" {
		items = slices.DeleteFunc(items, func(item newsfeed.NewsItem) bool {
			return !strings.EqualFold(item.Category, c.Category)
		})
	}
	total := len(items)
	if c.Limit > 0 && len(items) > c.Limit {
		items = items[:c.Limit]
	}

	if c.JSON {
		return printJSON(os.Stdout, map[string]any{"items": items, "total": total})
	}
	printItemsTable(os.Stdout, items, total)
	return nil
}

// sourcesCommand groups the source subcommands.
type sourcesCommand struct {
	List    sourcesListCommand    `command:"list" description:"List listing pages and their fetch health"`
	Enable  sourcesEnableCommand  `command:"enable" description:"Enable a listing page and clear its errors"`
	Disable sourcesDisableCommand `command:"disable" description:"Disable a listing page"`
}

type sourcesListCommand struct {
	JSON bool `long:"json" description:"Print JSON instead of a table"`
}

func (c *sourcesListCommand) Execute(_ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Sources == nil {
		return fmt.Errorf("no source database configured")
	}

	list, err := a.Sources.ListSources(sources.SourceFilter{})
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if c.JSON {
		return printJSON(os.Stdout, map[string]any{"sources": list, "total": len(list)})
	}
	printSourcesTable(os.Stdout, list)
	return nil
}

// sourceIDArgs is the positional argument shared by enable and disable.
type sourceIDArgs struct {
	Args struct {
		ID string `positional-arg-name:"source-id" required:"yes"`
	} `positional-args:"yes"`
}

type sourcesEnableCommand struct{ sourceIDArgs }

func (c *sourcesEnableCommand) Execute(_ []string) error {
	return setSourceEnabled(c.Args.ID, true)
}

type sourcesDisableCommand struct{ sourceIDArgs }

func (c *sourcesDisableCommand) Execute(_ []string) error {
	return setSourceEnabled(c.Args.ID, false)
}

func setSourceEnabled(rawID string, enable bool) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid source ID %q: %w", rawID, err)
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Sources == nil {
		return fmt.Errorf("no source database configured")
	}

	if err := a.Sources.SetEnabled(id, enable); err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	source, err := a.Sources.GetSource(id)
	if err != nil {
		return err
	}

	state := "Disabled"
	if enable {
		state = "Enabled"
	}
	fmt.Printf("✓ %s source: %s\n", state, source.SourceID)
	fmt.Printf("  Name: %s\n", source.Name)
	fmt.Printf("  URL: %s\n", source.URL)
	return nil
}

// scrapeCommand extracts one article.
type scrapeCommand struct {
	JSON bool `long:"json" description:"Print JSON instead of text"`
	Args struct {
		URL string `positional-arg-name:"url" required:"yes"`
	} `positional-args:"yes"`
}

func (c *scrapeCommand) Execute(_ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	item, err := a.Service.ScrapeArticle(ctx, c.Args.URL)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(os.Stdout, item)
	}
	printArticle(os.Stdout, *item)
	return nil
}

// onceCommand runs a single harvest.
type onceCommand struct{}

func (c *onceCommand) Execute(_ []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.Service.RunOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", result.RunID)
	fmt.Printf("  Links found:  %d\n", result.LinksFound)
	fmt.Printf("  New links:    %d\n", result.Candidates)
	fmt.Printf("  Added:        %d\n", result.Added)
	fmt.Printf("  Duplicates:   %d\n", result.Duplicates)
	fmt.Printf("  Failed:       %d\n", result.Failed)
	fmt.Printf("  Not recent:   %d\n", result.Stale)
	fmt.Printf("  Total stored: %d\n", result.Total)
	return nil
}

// verifyCommand checks the article store.
type verifyCommand struct{}

func (c *verifyCommand) Execute(_ []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Feed.Verify()
	if err != nil {
		return err
	}

	switch {
	case result.QuarantinedTo != "":
		fmt.Printf("✗ %s could not be read and was moved to %s\n", a.Feed.Path(), result.QuarantinedTo)
	case !result.Exists:
		fmt.Printf("%s does not exist yet\n", a.Feed.Path())
	default:
		fmt.Printf("✓ %s: %d articles, columns: %s\n", a.Feed.Path(), result.Rows, strings.Join(result.Columns, ", "))
	}
	return nil
}
