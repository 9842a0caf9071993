package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/pevans/newsharvest/newsfeed"
	"github.com/pevans/newsharvest/sources"
)

const (
	scrapedWidth  = 19
	categoryWidth = 14
	titleWidth    = 60
	nameWidth     = 24
	errorWidth    = 40
)

// cell truncates s to width terminal columns and pads it on the right.
func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "..."), width)
}

// printItemsTable prints stored articles one per line.
func printItemsTable(w io.Writer, items []newsfeed.NewsItem, total int) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No articles to display.")
		return
	}

	fmt.Fprintf(w, "Showing %d of %d articles\n\n", len(items), total)
	fmt.Fprintf(w, "%s  %s  %s\n", cell("SCRAPED", scrapedWidth), cell("CATEGORY", categoryWidth), "TITLE")
	for _, item := range items {
		fmt.Fprintf(w, "%s  %s  %s\n",
			cell(item.ScrapedAt, scrapedWidth),
			cell(item.Category, categoryWidth),
			runewidth.Truncate(item.Title, titleWidth, "..."),
		)
	}
}

// printSourcesTable prints sources with their fetch health.
func printSourcesTable(w io.Writer, list []sources.Source) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-3s  %6s  %5s  %s  %s\n", "ID", "ON", "ERRORS", "LINKS", cell("NAME", nameWidth), "LAST ERROR")
	for _, s := range list {
		on := "no"
		if s.IsEnabled() {
			on = "yes"
		}
		lastError := ""
		if s.LastError != nil {
			lastError = runewidth.Truncate(*s.LastError, errorWidth, "...")
		}
		fmt.Fprintf(w, "%-36s  %-3s  %6d  %5d  %s  %s\n",
			s.SourceID, on, s.FetchErrorCount, s.LastLinkCount, cell(s.Name, nameWidth), lastError)
	}
}

// printArticle prints one extracted article in detail.
func printArticle(w io.Writer, item newsfeed.NewsItem) {
	fmt.Fprintln(w, item.Title)
	fmt.Fprintln(w, strings.Repeat("=", min(runewidth.StringWidth(item.Title), 80)))
	fmt.Fprintf(w, "Date:     %s\n", item.Date)
	fmt.Fprintf(w, "Category: %s\n", item.Category)
	fmt.Fprintf(w, "Author:   %s\n", item.Author)
	fmt.Fprintf(w, "URL:      %s\n", item.URL)
	if !item.Recent {
		fmt.Fprintln(w, "Note:     no recent date marker found")
	}
	for _, img := range item.ImageURLs {
		fmt.Fprintf(w, "Image:    %s\n", img)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, wrapText(item.Content, 80))
}

// printJSON prints v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// wrapText wraps text to a maximum display width, keeping paragraph breaks.
func wrapText(text string, width int) string {
	paragraphs := strings.Split(text, "\n")
	wrapped := make([]string, 0, len(paragraphs))

	for _, para := range paragraphs {
		words := strings.Fields(para)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}

		var lines []string
		var line strings.Builder
		lineWidth := 0
		for _, word := range words {
			wordWidth := runewidth.StringWidth(word)
			switch {
			case lineWidth == 0:
				line.WriteString(word)
				lineWidth = wordWidth
			case lineWidth+1+wordWidth <= width:
				line.WriteString(" ")
				line.WriteString(word)
				lineWidth += 1 + wordWidth
			default:
				lines = append(lines, line.String())
				line.Reset()
				line.WriteString(word)
				lineWidth = wordWidth
			}
		}
		lines = append(lines, line.String())
		wrapped = append(wrapped, strings.Join(lines, "\n"))
	}

	return strings.Join(wrapped, "\n")
}
