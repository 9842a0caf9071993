package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pevans/newsharvest/app"
	"github.com/pevans/newsharvest/config"
)

// options is the parsed command line: the shared settings plus one command.
type options struct {
	config.Options

	List    listCommand    `command:"list" description:"List stored articles, newest first"`
	Sources sourcesCommand `command:"sources" description:"Inspect and toggle listing pages"`
	Scrape  scrapeCommand  `command:"scrape" description:"Extract a single article without storing it"`
	Once    onceCommand    `command:"once" description:"Run one harvest and append new articles"`
	Verify  verifyCommand  `command:"verify" description:"Check the article store and set it aside if unreadable"`
}

var cli options

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	parser := flags.NewParser(&cli, flags.Default)
	parser.Name = "newsharvest"

	if _, err := parser.Parse(); err != nil {
		if config.IsHelp(err) {
			return
		}
		os.Exit(1)
	}
}

// openApp validates the shared options and wires the components. Commands
// that only read keep the log file but never download images.
func openApp(readOnly bool) (*app.App, error) {
	opts := cli.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if readOnly {
		opts.NoImages = true
	}
	return app.New(&opts)
}
