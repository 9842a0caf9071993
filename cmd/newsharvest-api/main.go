package main

import (
	"log"
	"os"

	"github.com/pevans/newsharvest/api"
	"github.com/pevans/newsharvest/app"
	"github.com/pevans/newsharvest/config"
)

func main() {
	opts, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if opts == nil {
		return
	}

	// The on-demand endpoint never downloads images.
	opts.NoImages = true

	a, err := app.New(opts)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	info := api.DefaultFeedInfo()
	info.Link = a.Profile.BaseURL
	info.Location = opts.Location()

	server := api.NewAPIServer(a.Service, a.Feed, a.Logger).
		WithArticleLimit(opts.APILimit).
		WithFeedInfo(info)
	if a.Sources != nil {
		server.WithSources(a.Sources)
	}
	router := server.SetupRouter()

	addr := ":" + opts.Port
	a.Logger.Info("Starting API server", "addr", addr)

	if err := router.Run(addr); err != nil {
		a.Logger.Error("Server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
}
