package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

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

	a, err := app.New(opts)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()
	logger := a.Logger

	// A file that cannot be read is set aside so the first run starts clean.
	result, err := a.Feed.Verify()
	if err != nil {
		logger.Error("Failed to verify article store", "path", a.Feed.Path(), "error", err)
	} else if result.QuarantinedTo != "" {
		logger.Warn("Article store was unreadable and has been set aside", "backup", result.QuarantinedTo)
	} else if result.Exists {
		logger.Info("Article store verified", "path", a.Feed.Path(), "rows", result.Rows, "columns", len(result.Columns))
	}

	service := a.Service

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- service.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", "signal", sig.String())
		cancel()
		service.Stop()

		shutdownTimer := time.NewTimer(60 * time.Second)
		select {
		case <-errChan:
			logger.Info("Service stopped")
		case <-shutdownTimer.C:
			logger.Warn("Shutdown timeout exceeded, forcing exit")
		}
	case err := <-errChan:
		if err != nil {
			logger.Error("Service error", "error", err)
			a.Close()
			os.Exit(1)
		}
	}
}
