// Package main provides the entry point for the Inkwell story-writing service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/inkwell-ai/inkwell/internal/app"
	"github.com/inkwell-ai/inkwell/internal/completion"
	"github.com/inkwell-ai/inkwell/internal/config"
	"github.com/inkwell-ai/inkwell/internal/infrastructure"
	"github.com/inkwell-ai/inkwell/internal/metrics"
	"github.com/inkwell-ai/inkwell/internal/promptcache"
	"github.com/inkwell-ai/inkwell/internal/server"
	"github.com/inkwell-ai/inkwell/internal/story"
)

func main() {
	// Set a default config path. This can be overridden by environment variables if needed.
	configPath := "config.yaml"
	if p := os.Getenv("INKWELL_CONFIG"); p != "" {
		configPath = p
	}

	metrics.Register()

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// Application modules
		promptcache.Module,
		completion.Module,
		story.Module,
		server.Module,

		// Supply the config path
		fx.Supply(configPath),

		// Configure Fx to use our Zap logger for its own internal logging
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
	)

	// Listen for OS signals (like Ctrl+C)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go application.Run()

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	// Give the application 30 seconds to shut down gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
