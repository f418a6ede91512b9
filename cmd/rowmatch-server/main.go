// Command rowmatch-server serves comparisons over HTTP and WebSocket.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"rowmatch/internal/app"
	"rowmatch/internal/config"
	"rowmatch/internal/infrastructure"
	"rowmatch/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "configuration file (defaults to config.yaml or configs/config.yaml when present)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("Failed to create directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := serve(cfg); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	logger, err := infrastructure.InitializeLogger(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run()
}
