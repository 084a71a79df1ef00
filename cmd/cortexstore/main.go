// Package main implements the cortexstore server binary: the tiered
// columnar store behind its HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prostudio/cortexstore/internal/app"
	"github.com/prostudio/cortexstore/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "CortexStore - Tiered Columnar Data Store\n\n")
		fmt.Fprintf(os.Stderr, "Usage: cortexstore [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cortexstore --data-dir /data/cortexstore\n")
		fmt.Fprintf(os.Stderr, "  cortexstore --config /etc/cortexstore/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  CORTEX_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  CORTEX_HTTP_ADDR       HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  CORTEX_STORAGE_TYPE    Cold replication target (none, local, s3)\n")
		fmt.Fprintf(os.Stderr, "  CORTEX_S3_BUCKET       S3 bucket for cold archive replication\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("cortexstore version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line
// flags, in increasing priority.
func loadConfig(configFile, dataDir, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("CortexStore - Tiered Columnar Data Store")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Data Dir:       %s", cfg.DataDir)
	log.Printf("  HTTP:           %s", cfg.HTTP.Addr)
	log.Printf("  Tiering:        every %v, age threshold %v", cfg.Tiering.CheckInterval, cfg.Tiering.AgeThreshold)
	log.Printf("  Cold replica:   %s", cfg.Storage.Type)
	log.Printf("")
}
