// Package app provides the unified application lifecycle for the
// CortexStore server.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	httpapi "github.com/prostudio/cortexstore/internal/api/http"
	"github.com/prostudio/cortexstore/internal/config"
	"github.com/prostudio/cortexstore/internal/connector"
	"github.com/prostudio/cortexstore/internal/server"
	"github.com/prostudio/cortexstore/internal/storage"
	"github.com/prostudio/cortexstore/internal/store"
	"github.com/prostudio/cortexstore/internal/tiering"
)

// App manages the CortexStore service lifecycle.
type App struct {
	cfg *config.Config

	// Shared resources
	remote    storage.ObjectStorage
	dataStore *store.DataStore
	shutdown  *server.ShutdownManager

	// Connectors registered at startup so their columns exist before the
	// first ingest.
	signals *connector.SignalConnector
	graph   *connector.GraphConnector

	httpServer *http.Server

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{cfg: cfg}, nil
}

// Store exposes the underlying data store.
func (a *App) Store() *store.DataStore {
	return a.dataStore
}

// Signals exposes the signal-mesh connector.
func (a *App) Signals() *connector.SignalConnector {
	return a.signals
}

// Graph exposes the entity-graph connector.
func (a *App) Graph() *connector.GraphConnector {
	return a.graph
}

// Start initializes shared resources, the store, and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize resources: %w", err)
	}
	if err := a.startHTTP(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := a.dataStore.StartTiering(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start tiering daemon: %w", err)
	}
	log.Printf("Tiering daemon started: interval=%s, age_threshold=%s",
		a.cfg.Tiering.CheckInterval, a.cfg.Tiering.AgeThreshold)

	log.Printf("CortexStore started: data_dir=%s", a.cfg.DataDir)
	return nil
}

// initResources builds object storage, the data store, and the connectors.
func (a *App) initResources(ctx context.Context) error {
	var err error

	switch a.cfg.Storage.Type {
	case "none":
		a.remote = nil
	case "local":
		a.remote, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		a.remote, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.Endpoint != "",
		})
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if a.cfg.Storage.Type != "none" {
		log.Printf("Cold archive replication enabled: type=%s", a.cfg.Storage.Type)
	}

	a.dataStore, err = store.New(store.Options{
		WarmDir:      a.cfg.WarmDir(),
		ColdDir:      a.cfg.ColdDir(),
		Remote:       a.remote,
		CacheEntries: a.cfg.Query.CacheEntries,
		StatsWindow:  a.cfg.Query.StatsWindow,
		Tiering: tiering.Config{
			CheckInterval: a.cfg.Tiering.CheckInterval,
			AgeThreshold:  a.cfg.Tiering.AgeThreshold,
			HotCapacity:   a.cfg.Hot.MaxRows,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open data store: %w", err)
	}
	log.Printf("Data store opened: warm=%s, cold=%s", a.cfg.WarmDir(), a.cfg.ColdDir())

	a.signals, err = connector.NewSignalConnector(a.dataStore)
	if err != nil {
		return fmt.Errorf("failed to build signal connector: %w", err)
	}
	a.graph, err = connector.NewGraphConnector(a.dataStore)
	if err != nil {
		return fmt.Errorf("failed to build graph connector: %w", err)
	}

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())
	a.shutdown.RegisterCloser(server.CloserFunc(a.dataStore.Close))
	return nil
}

// startHTTP wires the API handlers into an HTTP server and starts it.
func (a *App) startHTTP() error {
	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.CorrelationIDMiddleware,
		httpapi.ContentTypeMiddleware,
	)
	mux.Handle("/v1/ingest", middleware(httpapi.NewIngestHandler(a.dataStore)))
	mux.Handle("/v1/query", middleware(httpapi.NewQueryHandler(a.dataStore)))
	mux.Handle("/v1/stats", middleware(httpapi.NewStatsHandler(a.dataStore)))
	mux.HandleFunc("/health", a.healthHandler())
	mux.HandleFunc("/v1/migrate", a.migrateHandler())

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		log.Printf("HTTP server listening on %s", a.cfg.HTTP.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully stops the server and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	log.Printf("Initiating graceful shutdown...")

	if a.cancel != nil {
		a.cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Printf("Shutdown timeout, some goroutines may not have finished")
	}

	a.cleanup()

	log.Printf("CortexStore stopped")
	return nil
}

// cleanup releases shared resources.
func (a *App) cleanup() {
	if a.dataStore != nil {
		if err := a.dataStore.Close(); err != nil {
			log.Printf("Data store close error: %v", err)
		}
	}
}

// healthHandler returns a health check handler.
func (a *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"cortexstore"}`)
	}
}

// migrateHandler returns a handler for manually triggering a tiering cycle.
func (a *App) migrateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		log.Printf("Manual tiering cycle triggered")
		go a.dataStore.MigrateNow(context.Background())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted","message":"Tiering cycle triggered"}`))
	}
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}
