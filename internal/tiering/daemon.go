// Package tiering runs the background migration loop that ages batches out
// of the hot tier into the warm tier.
package tiering

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// HotTier is the migration source.
type HotTier interface {
	AgedData(olderThan time.Duration) (map[string][]interface{}, int)
	Evict(n int)
	RowCount() int64
}

// WarmTier is the migration destination. AppendColumns tolerates unequal
// column lengths, which aged hot data can produce when separate feeds
// populate disjoint column sets.
type WarmTier interface {
	AppendColumns(data map[string][]interface{}) error
}

// Config holds configuration for the tiering daemon.
type Config struct {
	// CheckInterval is how often the daemon looks for aged batches.
	CheckInterval time.Duration

	// AgeThreshold is how long a batch stays hot before migrating.
	AgeThreshold time.Duration

	// HotCapacity caps hot-tier rows; exceeding it forces migration of the
	// overflow regardless of age. Zero disables the capacity trigger.
	HotCapacity int64
}

// DefaultConfig returns the default tiering configuration.
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Minute,
		AgeThreshold:  time.Minute,
	}
}

// Daemon periodically migrates aged hot-tier rows into the warm tier.
// Migration is copy-then-evict: the warm write must succeed before any hot
// row is removed, so a warm failure leaves the hot tier untouched and the
// cycle retries on the next tick.
type Daemon struct {
	config Config
	hot    HotTier
	warm   WarmTier

	// onMigrate is invoked with the migrated column names after a
	// successful cycle, letting the store invalidate cached results.
	onMigrate func(columns []string)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	cycles    int64
	migrated  int64
	lastError error
}

// NewDaemon creates a tiering daemon. onMigrate may be nil.
func NewDaemon(config Config, hot HotTier, warm WarmTier, onMigrate func(columns []string)) *Daemon {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}
	if config.AgeThreshold <= 0 {
		config.AgeThreshold = DefaultConfig().AgeThreshold
	}
	return &Daemon{
		config:    config,
		hot:       hot,
		warm:      warm,
		onMigrate: onMigrate,
	}
}

// Start begins the migration loop. It runs until the context is cancelled
// or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("tiering: daemon is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	return nil
}

// Stop gracefully stops the daemon, waiting for an in-flight cycle.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.cancel()
	<-d.done
	d.running = false
	return nil
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

// runOnce performs a single migration cycle.
func (d *Daemon) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	threshold := d.config.AgeThreshold
	if d.config.HotCapacity > 0 && d.hot.RowCount() > d.config.HotCapacity {
		// Over capacity: migrate everything eligible right now.
		threshold = 0
	}

	aged, rows := d.hot.AgedData(threshold)
	if rows == 0 {
		return
	}

	if err := d.warm.AppendColumns(aged); err != nil {
		log.Printf("tiering: warm write failed, keeping %d rows hot: %v", rows, err)
		d.mu.Lock()
		d.lastError = err
		d.mu.Unlock()
		return
	}

	d.hot.Evict(rows)

	columns := make([]string, 0, len(aged))
	for name := range aged {
		columns = append(columns, name)
	}
	if d.onMigrate != nil {
		d.onMigrate(columns)
	}

	d.mu.Lock()
	d.cycles++
	d.migrated += int64(rows)
	d.lastError = nil
	d.mu.Unlock()

	log.Printf("tiering: migrated %d rows across %d columns to warm tier", rows, len(columns))
}

// RunOnce performs a single migration cycle (useful for testing and for
// flush-on-shutdown).
func (d *Daemon) RunOnce(ctx context.Context) {
	d.runOnce(ctx)
}

// Stats reports completed cycles, total migrated rows, and the last
// migration error if the most recent cycle failed.
func (d *Daemon) Stats() (cycles, migratedRows int64, lastErr error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cycles, d.migrated, d.lastError
}
