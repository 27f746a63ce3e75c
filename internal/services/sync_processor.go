package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"techbiz/internal/core"
	"techbiz/internal/ports"
	"techbiz/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending records (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of records to mirror per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of failed attempts before a record is marked as errored (default: 3)
	MaxRetries int

	// FullSyncInterval is how often the whole sheet is rewritten from the store,
	// which also removes rows whose delete message was lost (default: 1h, 0 disables)
	FullSyncInterval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:     30 * time.Second,
		BatchSize:        10,
		MaxRetries:       3,
		FullSyncInterval: time.Hour,
	}
}

// SyncStore is the part of the SQLite repository the processor needs.
type SyncStore interface {
	List(ctx context.Context) ([]core.Record, error)
	GetWithVersion(ctx context.Context, id int64) (core.Record, int64, error)
	GetPendingSyncRecords(ctx context.Context, limit int) ([]storage.PendingSyncRecord, error)
	MarkSynced(ctx context.Context, id, version int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncProcessor mirrors pending SQLite records to the sheet. It is the
// fallback path for changes whose AMQP message was never delivered.
type SyncProcessor struct {
	store  SyncStore
	mirror ports.RecordMirror
	config SyncProcessorConfig

	attempts map[int64]int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(store SyncStore, mirror ports.RecordMirror, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultSyncProcessorConfig().MaxRetries
	}
	return &SyncProcessor{
		store:    store,
		mirror:   mirror,
		config:   config,
		attempts: make(map[int64]int),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	var fullSync <-chan time.Time
	if p.config.FullSyncInterval > 0 {
		t := time.NewTicker(p.config.FullSyncInterval)
		defer t.Stop()
		fullSync = t.C
	}

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-fullSync:
			if err := p.FullSync(ctx); err != nil {
				slog.ErrorContext(ctx, "Full mirror sync failed", "error", err)
			}
		}
	}
}

// ProcessBatch mirrors one batch of pending records and returns how many succeeded.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.store.GetPendingSyncRecords(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read pending records", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	synced := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return synced
		}
		if err := p.syncOne(ctx, item.ID); err != nil {
			p.handleFailure(ctx, item.ID, err)
			continue
		}
		delete(p.attempts, item.ID)
		synced++
	}
	return synced
}

func (p *SyncProcessor) syncOne(ctx context.Context, id int64) error {
	rec, version, err := p.store.GetWithVersion(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record %d: %w", id, err)
	}
	if err := p.mirror.UpsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("upsert to sheets: %w", err)
	}
	if err := p.store.MarkSynced(ctx, id, version); err != nil {
		slog.WarnContext(ctx, "Failed to mark record as synced", "id", id, "error", err)
	}
	slog.InfoContext(ctx, "Synced record to Google Sheets", "id", id, "version", version)
	return nil
}

func (p *SyncProcessor) handleFailure(ctx context.Context, id int64, processErr error) {
	p.attempts[id]++
	attempt := p.attempts[id]
	slog.WarnContext(ctx, "Sync processing failed", "id", id, "attempt", attempt, "error", processErr)

	if attempt < p.config.MaxRetries {
		return
	}
	delete(p.attempts, id)
	if err := p.store.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark record sync error", "id", id, "error", err)
	}
	slog.ErrorContext(ctx, "Record sync failed permanently after max retries", "id", id, "attempts", attempt)
}

// FullSync rewrites the mirror from the current store contents.
func (p *SyncProcessor) FullSync(ctx context.Context) error {
	records, err := p.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	if err := p.mirror.ReplaceAll(ctx, records); err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}
	slog.InfoContext(ctx, "Full mirror sync completed", "count", len(records))
	return nil
}
