package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"techbiz/internal/amqp"
	"techbiz/internal/core"
	"techbiz/internal/ports"
)

// RecordSource is the database view the worker re-reads before mirroring.
// It is satisfied by the SQLite repository.
type RecordSource interface {
	GetWithVersion(ctx context.Context, id int64) (core.Record, int64, error)
	MarkSynced(ctx context.Context, id, version int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker applies record change messages from AMQP to the sheet mirror.
//
// With a RecordSource the worker mirrors the row as currently stored and
// acknowledges it; without one (memory backend) it mirrors the snapshot
// carried in the message.
type SyncWorker struct {
	source RecordSource
	mirror ports.RecordMirror

	mu      sync.Mutex
	applied map[int64]int64 // record id -> newest store version mirrored
}

func NewSyncWorker(source RecordSource, mirror ports.RecordMirror) *SyncWorker {
	return &SyncWorker{
		source:  source,
		mirror:  mirror,
		applied: make(map[int64]int64),
	}
}

// HandleRecordChange processes a single change message. Returning an error
// makes the consumer requeue the delivery.
func (w *SyncWorker) HandleRecordChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	slog.InfoContext(ctx, "Processing record change",
		"id", msg.ID,
		"op", msg.Op,
		"version", msg.Version)

	if w.stale(msg) {
		slog.InfoContext(ctx, "Skipping stale record change",
			"id", msg.ID,
			"version", msg.Version)
		return nil
	}

	var err error
	switch msg.Op {
	case amqp.OpDelete:
		err = w.mirror.DeleteRecord(ctx, msg.ID)
		if err != nil {
			err = fmt.Errorf("delete from sheets: %w", err)
		}
	case amqp.OpUpsert:
		err = w.upsert(ctx, msg)
	default:
		return fmt.Errorf("unknown operation %q", msg.Op)
	}
	if err != nil {
		return err
	}
	w.markApplied(msg)
	return nil
}

func (w *SyncWorker) upsert(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	if w.source == nil {
		if msg.Record == nil {
			return fmt.Errorf("record %d: upsert without snapshot", msg.ID)
		}
		if err := w.mirror.UpsertRecord(ctx, *msg.Record); err != nil {
			return fmt.Errorf("upsert to sheets: %w", err)
		}
		slog.InfoContext(ctx, "Mirrored record snapshot", "id", msg.ID)
		return nil
	}

	rec, rowVersion, err := w.source.GetWithVersion(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// deleted after the message was published; the delete message follows
		slog.InfoContext(ctx, "Record no longer exists, skipping upsert", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get record from storage: %w", err)
	}

	if err := w.mirror.UpsertRecord(ctx, rec); err != nil {
		if markErr := w.source.MarkSyncError(ctx, msg.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", msg.ID, "error", markErr)
		}
		return fmt.Errorf("upsert to sheets: %w", err)
	}

	// The sync actually worked even if the acknowledgement fails.
	if err := w.source.MarkSynced(ctx, msg.ID, rowVersion); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", msg.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced record",
		"id", msg.ID,
		"row_version", rowVersion)
	return nil
}

// stale reports whether a newer change for the same record was already mirrored.
func (w *SyncWorker) stale(msg *amqp.RecordChangeMessage) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.applied[msg.ID]
	return ok && msg.Version < last
}

func (w *SyncWorker) markApplied(msg *amqp.RecordChangeMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if msg.Version > w.applied[msg.ID] {
		w.applied[msg.ID] = msg.Version
	}
}
