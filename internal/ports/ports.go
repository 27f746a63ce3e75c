package ports

import (
	"context"

	"techbiz/internal/core"
)

// Ports for record storage and outbound adapters.
type (
	RecordReader interface {
		// List returns a copy of every record in id order.
		List(ctx context.Context) ([]core.Record, error)
		// Get returns one record or core.ErrNotFound.
		Get(ctx context.Context, id int64) (core.Record, error)
		// Version changes whenever the collection changes.
		Version(ctx context.Context) (int64, error)
	}

	RecordWriter interface {
		// Create stores r under a freshly minted id and returns the stored copy.
		Create(ctx context.Context, r core.Record) (core.Record, error)
		// Update replaces the record with the same id or returns core.ErrNotFound.
		Update(ctx context.Context, r core.Record) (core.Record, error)
		// Delete removes the record or returns core.ErrNotFound.
		Delete(ctx context.Context, id int64) error
	}

	RecordStore interface {
		RecordReader
		RecordWriter
	}

	// ChangePublisher announces record changes to the sheet mirror worker.
	ChangePublisher interface {
		PublishRecordChange(ctx context.Context, op string, r core.Record, version int64) error
	}

	// RecordMirror keeps an external copy of the collection.
	RecordMirror interface {
		UpsertRecord(ctx context.Context, r core.Record) error
		DeleteRecord(ctx context.Context, id int64) error
		ReplaceAll(ctx context.Context, records []core.Record) error
	}
)
