package services

import (
	"context"
	"fmt"
	"log/slog"

	"techbiz/internal/core"
	"techbiz/internal/log"
	"techbiz/internal/ports"
)

// Change operations carried by record change messages.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// RecordService applies grid operations to the store and announces changes.
// Every mutating call takes the caller's role explicitly.
type RecordService struct {
	store     ports.RecordStore
	publisher ports.ChangePublisher
	logger    *log.Logger
}

func NewRecordService(store ports.RecordStore, publisher ports.ChangePublisher) *RecordService {
	return &RecordService{
		store:     store,
		publisher: publisher,
		logger:    log.New(log.Config{Component: log.ComponentRecords, Handler: slog.Default().Handler()}),
	}
}

// List returns the records matching the search, in id order.
func (s *RecordService) List(ctx context.Context, search core.Search) ([]core.Record, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return search.Apply(records), nil
}

// Snapshot returns every record together with the store version they were read at.
func (s *RecordService) Snapshot(ctx context.Context) ([]core.Record, int64, error) {
	version, err := s.store.Version(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read version: %w", err)
	}
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	return records, version, nil
}

// Version is the store's change counter; it moves on every successful mutation.
func (s *RecordService) Version(ctx context.Context) (int64, error) {
	return s.store.Version(ctx)
}

func (s *RecordService) Get(ctx context.Context, id int64) (core.Record, error) {
	return s.store.Get(ctx, id)
}

// Add appends a blank row with the default status.
func (s *RecordService) Add(ctx context.Context, role core.Role, user string) (core.Record, error) {
	if err := role.Authorize(); err != nil {
		return core.Record{}, err
	}
	rec, err := s.store.Create(ctx, core.NewRecord(0))
	if err != nil {
		return core.Record{}, fmt.Errorf("create record: %w", err)
	}
	s.changed(ctx, OpUpsert, rec, "", user)
	return rec, nil
}

// EditCell changes one field from raw user input.
func (s *RecordService) EditCell(ctx context.Context, role core.Role, user string, id int64, field core.Field, raw string) (core.Record, error) {
	if err := role.Authorize(); err != nil {
		return core.Record{}, err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Record{}, err
	}
	rec, err = core.ApplyEdit(rec, field, raw)
	if err != nil {
		return core.Record{}, err
	}
	rec, err = s.store.Update(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("update record %d: %w", id, err)
	}
	s.changed(ctx, OpUpsert, rec, string(field), user)
	return rec, nil
}

// SetConfirms replaces the confirmation set of a record.
func (s *RecordService) SetConfirms(ctx context.Context, role core.Role, user string, id int64, raw []string) (core.Record, error) {
	if err := role.Authorize(); err != nil {
		return core.Record{}, err
	}
	set, err := core.ParseConfirms(raw)
	if err != nil {
		return core.Record{}, err
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Record{}, err
	}
	rec.Confirms = set
	rec, err = s.store.Update(ctx, rec)
	if err != nil {
		return core.Record{}, fmt.Errorf("update record %d: %w", id, err)
	}
	s.changed(ctx, OpUpsert, rec, "confirms", user)
	return rec, nil
}

// Delete removes a record permanently.
func (s *RecordService) Delete(ctx context.Context, role core.Role, user string, id int64) error {
	if err := role.Authorize(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	s.changed(ctx, OpDelete, core.Record{ID: id}, "", user)
	return nil
}

// changed logs the mutation and publishes it. Publication failures never
// fail the request: the record is already stored.
func (s *RecordService) changed(ctx context.Context, op string, rec core.Record, field, user string) {
	version, err := s.store.Version(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read store version", "error", err)
	}
	logOp := log.OpUpdate
	switch {
	case op == OpDelete:
		logOp = log.OpDelete
	case field == "":
		logOp = log.OpCreate
	}
	s.logger.RecordChanged(ctx, logOp, rec.ID, field, user, version)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChange(ctx, op, rec, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record change",
			"id", rec.ID, "op", op, "error", err)
	}
}
