package worker

import (
	"context"
	"errors"
	"testing"

	"techbiz/internal/amqp"
	"techbiz/internal/core"
)

type fakeMirror struct {
	upserts []core.Record
	deletes []int64
	err     error
}

func (m *fakeMirror) UpsertRecord(_ context.Context, r core.Record) error {
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, r)
	return nil
}

func (m *fakeMirror) DeleteRecord(_ context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	m.deletes = append(m.deletes, id)
	return nil
}

func (m *fakeMirror) ReplaceAll(context.Context, []core.Record) error { return m.err }

type fakeSource struct {
	records map[int64]core.Record
	version int64
	synced  map[int64]int64
	errored []int64
}

func (s *fakeSource) GetWithVersion(_ context.Context, id int64) (core.Record, int64, error) {
	r, ok := s.records[id]
	if !ok {
		return core.Record{}, 0, core.ErrNotFound
	}
	return r, s.version, nil
}

func (s *fakeSource) MarkSynced(_ context.Context, id, version int64) error {
	if s.synced == nil {
		s.synced = map[int64]int64{}
	}
	s.synced[id] = version
	return nil
}

func (s *fakeSource) MarkSyncError(_ context.Context, id int64) error {
	s.errored = append(s.errored, id)
	return nil
}

func TestSnapshotUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{}
	w := NewSyncWorker(nil, mirror)

	msg := amqp.NewRecordChangeMessage(amqp.OpUpsert, core.Record{ID: 3, Name: "Mario"}, 5)
	if err := w.HandleRecordChange(ctx, msg); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(mirror.upserts) != 1 || mirror.upserts[0].Name != "Mario" {
		t.Fatalf("upserts = %+v", mirror.upserts)
	}

	del := amqp.NewRecordChangeMessage(amqp.OpDelete, core.Record{ID: 3}, 6)
	if err := w.HandleRecordChange(ctx, del); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(mirror.deletes) != 1 || mirror.deletes[0] != 3 {
		t.Fatalf("deletes = %v", mirror.deletes)
	}
}

func TestSnapshotUpsertWithoutRecordFails(t *testing.T) {
	w := NewSyncWorker(nil, &fakeMirror{})
	err := w.HandleRecordChange(context.Background(), &amqp.RecordChangeMessage{ID: 1, Op: amqp.OpUpsert, Version: 1})
	if err == nil {
		t.Fatal("expected error for upsert without snapshot")
	}
}

func TestStaleMessagesAreSkipped(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{}
	w := NewSyncWorker(nil, mirror)

	newer := amqp.NewRecordChangeMessage(amqp.OpUpsert, core.Record{ID: 1, Name: "new"}, 9)
	older := amqp.NewRecordChangeMessage(amqp.OpUpsert, core.Record{ID: 1, Name: "old"}, 4)
	if err := w.HandleRecordChange(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleRecordChange(ctx, older); err != nil {
		t.Fatal(err)
	}
	if len(mirror.upserts) != 1 || mirror.upserts[0].Name != "new" {
		t.Fatalf("stale snapshot was mirrored: %+v", mirror.upserts)
	}
}

func TestSourceRereadAndAcknowledge(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{}
	src := &fakeSource{records: map[int64]core.Record{2: {ID: 2, Name: "current"}}, version: 7}
	w := NewSyncWorker(src, mirror)

	msg := amqp.NewRecordChangeMessage(amqp.OpUpsert, core.Record{ID: 2, Name: "snapshot"}, 3)
	if err := w.HandleRecordChange(ctx, msg); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(mirror.upserts) != 1 || mirror.upserts[0].Name != "current" {
		t.Fatalf("worker should mirror the stored row, got %+v", mirror.upserts)
	}
	if src.synced[2] != 7 {
		t.Fatalf("synced = %v", src.synced)
	}

	gone := amqp.NewRecordChangeMessage(amqp.OpUpsert, core.Record{ID: 99}, 4)
	if err := w.HandleRecordChange(ctx, gone); err != nil {
		t.Fatalf("missing record should be skipped, got %v", err)
	}
}

func TestMirrorFailureMarksError(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{err: errors.New("quota exceeded")}
	src := &fakeSource{records: map[int64]core.Record{2: {ID: 2}}, version: 1}
	w := NewSyncWorker(src, mirror)

	err := w.HandleRecordChange(ctx, amqp.NewRecordChangeMessage(amqp.OpUpsert, core.Record{ID: 2}, 1))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(src.errored) != 1 || src.errored[0] != 2 {
		t.Fatalf("errored = %v", src.errored)
	}
	if _, ok := src.synced[2]; ok {
		t.Fatal("record must not be acknowledged")
	}

	// a failed message does not advance the stale marker
	mirror.err = nil
	if err := w.HandleRecordChange(ctx, amqp.NewRecordChangeMessage(amqp.OpUpsert, core.Record{ID: 2}, 1)); err != nil {
		t.Fatalf("retry: %v", err)
	}
}
