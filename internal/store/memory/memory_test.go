package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"techbiz/internal/core"
)

func TestCreateNeverReusesDeletedIDs(t *testing.T) {
	ctx := context.Background()
	s := New([]core.Record{{ID: 1}, {ID: 2}, {ID: 3}})
	if err := s.Delete(ctx, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	r, err := s.Create(ctx, core.NewRecord(0))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID != 4 {
		t.Fatalf("id = %d, want 4", r.ID)
	}
	if r.Status != core.DefaultStatus {
		t.Fatalf("status = %q", r.Status)
	}
}

func TestCreateOnEmptyStartsAtOne(t *testing.T) {
	r, err := New(nil).Create(context.Background(), core.Record{})
	if err != nil || r.ID != 1 {
		t.Fatalf("got id %d err %v", r.ID, err)
	}
}

func TestUpdateGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New([]core.Record{{ID: 1, Name: "a"}})
	v0, _ := s.Version(ctx)

	if _, err := s.Update(ctx, core.Record{ID: 1, Name: "b", Income: core.Num(5)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := s.Get(ctx, 1)
	if err != nil || got.Name != "b" || got.Income.Value() != 5 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if v1, _ := s.Version(ctx); v1 <= v0 {
		t.Fatalf("version did not advance")
	}
	if _, err := s.Update(ctx, core.Record{ID: 9}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, 9); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, core.Record{ID: 1, Cost: core.Num(-1)}); !errors.Is(err, core.ErrNegativeQuantity) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := New([]core.Record{{ID: 2, Name: "two"}, {ID: 1, Name: "one"}})
	list, _ := s.List(ctx)
	if list[0].ID != 1 {
		t.Fatalf("list not sorted by id: %+v", list)
	}
	list[0].Name = "changed"
	again, _ := s.List(ctx)
	if again[0].Name != "one" {
		t.Fatalf("List must return copies")
	}
}

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("embedded seed: %v", err)
	}
	list, _ := s.List(context.Background())
	if len(list) != len(DefaultRecords()) || len(list) == 0 {
		t.Fatalf("expected embedded sample set, got %d records", len(list))
	}

	body := `[{"id":5,"name":"x","income":"12,5","confirms":["room","room"]}]`
	if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = NewFromFiles(dir)
	if err != nil {
		t.Fatalf("file seed: %v", err)
	}
	r, err := s.Get(context.Background(), 5)
	if err != nil || r.Income.Value() != 12.5 || r.Confirms.Len() != 1 {
		t.Fatalf("record = %+v, %v", r, err)
	}
}

func TestParseSeedRejectsDuplicates(t *testing.T) {
	if _, err := ParseSeed([]byte(`[{"id":1},{"id":1}]`)); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}
