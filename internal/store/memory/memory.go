// Package memory is an in-process record store seeded from JSON.
package memory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"techbiz/internal/core"
)

//go:embed seed.json
var defaultSeed []byte

// SeedFile is the file name looked up under the data directory.
const SeedFile = "records.json"

type Store struct {
	mu      sync.Mutex
	items   []core.Record
	lastID  int64
	version int64
}

// New builds a store holding copies of records.
func New(records []core.Record) *Store {
	s := &Store{items: core.CloneAll(records)}
	slices.SortStableFunc(s.items, func(a, b core.Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	for _, r := range s.items {
		s.lastID = max(s.lastID, r.ID)
	}
	return s
}

// NewFromFiles seeds from base/records.json when present, else from the
// embedded sample set.
func NewFromFiles(base string) (*Store, error) {
	records, err := LoadSeed(base)
	if err != nil {
		return nil, err
	}
	return New(records), nil
}

// LoadSeed reads base/records.json, falling back to the embedded sample set
// when the file does not exist.
func LoadSeed(base string) ([]core.Record, error) {
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read seed: %w", err)
		}
		data = defaultSeed
	}
	return ParseSeed(data)
}

// ParseSeed decodes a JSON array of records. Duplicate ids are rejected.
func ParseSeed(data []byte) ([]core.Record, error) {
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	seen := make(map[int64]struct{}, len(records))
	for i, r := range records {
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("seed record %d: duplicate id %d", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("seed record %d: %w", r.ID, err)
		}
	}
	return records, nil
}

// DefaultRecords returns the embedded sample set.
func DefaultRecords() []core.Record {
	records, err := ParseSeed(defaultSeed)
	if err != nil {
		panic(err)
	}
	return records
}

func (s *Store) List(_ context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.CloneAll(s.items), nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Record{}, core.ErrNotFound
	}
	return s.items[i].Clone(), nil
}

func (s *Store) Version(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

// Create mints an id above every id this store has issued, so deleted ids
// are never handed out again.
func (s *Store) Create(_ context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	r.ID = s.lastID
	s.items = append(s.items, r.Clone())
	s.version++
	return r.Clone(), nil
}

func (s *Store) Update(_ context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(r.ID)
	if i < 0 {
		return core.Record{}, core.ErrNotFound
	}
	s.items[i] = r.Clone()
	s.version++
	return r.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ErrNotFound
	}
	s.items = slices.Delete(s.items, i, i+1)
	s.version++
	return nil
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.items, func(r core.Record) bool { return r.ID == id })
}
