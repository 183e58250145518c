package history

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultMaxRecords caps the history file
const DefaultMaxRecords = 200

// Store persists finished measurements as a JSON file, newest first
type Store struct {
	mu         sync.RWMutex
	path       string
	records    []Record
	maxRecords int
}

// NewStore loads the history stored in dir. A missing or unreadable file
// starts an empty history.
func NewStore(dir string, maxRecords int) *Store {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	s := &Store{
		path:       filepath.Join(dir, "history.json"),
		maxRecords: maxRecords,
	}
	if err := s.load(); err != nil {
		log.Printf("[History] Failed to load history: %v", err)
	}
	return s
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read history file: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return fmt.Errorf("failed to parse history file: %w", err)
	}
	log.Printf("[History] Loaded %d measurements from disk", len(s.records))
	return nil
}

// save writes records to disk; caller holds the lock and commits them to
// s.records only when this succeeds
func (s *Store) save(records []Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Add prepends a record and trims the oldest beyond the cap
func (s *Store) Add(rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := append([]Record{rec}, s.records...)
	if len(records) > s.maxRecords {
		records = records[:s.maxRecords]
	}
	if err := s.save(records); err != nil {
		return err
	}
	s.records = records
	return nil
}

// List returns all records, newest first
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.records...)
}

// ListByStatus returns records with the given status
func (s *Store) ListByStatus(status RecordStatus) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(s.records, func(r Record, _ int) bool {
		return r.Status == status
	})
}

// TotalChangedKm2 sums the change area of all completed measurements
func (s *Store) TotalChangedKm2() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.SumBy(s.records, func(r Record) float64 {
		return r.AreaKm2
	})
}

// Delete removes one record
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, index, found := lo.FindIndexOf(s.records, func(r Record) bool {
		return r.ID == id
	})
	if !found {
		return fmt.Errorf("measurement '%s' not found", id)
	}
	records := make([]Record, 0, len(s.records)-1)
	records = append(records, s.records[:index]...)
	records = append(records, s.records[index+1:]...)
	if err := s.save(records); err != nil {
		return err
	}
	s.records = records
	return nil
}

// Clear removes all records
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.save([]Record{}); err != nil {
		return err
	}
	s.records = nil
	return nil
}
