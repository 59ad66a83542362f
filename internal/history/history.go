// Package history persists a bounded log of answered questions as a single
// JSON array file, newest first.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries caps the log length.
const DefaultMaxEntries = 50

// Entry is one answered question. Query holds the question as first asked;
// FullQuery keeps the clarification-supplemented form when one existed.
// Result carries the full answer envelope for later replay or export.
type Entry struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Query        string          `json:"query"`
	FullQuery    string          `json:"full_query,omitempty"`
	Jurisdiction string          `json:"jurisdiction"`
	Status       string          `json:"status"`
	Regulations  int             `json:"regulation_count"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("history entry not found")

// Store reads and writes the history file. Safe for concurrent use within a
// process; the file itself is rewritten wholesale on every mutation.
type Store struct {
	Path string
	// Max caps retained entries. Non-positive means DefaultMaxEntries.
	Max int

	mu  sync.Mutex
	now func() time.Time
}

// New returns a store writing to path.
func New(path string) *Store {
	return &Store{Path: path, now: time.Now}
}

func (s *Store) max() int {
	if s.Max > 0 {
		return s.Max
	}
	return DefaultMaxEntries
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Append records an answered question at the head of the log, trimming the
// tail beyond the cap. The id and timestamp are assigned here; everything
// else comes from the caller. It returns the generated entry id.
func (s *Store) Append(e Entry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	e.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	e.Timestamp = s.clock()
	entries = append([]Entry{e}, entries...)
	if len(entries) > s.max() {
		entries = entries[:s.max()]
	}
	if err := s.save(entries); err != nil {
		return "", err
	}
	return e.ID, nil
}

// List returns up to limit entries, newest first. Non-positive limit returns
// everything.
func (s *Store) List(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

// Delete removes the entry with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return err
	}
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return ErrNotFound
	}
	return s.save(kept)
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(nil)
}

func (s *Store) load() ([]Entry, error) {
	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return entries, nil
}

func (s *Store) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	// Compact encoding keeps each entry's Result payload byte-identical to
	// what the caller stored.
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	return os.WriteFile(s.Path, raw, 0o644)
}
