package watchlist

import (
	"encoding/json"
	"fmt"
	"os"
)

// Store persists the watchlist as a JSON array of symbol codes. The
// file is an external collaborator shared with the dashboard; this
// package only reads and rewrites it whole.
type Store struct {
	path string
}

// New creates a watchlist store at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Load returns the watchlist codes in file order. A missing file is an
// empty watchlist, not an error.
func (s *Store) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read watchlist: %w", err)
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}
	return codes, nil
}

// LoadSet returns the watchlist as a membership set.
func (s *Store) LoadSet() (map[string]bool, error) {
	codes, err := s.Load()
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set, nil
}

// Save rewrites the watchlist, deduplicating while preserving order.
func (s *Store) Save(codes []string) error {
	seen := make(map[string]bool, len(codes))
	unique := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		unique = append(unique, code)
	}

	data, err := json.Marshal(unique)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	return nil
}

// Add appends a code if absent. Reports whether the list changed.
func (s *Store) Add(code string) (bool, error) {
	codes, err := s.Load()
	if err != nil {
		return false, err
	}
	for _, c := range codes {
		if c == code {
			return false, nil
		}
	}
	return true, s.Save(append(codes, code))
}

// Remove drops a code if present. Reports whether the list changed.
func (s *Store) Remove(code string) (bool, error) {
	codes, err := s.Load()
	if err != nil {
		return false, err
	}

	kept := codes[:0]
	for _, c := range codes {
		if c != code {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(codes) {
		return false, nil
	}
	return true, s.Save(kept)
}
