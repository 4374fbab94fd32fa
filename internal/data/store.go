package data

import (
	"errors"
	"log/slog"
	"net"
	"sync"
)

// ErrNotLoaded is returned by a Store that has no open database.
var ErrNotLoaded = errors.New("database not loaded")

// Store holds the current MMDB reader and swaps it on Reload.
// Lookups run under a read lock so a reader is never closed mid-lookup.
type Store struct {
	path string

	mu     sync.RWMutex
	reader *MmdbReader
}

// OpenStore opens the database at path.
func OpenStore(path string) (*Store, error) {
	reader, err := NewMmdbReader(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, reader: reader}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// LookupEntries implements GeoLookup.
func (s *Store) LookupEntries(ip net.IP) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reader == nil {
		return nil, ErrNotLoaded
	}
	return s.reader.LookupEntries(ip)
}

// LookupCountry implements CountryLookup.
func (s *Store) LookupCountry(ip net.IP) (Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reader == nil {
		return Country{}, ErrNotLoaded
	}
	return s.reader.LookupCountry(ip)
}

// Ready reports whether a database is open.
func (s *Store) Ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reader == nil {
		return ErrNotLoaded
	}
	return nil
}

// Reload opens the database file again and replaces the current reader.
// On failure the current reader stays in place.
func (s *Store) Reload() error {
	reader, err := NewMmdbReader(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.reader
	s.reader = reader
	s.mu.Unlock()

	slog.Info("MMDB reloaded", "path", s.path, "database_type", reader.DatabaseType())
	if old != nil {
		return old.Close()
	}
	return nil
}

// Close releases the current reader.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}
