// Package store persists the server list to a YAML file with
// cross-process exclusion via an advisory file lock.
package store

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

var (
	// ErrDuplicate is returned when adding an (ip, port) pair that is
	// already registered.
	ErrDuplicate = errors.New("server already registered")

	// ErrNotFound is returned when the referenced server does not exist.
	ErrNotFound = errors.New("server not found")
)

// Endpoint is a bare ip:port pair, the unit served to list queries.
type Endpoint struct {
	IP   string
	Port int
}

// String returns the endpoint in ip:port form.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.IP, e.Port)
}

// Record is a full server entry as persisted in the store file.
type Record struct {
	ID          string    `yaml:"id" json:"id"`
	IP          string    `yaml:"ip" json:"ip"`
	Port        int       `yaml:"port" json:"port"`
	Name        string    `yaml:"name,omitempty" json:"name,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	AddedAt     time.Time `yaml:"added_at" json:"added_at"`
	Enabled     bool      `yaml:"enabled" json:"enabled"`
}

type fileDoc struct {
	Servers []Record `yaml:"servers"`
}

// Store is a mutex-guarded server list backed by a YAML file. Every
// mutation is written through to disk before it returns.
type Store struct {
	mu      sync.Mutex
	path    string
	flk     *flock.Flock
	records []Record
	now     func() time.Time
}

// Open loads the store file at path, creating an empty store when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		flk:  flock.New(path + ".lock"),
		now:  time.Now,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("locking store: %w", err)
	}
	defer s.flk.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = nil
			return nil
		}
		return fmt.Errorf("reading store: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing store: %w", err)
	}
	s.records = doc.Servers
	return nil
}

// persist writes the current record set to disk under the file lock.
// Callers must hold s.mu.
func (s *Store) persist() error {
	data, err := yaml.Marshal(fileDoc{Servers: s.records})
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("locking store: %w", err)
	}
	defer s.flk.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing store: %w", err)
	}
	return nil
}

func validateEndpoint(ip string, port int) error {
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid ip %q", ip)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}

func (s *Store) indexOf(ip string, port int) int {
	for i, rec := range s.records {
		if rec.IP == ip && rec.Port == port {
			return i
		}
	}
	return -1
}

// Add registers a new server. The (ip, port) pair must be unique.
func (s *Store) Add(ip string, port int, name, description string) (Record, error) {
	if err := validateEndpoint(ip, port); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(ip, port) >= 0 {
		return Record{}, fmt.Errorf("%s:%d: %w", ip, port, ErrDuplicate)
	}

	rec := Record{
		ID:          ulid.MustNew(ulid.Timestamp(s.now()), ulid.DefaultEntropy()).String(),
		IP:          ip,
		Port:        port,
		Name:        name,
		Description: description,
		AddedAt:     s.now().UTC(),
		Enabled:     true,
	}
	s.records = append(s.records, rec)

	if err := s.persist(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return Record{}, err
	}
	return rec, nil
}

// Remove deletes the server with the given (ip, port) pair.
func (s *Store) Remove(ip string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ip, port)
	if i < 0 {
		return fmt.Errorf("%s:%d: %w", ip, port, ErrNotFound)
	}
	return s.removeAt(i)
}

// RemoveByID deletes the server with the given record ID.
func (s *Store) RemoveByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.records {
		if rec.ID == id {
			return s.removeAt(i)
		}
	}
	return fmt.Errorf("id %s: %w", id, ErrNotFound)
}

// removeAt deletes the record at index i and persists. Callers must
// hold s.mu.
func (s *Store) removeAt(i int) error {
	removed := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	if err := s.persist(); err != nil {
		s.records = append(s.records[:i], append([]Record{removed}, s.records[i:]...)...)
		return err
	}
	return nil
}

// Update replaces the name and description of an existing server.
func (s *Store) Update(ip string, port int, name, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ip, port)
	if i < 0 {
		return fmt.Errorf("%s:%d: %w", ip, port, ErrNotFound)
	}
	prev := s.records[i]
	s.records[i].Name = name
	s.records[i].Description = description
	if err := s.persist(); err != nil {
		s.records[i] = prev
		return err
	}
	return nil
}

// Toggle enables or disables a server without removing it.
func (s *Store) Toggle(ip string, port int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(ip, port)
	if i < 0 {
		return fmt.Errorf("%s:%d: %w", ip, port, ErrNotFound)
	}
	prev := s.records[i].Enabled
	s.records[i].Enabled = enabled
	if err := s.persist(); err != nil {
		s.records[i].Enabled = prev
		return err
	}
	return nil
}

// Exists reports whether the (ip, port) pair is registered.
func (s *Store) Exists(ip string, port int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(ip, port) >= 0
}

// List returns endpoints in insertion order. When enabledOnly is true,
// disabled servers are filtered out.
func (s *Store) List(enabledOnly bool) []Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Endpoint, 0, len(s.records))
	for _, rec := range s.records {
		if enabledOnly && !rec.Enabled {
			continue
		}
		out = append(out, Endpoint{IP: rec.IP, Port: rec.Port})
	}
	return out
}

// ListDetailed returns a copy of every record, enabled or not, in
// insertion order.
func (s *Store) ListDetailed() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Count returns the number of registered servers.
func (s *Store) Count(enabledOnly bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !enabledOnly {
		return len(s.records)
	}
	n := 0
	for _, rec := range s.records {
		if rec.Enabled {
			n++
		}
	}
	return n
}

// Clear removes every record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.records
	s.records = nil
	if err := s.persist(); err != nil {
		s.records = prev
		return err
	}
	return nil
}

// RemoveLockFile deletes the advisory lock file. Intended for shutdown.
func (s *Store) RemoveLockFile() {
	os.Remove(s.path + ".lock")
}
