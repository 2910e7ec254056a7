package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "servers.yaml"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return s
}

func TestAddAndList(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Add("192.0.2.1", 27015, "alpha", "first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID == "" {
		t.Error("expected a minted record ID")
	}
	if !rec.Enabled {
		t.Error("new records should start enabled")
	}
	if _, err := s.Add("192.0.2.2", 27016, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := s.List(true)
	if len(got) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(got))
	}
	if got[0].String() != "192.0.2.1:27015" || got[1].String() != "192.0.2.2:27016" {
		t.Errorf("unexpected list order: %v", got)
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Add("192.0.2.1", 27015, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.Add("192.0.2.1", 27015, "other", "")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if s.Count(false) != 1 {
		t.Errorf("duplicate add must not grow the store, count=%d", s.Count(false))
	}
}

func TestAddValidatesEndpoint(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		name string
		ip   string
		port int
	}{
		{"bad ip", "999.1.1.1", 27015},
		{"not an ip", "example.com", 27015},
		{"port zero", "192.0.2.1", 0},
		{"port too high", "192.0.2.1", 70000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Add(tc.ip, tc.port, "", ""); err == nil {
				t.Errorf("expected error for %s:%d", tc.ip, tc.port)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Add("192.0.2.1", 27015, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Remove("192.0.2.1", 27015); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Exists("192.0.2.1", 27015) {
		t.Error("server should be gone after Remove")
	}
	if err := s.Remove("192.0.2.1", 27015); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRemoveByID(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.Add("192.0.2.1", 27015, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RemoveByID(rec.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.RemoveByID(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndToggle(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Add("192.0.2.1", 27015, "old", "old desc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Update("192.0.2.1", 27015, "new", "new desc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Toggle("192.0.2.1", 27015, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := s.ListDetailed()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Name != "new" || recs[0].Description != "new desc" {
		t.Errorf("update not applied: %+v", recs[0])
	}
	if recs[0].Enabled {
		t.Error("toggle should have disabled the server")
	}

	if got := s.List(true); len(got) != 0 {
		t.Errorf("disabled server should be filtered, got %v", got)
	}
	if got := s.List(false); len(got) != 1 {
		t.Errorf("disabled server should still list with enabledOnly=false, got %v", got)
	}
	if s.Count(true) != 0 || s.Count(false) != 1 {
		t.Errorf("unexpected counts: enabled=%d all=%d", s.Count(true), s.Count(false))
	}

	if err := s.Update("203.0.113.9", 27015, "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Toggle("203.0.113.9", 27015, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		if _, err := s.Add("192.0.2.1", 27015+i, "", ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Count(false) != 0 {
		t.Errorf("expected empty store, count=%d", s.Count(false))
	}
}

func TestPersistenceAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers.yaml")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	rec, err := s1.Add("192.0.2.1", 27015, "alpha", "kept")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s1.Toggle("192.0.2.1", 27015, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	recs := s2.ListDetailed()
	if len(recs) != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", len(recs))
	}
	if recs[0].ID != rec.ID || recs[0].Name != "alpha" || recs[0].Enabled {
		t.Errorf("record not round-tripped: %+v", recs[0])
	}
}

func TestImportFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Add("192.0.2.9", 27015, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "import.txt")
	content := strings.Join([]string{
		"# header comment",
		"",
		"192.0.2.1:27015",
		"192.0.2.2:27016",
		"192.0.2.9:27015", // duplicate of the seeded entry
		"not-a-line",
		"192.0.2.3:notaport",
		"999.9.9.9:27015",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write import file: %v", err)
	}

	added, skipped, err := s.ImportFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}
	if skipped != 4 {
		t.Errorf("expected 4 skipped, got %d", skipped)
	}
	if s.Count(false) != 3 {
		t.Errorf("expected 3 records total, got %d", s.Count(false))
	}
}

func TestExportFileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Add("192.0.2.1", 27015, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Add("192.0.2.2", 27016, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Toggle("192.0.2.2", 27016, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "export.txt")
	if err := s.ExportFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "192.0.2.1:27015") || !strings.Contains(text, "192.0.2.2:27016") {
		t.Errorf("export missing endpoints:\n%s", text)
	}
	if !strings.HasPrefix(text, "#") {
		t.Errorf("export should start with a comment header:\n%s", text)
	}

	other := newTestStore(t)
	added, skipped, err := other.ImportFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added != 2 || skipped != 0 {
		t.Errorf("expected clean re-import, added=%d skipped=%d", added, skipped)
	}
}
