package store

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ImportFile reads a line-oriented ip:port file and adds every valid
// entry. Blank lines and lines starting with '#' are ignored. Returns
// how many entries were added and how many were skipped (malformed or
// duplicate).
func (s *Store) ImportFile(path string) (added, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ip, portStr, ok := strings.Cut(line, ":")
		if !ok {
			skipped++
			continue
		}
		port, convErr := strconv.Atoi(strings.TrimSpace(portStr))
		if convErr != nil {
			skipped++
			continue
		}

		if _, addErr := s.Add(strings.TrimSpace(ip), port, "", ""); addErr != nil {
			skipped++
			continue
		}
		added++
	}
	if err := scanner.Err(); err != nil {
		return added, skipped, fmt.Errorf("reading import file: %w", err)
	}
	return added, skipped, nil
}

// ExportFile writes every registered server, enabled or not, to a
// line-oriented ip:port file with a short comment header.
func (s *Store) ExportFile(path string) error {
	endpoints := s.List(false)

	var b strings.Builder
	b.WriteString("# Server list\n")
	fmt.Fprintf(&b, "# Exported on %s\n", s.now().Format("2006-01-02 15:04:05"))
	b.WriteString("# Format: IP:PORT\n\n")
	for _, ep := range endpoints {
		b.WriteString(ep.String())
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}
