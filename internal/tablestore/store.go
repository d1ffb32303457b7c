package tablestore

import (
	"sort"
	"strings"
	"sync"

	"recsync/internal/protocol"
	"recsync/internal/wire"
)

// Row is one table record, fields in column order. The first field is the
// row key.
type Row []string

// Store keeps the merged state of all synced tables in memory.
type Store struct {
	mu       sync.RWMutex
	tables   map[string][]Row
	settings map[string]string
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		tables:   make(map[string][]Row),
		settings: make(map[string]string),
	}
}

// Merge applies a read-transaction result message to local state. LIST
// replaces the whole table, SELECT upserts rows by key; the special config
// targets always merge into the settings map.
func (s *Store) Merge(txType protocol.TxType, target, message string) {
	rows := parseRows(message)

	if target == protocol.TargetModified || target == protocol.TargetActuals {
		s.mergeSettings(rows)
		return
	}

	switch txType {
	case protocol.TxList:
		s.replaceTable(target, rows)
	case protocol.TxSelect:
		s.upsertRows(target, rows)
	}
}

func (s *Store) replaceTable(target string, rows []Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[target] = rows
}

func (s *Store) upsertRows(target string, rows []Row) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.tables[target]
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		replaced := false
		for i, have := range existing {
			if len(have) > 0 && have[0] == row[0] {
				existing[i] = row
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, row)
		}
	}
	s.tables[target] = existing
}

func (s *Store) mergeSettings(rows []Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if len(row) < 2 || row[0] == "" {
			continue
		}
		s.settings[row[0]] = row[1]
	}
}

// Snapshot returns a copy of a table's rows.
func (s *Store) Snapshot(target string) []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.tables[target]
	out := make([]Row, len(rows))
	for i, row := range rows {
		copied := make(Row, len(row))
		copy(copied, row)
		out[i] = copied
	}
	return out
}

// Setting returns one merged configuration value.
func (s *Store) Setting(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.settings[key]
	return value, ok
}

// Tables lists the known table names in sorted order.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// parseRows splits a result message into records. Lines are quote-aware so
// quoted fields may span newlines.
func parseRows(message string) []Row {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	var rows []Row
	for _, line := range splitLines(message) {
		if line == "" {
			continue
		}
		rows = append(rows, Row(wire.SplitRecord(line, wire.FieldSeparator)))
	}
	return rows
}

func splitLines(message string) []string {
	var lines []string
	var current strings.Builder
	inQuotes := false
	for i := 0; i < len(message); i++ {
		ch := message[i]
		switch {
		case ch == '"':
			inQuotes = !inQuotes
			current.WriteByte(ch)
		case ch == '\n' && !inQuotes:
			lines = append(lines, strings.TrimRight(current.String(), "\r"))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, strings.TrimRight(current.String(), "\r"))
	}
	return lines
}
