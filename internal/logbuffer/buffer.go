/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps the most recent log lines in memory so operators
// can inspect them over the admin API.
package logbuffer

import (
	"encoding/json"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 10000

// LogEntry represents a single log entry.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Component string         `json:"component,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
	count    int
}

// New creates a new log buffer with the specified capacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
	}
}

// Add adds a log entry to the buffer, overwriting the oldest when full.
func (b *Buffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// GetAll returns all log entries in chronological order.
func (b *Buffer) GetAll() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]LogEntry, b.count)
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// QueryParams filters Query results.
type QueryParams struct {
	Level      string    // debug, info, warn, error
	Component  string    // exact component name
	FieldKey   string    // with FieldValue, match a structured field such as task_id
	FieldValue string
	Search     string    // case-insensitive match in message, component or string fields
	Since      time.Time // only entries at or after this time
	Limit      int       // 0 = all
	Descending bool      // newest first
}

// Query returns log entries matching the filter criteria.
func (b *Buffer) Query(params QueryParams) []LogEntry {
	search := strings.ToLower(params.Search)

	var filtered []LogEntry
	for _, entry := range b.GetAll() {
		if params.Level != "" && entry.Level != params.Level {
			continue
		}
		if params.Component != "" && entry.Component != params.Component {
			continue
		}
		if params.FieldKey != "" {
			v, ok := entry.Fields[params.FieldKey].(string)
			if !ok || v != params.FieldValue {
				continue
			}
		}
		if !params.Since.IsZero() && entry.Timestamp.Before(params.Since) {
			continue
		}
		if search != "" && !entry.matches(search) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if params.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered
}

func (e LogEntry) matches(lowerSearch string) bool {
	if strings.Contains(strings.ToLower(e.Message), lowerSearch) ||
		strings.Contains(strings.ToLower(e.Component), lowerSearch) {
		return true
	}
	for _, v := range e.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), lowerSearch) {
			return true
		}
	}
	return false
}

// Stats returns buffer statistics.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
	Components []string       `json:"components"`
}

// Stats summarises the buffer contents.
func (b *Buffer) Stats() Stats {
	all := b.GetAll()
	stats := Stats{
		Capacity:   b.capacity,
		Count:      len(all),
		LevelCount: make(map[string]int),
	}
	seen := map[string]bool{}
	for _, e := range all {
		stats.LevelCount[e.Level]++
		if e.Component != "" && !seen[e.Component] {
			seen[e.Component] = true
			stats.Components = append(stats.Components, e.Component)
		}
	}
	sort.Strings(stats.Components)
	return stats
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// Writer adapts the buffer to io.Writer for zerolog's JSON output.
type Writer struct {
	buffer   *Buffer
	fallback io.Writer
}

// NewWriter creates a writer that captures logs to the buffer and, when
// fallback is non-nil, forwards the raw bytes to it.
func NewWriter(buffer *Buffer, fallback io.Writer) *Writer {
	return &Writer{buffer: buffer, fallback: fallback}
}

// Write implements io.Writer. Lines that are not JSON objects are ignored.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err == nil {
		w.buffer.Add(parseEntry(raw))
	}
	if w.fallback != nil {
		return w.fallback.Write(p)
	}
	return len(p), nil
}

func parseEntry(raw map[string]any) LogEntry {
	entry := LogEntry{Timestamp: time.Now(), Fields: make(map[string]any)}

	if lvl, ok := raw["level"].(string); ok {
		entry.Level = lvl
	}
	if msg, ok := raw["message"].(string); ok {
		entry.Message = msg
	}
	if comp, ok := raw["component"].(string); ok {
		entry.Component = comp
	}
	// zerolog writes unix seconds (TimeFormatUnix) or RFC3339.
	switch ts := raw["time"].(type) {
	case float64:
		entry.Timestamp = time.Unix(int64(ts), 0)
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.Timestamp = t
		}
	}

	for k, v := range raw {
		switch k {
		case "level", "message", "component", "time":
		default:
			entry.Fields[k] = v
		}
	}
	return entry
}
