/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBufferWrapsAround(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Add(LogEntry{Message: msg})
	}
	all := b.GetAll()
	if len(all) != 3 || all[0].Message != "b" || all[2].Message != "d" {
		t.Fatalf("unexpected entries %+v", all)
	}
}

func TestWriterCapturesZerologOutput(t *testing.T) {
	b := New(10)
	logger := zerolog.New(NewWriter(b, nil)).With().Timestamp().Logger()

	logger.Info().Str("component", "tasks").Str("task_id", "t1").Msg("task scheduled")
	logger.Warn().Str("component", "settings").Msg("no working hours, using default")
	logger.Error().Str("component", "tasks").Str("task_id", "t2").Msg("engine failed")

	tests := []struct {
		name   string
		params QueryParams
		want   int
	}{
		{"all", QueryParams{}, 3},
		{"level", QueryParams{Level: "error"}, 1},
		{"component", QueryParams{Component: "tasks"}, 2},
		{"field", QueryParams{FieldKey: "task_id", FieldValue: "t1"}, 1},
		{"search case insensitive", QueryParams{Search: "WORKING HOURS"}, 1},
		{"search field values", QueryParams{Search: "t2"}, 1},
		{"limit", QueryParams{Limit: 2}, 2},
		{"since future", QueryParams{Since: time.Now().Add(time.Hour)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(b.Query(tt.params)); got != tt.want {
				t.Fatalf("got %d entries, want %d", got, tt.want)
			}
		})
	}

	newest := b.Query(QueryParams{Descending: true, Limit: 1})
	if newest[0].Message != "engine failed" {
		t.Fatalf("expected newest first, got %q", newest[0].Message)
	}

	stats := b.Stats()
	if stats.Count != 3 || stats.LevelCount["info"] != 1 || len(stats.Components) != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestWriterIgnoresNonJSON(t *testing.T) {
	b := New(10)
	if _, err := NewWriter(b, nil).Write([]byte("plain text\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(b.GetAll()) != 0 {
		t.Fatal("non-JSON line should not be captured")
	}
	b.Add(LogEntry{Message: "x"})
	b.Clear()
	if len(b.GetAll()) != 0 {
		t.Fatal("Clear should empty the buffer")
	}
}
