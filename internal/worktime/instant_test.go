/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package worktime

import (
	"testing"
	"time"
)

func TestParseInstant(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "2024-01-15T10:00:00Z", want: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)},
		{raw: "2024-01-15T10:00:00+02:00", want: time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)},
		{raw: "2024-01-15T10:00:30", want: time.Date(2024, 1, 15, 10, 0, 30, 0, time.Local)},
		{raw: "2024-01-15T10:00", want: time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)},
		{raw: "2024-01-15 10:00:30", want: time.Date(2024, 1, 15, 10, 0, 30, 0, time.Local)},
		{raw: " 2024-01-15 10:00 ", want: time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)},
		{raw: "", wantErr: true},
		{raw: "15-01-2024 10:00", wantErr: true},
		{raw: "2024-01-15", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseInstant(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInstant(%q): %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseInstant(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}
