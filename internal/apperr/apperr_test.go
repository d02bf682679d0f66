package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestHelpersWrapKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"validation", Validation("month %d out of range", 13), ErrValidation, "validation failed: month 13 out of range"},
		{"not found", NotFound("task"), ErrNotFound, "task not found"},
		{"forbidden", Forbidden("not the task creator"), ErrForbidden, "forbidden: not the task creator"},
		{"duplicate", Duplicate("username"), ErrDuplicate, "username already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			if !errors.Is(wrapped, tt.kind) {
				t.Fatalf("expected %v to match %v", wrapped, tt.kind)
			}
			if tt.err.Error() != tt.msg {
				t.Fatalf("unexpected message %q", tt.err.Error())
			}
		})
	}
}
