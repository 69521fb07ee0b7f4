package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505"}

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"unique violation", unique, true},
		{"wrapped unique violation", fmt.Errorf("create entry: %w", unique), true},
		{"other postgres error", &pq.Error{Code: "40001"}, false},
		{"plain error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.expected {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
