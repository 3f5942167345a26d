package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopK(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		k     int
		want  []string
	}{
		{"by count", []string{"b", "a", "a", "c", "a", "b"}, 3, []string{"a", "b", "c"}},
		{"ties keep first seen", []string{"x", "y", "z", "y", "x", "z"}, 2, []string{"x", "y"}},
		{"k larger than distinct", []string{"x", "x"}, 5, []string{"x"}},
		{"blank ignored", []string{"", " ", "a"}, 3, []string{"a"}},
		{"zero k", []string{"a"}, 0, nil},
		{"empty", nil, 3, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopK(tt.items, tt.k))
		})
	}
}

func TestKeepActor(t *testing.T) {
	assert.True(t, keepActor("Joe Biden"))
	assert.False(t, keepActor("YouTube"))
	assert.False(t, keepActor("al"))
	assert.False(t, keepActor("  "))
}
