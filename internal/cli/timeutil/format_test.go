package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"72h30m15s", "3d 0h 30m 15s"},
		{"5h0m3s", "5h 0m 3s"},
		{"30m15s", "30m 15s"},
		{"15s", "15s"},
		{"0s", "0s"},
		{"not-a-duration", "not-a-duration"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.input), "input %q", tt.input)
	}
}
