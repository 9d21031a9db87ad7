package deviceinfo

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		value, unit string
		expected    int64
	}{
		{"1", "B", 1},
		{"1", "KB", 1024},
		{"1.5", "MB", int64(1.5 * 1024 * 1024)},
		{"2", "GB", 2 * 1024 * 1024 * 1024},
		{"1", "TB", 1024 * 1024 * 1024 * 1024},
		{"1", "XB", 0},
	}

	for _, tt := range tests {
		if got := parseSize(tt.value, tt.unit); got != tt.expected {
			t.Errorf("parseSize(%s, %s) = %d, want %d", tt.value, tt.unit, got, tt.expected)
		}
	}
}
