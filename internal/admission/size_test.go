package admission

import (
	"errors"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		token string
		want  int64
	}{
		{"1 GB", 1073741824},
		{"512 MB", 536870912},
		{"900 KB", 921600},
		{"  2gb ", 2147483648},
		{"1.5 GB", 1610612736},
		{"500MB", 524288000},
		{"123", 123},
		{"42 TB", 42},
		{"7.9 bytes", 7},
		{"1,024 MB", 1073741824},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.token)
		if err != nil {
			t.Fatalf("ParseSize(%q) error: %v", tt.token, err)
		}
		if got != tt.want {
			t.Fatalf("ParseSize(%q) = %d, want %d", tt.token, got, tt.want)
		}
	}
}

func TestParseSizeRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"", "   ", "GB", "abc MB", "n/a",
		"inf GB", "NaN MB", "1e30 GB", "-5 GB", "99999999999999999999 GB", "10000000000 GB", "9999999999999999999999",
	} {
		if _, err := ParseSize(token); !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("ParseSize(%q) expected ErrInvalidSize, got %v", token, err)
		}
	}
}
