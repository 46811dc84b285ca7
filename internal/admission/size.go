package admission

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// ErrInvalidSize is returned when a size token has no usable leading number.
var ErrInvalidSize = errors.New("invalid size token")

// Listing tokens use decimal unit names for binary multiples.
var binaryUnits = []struct{ listed, binary string }{
	{"GB", "GiB"},
	{"MB", "MiB"},
	{"KB", "KiB"},
}

// ParseSize converts a token such as "1 GB" or "512mb" into bytes using
// binary multiples. A token without a recognized unit yields its leading
// number as a byte count.
func ParseSize(token string) (int64, error) {
	normalized := strings.ToUpper(strings.TrimSpace(token))
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidSize)
	}

	input := ""
	for _, unit := range binaryUnits {
		if strings.HasSuffix(normalized, unit.listed) {
			input = strings.TrimSuffix(normalized, unit.listed) + unit.binary
			break
		}
	}
	if input == "" {
		input = leadingNumber(normalized)
		if input == "" {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSize, token)
		}
	}

	size, err := humanize.ParseBytes(input)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidSize, token, err)
	}
	if size > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q exceeds int64", ErrInvalidSize, token)
	}
	return int64(size), nil
}

// leadingNumber returns the digits, separators, and first decimal point at
// the start of text.
func leadingNumber(text string) string {
	end := 0
	seenDot := false
	for end < len(text) {
		c := text[end]
		switch {
		case c >= '0' && c <= '9', c == ',':
		case c == '.' && !seenDot:
			seenDot = true
		default:
			return strings.TrimRight(text[:end], ".,")
		}
		end++
	}
	return strings.TrimRight(text, ".,")
}
