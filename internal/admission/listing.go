package admission

import (
	"bufio"
	"fmt"
	"strings"
)

// ListingEntry is one file row of a dataset listing:
//
//	├─food302_Val.zip | 1 GB | 49525
type ListingEntry struct {
	Name string
	Size string
	Key  string
}

const treeGlyphs = "├└│─┬┼ \t"

const maxListingLine = 1024 * 1024

// ParseListing extracts file rows from listing output. A row has at least
// three pipe-separated fields; the last is the unit key and the one before it
// the size token. Tree-drawing prefixes are ignored and other lines skipped.
// A line longer than maxListingLine stops the scan with an error.
func ParseListing(output string) ([]ListingEntry, error) {
	var entries []ListingEntry
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), maxListingLine)
	for scanner.Scan() {
		line := strings.TrimLeft(scanner.Text(), treeGlyphs)
		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			continue
		}
		key := strings.TrimSpace(fields[len(fields)-1])
		size := strings.TrimSpace(fields[len(fields)-2])
		if key == "" || size == "" {
			continue
		}
		name := strings.TrimSpace(strings.Join(fields[:len(fields)-2], "|"))
		entries = append(entries, ListingEntry{Name: name, Size: size, Key: key})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return entries, nil
}

// FindSize returns the size token of the row whose key equals key.
func FindSize(entries []ListingEntry, key string) (ListingEntry, bool) {
	key = strings.TrimSpace(key)
	for _, entry := range entries {
		if entry.Key == key {
			return entry, true
		}
	}
	return ListingEntry{}, false
}
