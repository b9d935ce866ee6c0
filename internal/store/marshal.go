package store

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/galactic/internal/ir"
)

// marshalColumns converts a view's column list to canonical JSON TEXT.
func marshalColumns(cols []string) (string, error) {
	if cols == nil {
		cols = []string{}
	}
	data, err := ir.MarshalCanonical(cols)
	if err != nil {
		return "", fmt.Errorf("marshal columns: %w", err)
	}
	return string(data), nil
}

// unmarshalColumns converts JSON TEXT back to a column list.
func unmarshalColumns(data string) ([]string, error) {
	cols := []string{}
	if data == "" {
		return cols, nil
	}
	if err := json.Unmarshal([]byte(data), &cols); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	return cols, nil
}

// sortStrings sorts in byte order, matching COLLATE BINARY.
func sortStrings(s []string) {
	slices.Sort(s)
}
