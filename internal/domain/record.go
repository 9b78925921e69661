package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ToRecord converts a tagged struct into a Record via its JSON form.
func ToRecord(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return r, nil
}

// FromRecord fills dst (a pointer to a tagged struct) from r.
func FromRecord(r Record, dst any) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// DecodeRecords converts rows into typed values.
func DecodeRecords[T any](rows []Record) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := FromRecord(r, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatValue renders a filter value the way it appears in a query string.
// Whole floats print without an exponent so that ids decoded from JSON match.
func FormatValue(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case ID:
		return string(n)
	}
	return fmt.Sprint(v)
}
