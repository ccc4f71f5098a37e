package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ToRecord converts a typed record into a generic Record. Zero timestamps
// and empty optional fields are dropped by their omitzero and omitempty tags.
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return rec, nil
}

// FromRecord decodes a generic Record into the typed value pointed to by out.
// Timestamps in the common SQL layouts are accepted alongside RFC 3339.
func FromRecord(rec Record, out any) error {
	data, err := json.Marshal(normalizeForDecode(rec))
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// Decode converts a Record into T, returning nil when rec is nil or undecodable.
func Decode[T any](rec Record) *T {
	if rec == nil {
		return nil
	}
	var out T
	if err := FromRecord(rec, &out); err != nil {
		return nil
	}
	return &out
}

// DecodeAll converts records into Ts, skipping undecodable rows.
func DecodeAll[T any](recs []Record) []T {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if v := Decode[T](rec); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
}

func normalizeForDecode(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		switch val := v.(type) {
		case string:
			out[k] = normalizeString(val)
		default:
			out[k] = v
		}
	}
	return out
}

// normalizeString rewrites timestamp strings into RFC 3339 so that
// time.Time fields decode.
func normalizeString(s string) any {
	if len(s) < 19 || s[4] != '-' || s[7] != '-' {
		return s
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(time.RFC3339Nano)
		}
	}
	return s
}

func stringify(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
