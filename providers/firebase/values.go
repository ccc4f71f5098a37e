package firebase

import (
	"encoding/json"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/kbukum/glowbook/model"
)

// document is a Firestore REST document.
type document struct {
	Name       string         `json:"name,omitempty"`
	Fields     map[string]any `json:"fields"`
	CreateTime string         `json:"createTime,omitempty"`
	UpdateTime string         `json:"updateTime,omitempty"`
}

// encodeValue converts a Go value into a Firestore typed value. Strings that
// hold an RFC 3339 timestamp are stored as timestamps.
func encodeValue(v any) map[string]any {
	switch val := v.(type) {
	case nil:
		return map[string]any{"nullValue": nil}
	case bool:
		return map[string]any{"booleanValue": val}
	case string:
		if isTimestamp(val) {
			return map[string]any{"timestampValue": val}
		}
		return map[string]any{"stringValue": val}
	case time.Time:
		return map[string]any{"timestampValue": val.UTC().Format(time.RFC3339Nano)}
	case int:
		return map[string]any{"integerValue": strconv.Itoa(val)}
	case int32:
		return map[string]any{"integerValue": strconv.FormatInt(int64(val), 10)}
	case int64:
		return map[string]any{"integerValue": strconv.FormatInt(val, 10)}
	case float32:
		return map[string]any{"doubleValue": float64(val)}
	case float64:
		return map[string]any{"doubleValue": val}
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return map[string]any{"integerValue": strconv.FormatInt(i, 10)}
		}
		f, _ := val.Float64()
		return map[string]any{"doubleValue": f}
	case map[string]any:
		return map[string]any{"mapValue": map[string]any{"fields": encodeFields(val)}}
	case model.Record:
		return map[string]any{"mapValue": map[string]any{"fields": encodeFields(val)}}
	case map[string]string:
		fields := make(map[string]any, len(val))
		for k, s := range val {
			fields[k] = encodeValue(s)
		}
		return map[string]any{"mapValue": map[string]any{"fields": fields}}
	case []any:
		values := make([]any, len(val))
		for i, item := range val {
			values[i] = encodeValue(item)
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	case []string:
		values := make([]any, len(val))
		for i, item := range val {
			values[i] = encodeValue(item)
		}
		return map[string]any{"arrayValue": map[string]any{"values": values}}
	default:
		return encodeReflect(v)
	}
}

// encodeReflect handles remaining slices and maps through a JSON round trip.
func encodeReflect(v any) map[string]any {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		data, err := json.Marshal(v)
		if err == nil {
			var generic any
			if json.Unmarshal(data, &generic) == nil {
				return encodeValue(generic)
			}
		}
	}
	return map[string]any{"stringValue": fmt.Sprint(v)}
}

func encodeFields(rec map[string]any) map[string]any {
	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		fields[k] = encodeValue(v)
	}
	return fields
}

// decodeValue converts a Firestore typed value back into plain Go values:
// integers become int64 and timestamps RFC 3339 strings.
func decodeValue(raw any) any {
	v, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	for kind, inner := range v {
		switch kind {
		case "nullValue":
			return nil
		case "booleanValue":
			b, _ := inner.(bool)
			return b
		case "stringValue", "referenceValue", "bytesValue":
			s, _ := inner.(string)
			return s
		case "timestampValue":
			s, _ := inner.(string)
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				return t.UTC().Format(time.RFC3339Nano)
			}
			return s
		case "integerValue":
			switch n := inner.(type) {
			case string:
				i, _ := strconv.ParseInt(n, 10, 64)
				return i
			case float64:
				return int64(n)
			}
			return int64(0)
		case "doubleValue":
			switch n := inner.(type) {
			case float64:
				return n
			case string:
				f, _ := strconv.ParseFloat(n, 64)
				return f
			}
			return 0.0
		case "mapValue":
			m, _ := inner.(map[string]any)
			fields, _ := m["fields"].(map[string]any)
			return decodeFields(fields)
		case "arrayValue":
			m, _ := inner.(map[string]any)
			values, _ := m["values"].([]any)
			out := make([]any, len(values))
			for i, item := range values {
				out[i] = decodeValue(item)
			}
			return out
		case "geoPointValue":
			return inner
		}
	}
	return nil
}

func decodeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = decodeValue(v)
	}
	return out
}

// toRecord converts a document into a Record whose id is the document's
// last path segment.
func (d *document) toRecord() model.Record {
	rec := model.Record(decodeFields(d.Fields))
	if d.Name != "" {
		rec["id"] = path.Base(d.Name)
	}
	if _, ok := rec["createdAt"]; !ok && d.CreateTime != "" {
		rec["createdAt"] = d.CreateTime
	}
	return rec
}

// fieldsOf encodes a record for writing. The id lives in the document name.
func fieldsOf(rec model.Record) map[string]any {
	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		if k == "id" {
			continue
		}
		fields[k] = encodeValue(v)
	}
	return fields
}

func fieldPaths(rec model.Record) []string {
	paths := make([]string, 0, len(rec))
	for k := range rec {
		if k != "id" {
			paths = append(paths, k)
		}
	}
	sort.Strings(paths)
	return paths
}

func isTimestamp(s string) bool {
	if len(s) < 20 || s[4] != '-' || s[10] != 'T' {
		return false
	}
	_, err := time.Parse(time.RFC3339Nano, s)
	return err == nil
}
