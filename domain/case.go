package domain

import (
	"strings"
	"unicode"

	"github.com/kbukum/glowbook/model"
)

// ToSnake converts a camelCase field name to snake_case. Acronym runs stay
// together, so "imageURL" becomes "image_url".
func ToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ToCamel converts a snake_case field name to camelCase.
func ToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	first := true
	for _, p := range parts {
		if p == "" {
			continue
		}
		if first {
			b.WriteString(p)
			first = false
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// SnakeRecord renames the top-level keys of rec to snake_case. Nested
// values such as opening hours keep their keys.
func SnakeRecord(rec model.Record) model.Record {
	return renameKeys(rec, ToSnake)
}

// CamelRecord renames the top-level keys of rec to camelCase.
func CamelRecord(rec model.Record) model.Record {
	return renameKeys(rec, ToCamel)
}

// CamelRecords applies CamelRecord to every row.
func CamelRecords(rows []model.Record) []model.Record {
	out := make([]model.Record, len(rows))
	for i, r := range rows {
		out[i] = CamelRecord(r)
	}
	return out
}

func renameKeys(rec model.Record, rename func(string) string) model.Record {
	if rec == nil {
		return nil
	}
	out := make(model.Record, len(rec))
	for k, v := range rec {
		out[rename(k)] = v
	}
	return out
}
