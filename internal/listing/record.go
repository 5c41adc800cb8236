package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownPageShape is returned when a payload is neither a list nor a page object.
var ErrUnknownPageShape = errors.New("payload is not a page of records")

// Record is one row of a backend list, kept as loosely typed JSON fields.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for key, value := range r {
		out[key] = value
	}
	return out
}

// Lookup reads a field by its camelCase name, falling back to PascalCase.
func (r Record) Lookup(field string) (any, bool) {
	if field == "" {
		return nil, false
	}
	if value, ok := r[field]; ok {
		return value, true
	}
	value, ok := r[strings.ToUpper(field[:1])+field[1:]]
	return value, ok
}

// String returns the field formatted as text, empty when missing.
func (r Record) String(field string) string {
	value, ok := r.Lookup(field)
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

// Int returns the field as an integer.
func (r Record) Int(field string) (int, bool) {
	value, ok := r.Lookup(field)
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case json.Number:
		n, err := typed.Int64()
		if err != nil {
			f, ferr := typed.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(n), true
	case float64:
		return int(typed), true
	case int:
		return typed, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		return n, err == nil
	default:
		return 0, false
	}
}

// Float returns the field as a floating point number.
func (r Record) Float(field string) (float64, bool) {
	value, ok := r.Lookup(field)
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Time returns the field parsed as a timestamp.
func (r Record) Time(field string) (time.Time, bool) {
	value, ok := r.Lookup(field)
	if !ok {
		return time.Time{}, false
	}
	switch typed := value.(type) {
	case time.Time:
		return typed, true
	case string:
		return ParseTime(typed)
	default:
		return time.Time{}, false
	}
}

var timeLayouts = []string{ //nolint:gochecknoglobals // accepted backend layouts
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC 3339, zone-less ISO timestamps and plain dates.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Page is one server-side page of records.
type Page struct {
	Items      []Record `json:"items"`
	TotalItems int      `json:"totalItems"`
	PageNumber int      `json:"pageNumber"`
	PageSize   int      `json:"pageSize"`
}

// ParsePage accepts a raw array or an object carrying the list under items/data/records
// and the total under totalItems/totalCount/total. A raw array counts as its own total.
func ParsePage(data json.RawMessage) (Page, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Page{Items: []Record{}}, nil
	}

	if trimmed[0] == '[' {
		items, err := decodeRecords(trimmed)
		if err != nil {
			return Page{}, err
		}
		return Page{Items: items, TotalItems: len(items)}, nil
	}

	var fields Record
	if err := decode(trimmed, &fields); err != nil {
		return Page{}, fmt.Errorf("failed to decode page: %w", err)
	}

	var page Page
	found := false
	for _, key := range []string{"items", "data", "records", "results"} {
		raw, ok := fields.Lookup(key)
		if !ok {
			continue
		}
		list, ok := raw.([]any)
		if !ok {
			continue
		}
		page.Items = toRecords(list)
		found = true
		break
	}
	if !found {
		return Page{}, ErrUnknownPageShape
	}

	page.TotalItems = firstInt(fields, len(page.Items), "totalItems", "totalCount", "total", "totalRecords")
	page.PageNumber = firstInt(fields, 0, "pageNumber", "currentPage", "page")
	page.PageSize = firstInt(fields, 0, "pageSize", "size", "limit")

	return page, nil
}

func firstInt(fields Record, fallback int, keys ...string) int {
	for _, key := range keys {
		if n, ok := fields.Int(key); ok {
			return n
		}
	}
	return fallback
}

func decodeRecords(raw []byte) ([]Record, error) {
	var list []any
	if err := decode(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode record list: %w", err)
	}
	return toRecords(list), nil
}

func toRecords(list []any) []Record {
	records := make([]Record, 0, len(list))
	for _, item := range list {
		if fields, ok := item.(map[string]any); ok {
			records = append(records, Record(fields))
		}
	}
	return records
}

func decode(raw []byte, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	return decoder.Decode(v)
}
