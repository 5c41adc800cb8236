package listing

import (
	"strings"
	"time"
)

// Schema tells the controller which record fields drive identity and filtering.
type Schema struct {
	IDField      string   // IDField identifies a row, e.g. "id".
	SearchFields []string // SearchFields are matched by free-text search.
	StatusField  string   // StatusField holds the status enum code.
	StartField   string   // StartField is the beginning of the row's date interval.
	EndField     string   // EndField is the end of the interval; empty means a single point in time.
}

// Filter narrows the rows of the loaded page. It never causes a fetch.
type Filter struct {
	Search string    `json:"search,omitempty"`
	Status *int      `json:"status,omitempty"`
	From   time.Time `json:"from,omitzero"`
	To     time.Time `json:"to,omitzero"`
}

// IsZero reports whether the filter lets every row through.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" && f.Status == nil && f.From.IsZero() && f.To.IsZero()
}

// Match applies search, status and date range to one record.
func (f Filter) Match(schema Schema, rec Record) bool {
	return f.matchSearch(schema, rec) && f.matchStatus(schema, rec) && f.matchRange(schema, rec)
}

func (f Filter) matchSearch(schema Schema, rec Record) bool {
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	if needle == "" {
		return true
	}
	for _, field := range schema.SearchFields {
		if strings.Contains(strings.ToLower(rec.String(field)), needle) {
			return true
		}
	}
	return false
}

func (f Filter) matchStatus(schema Schema, rec Record) bool {
	if f.Status == nil {
		return true
	}
	code, ok := rec.Int(schema.StatusField)
	return ok && code == *f.Status
}

// matchRange keeps rows whose interval overlaps [From, To]:
// itemEnd >= From AND itemStart <= To, with zero bounds left open.
func (f Filter) matchRange(schema Schema, rec Record) bool {
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	start, ok := rec.Time(schema.StartField)
	if !ok {
		return false
	}
	end := start
	if schema.EndField != "" {
		if parsed, found := rec.Time(schema.EndField); found {
			end = parsed
		}
	}
	if !f.From.IsZero() && end.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && start.After(f.To) {
		return false
	}
	return true
}

// Apply returns the records of page that pass the filter, in order.
func (f Filter) Apply(schema Schema, page []Record) []Record {
	visible := make([]Record, 0, len(page))
	for _, rec := range page {
		if f.Match(schema, rec) {
			visible = append(visible, rec)
		}
	}
	return visible
}
