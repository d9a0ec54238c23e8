// Package source reads persisted ticket rows into an in-memory [domain.Table].
package source

import (
	"context"
	"strings"

	"github.com/couchcryptid/civic-map-service/internal/domain"
)

// Loader reads at most limit rows from the record source and derives them.
// A limit of zero or less reads everything. The returned table must be
// treated as read-only by callers since loaders may share it.
type Loader interface {
	Load(ctx context.Context, limit int) (domain.Table, error)
}

// columnAliases maps each ticket field to the header names it may appear under.
// The first alias is the header used by the municipal export.
var columnAliases = map[string][]string{
	"id":            {"ticket_id", "id"},
	"timestamp":     {"timestamp"},
	"coordinate":    {"coords", "coordinate"},
	"state":         {"state"},
	"categories":    {"type", "categories"},
	"organizations": {"organization", "organizations"},
	"district":      {"district"},
	"comment":       {"comment"},
	"photo_url":     {"photo", "photo_url"},
}

var requiredColumns = []string{"id", "timestamp", "coordinate"}

// columnIndex resolves ticket fields to positions in a header row. Missing
// optional columns map to -1.
type columnIndex map[string]int

func resolveColumns(header []string) (columnIndex, []string) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	idx := make(columnIndex, len(columnAliases))
	for field, aliases := range columnAliases {
		idx[field] = -1
		for _, a := range aliases {
			if i, ok := pos[a]; ok {
				idx[field] = i
				break
			}
		}
	}

	var missing []string
	for _, f := range requiredColumns {
		if idx[f] < 0 {
			missing = append(missing, columnAliases[f][0])
		}
	}
	return idx, missing
}

func (c columnIndex) rawTicket(row int, record []string) domain.RawTicket {
	get := func(field string) string {
		i := c[field]
		if i < 0 || i >= len(record) {
			return ""
		}
		return record[i]
	}
	return domain.RawTicket{
		Row:           row,
		ID:            get("id"),
		Timestamp:     get("timestamp"),
		Coordinate:    get("coordinate"),
		State:         get("state"),
		Categories:    get("categories"),
		Organizations: get("organizations"),
		District:      get("district"),
		Comment:       get("comment"),
		PhotoURL:      get("photo_url"),
	}
}
