package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// State is the canonical processing status of a ticket.
type State string

const (
	StateDone       State = "done"
	StateInProgress State = "in_progress"
	StatePending    State = "pending"
	StateUnknown    State = "unknown"
)

// All is the filter sentinel that disables a facet.
const All = "all"

// DateLayout is the calendar-date format used for filters and count rows.
const DateLayout = "2006-01-02"

var (
	// ErrMalformedCoordinate marks a row whose coordinate field cannot be placed on a map.
	ErrMalformedCoordinate = errors.New("malformed coordinate")
	// ErrMalformedTimestamp marks a row whose timestamp cannot be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// RawTicket is one row of the source table before derivation. Every field is
// carried as text exactly as the record source read it.
type RawTicket struct {
	Row           int
	ID            string
	Timestamp     string
	Coordinate    string // "<lon>,<lat>"
	State         string
	Categories    string // literal set, e.g. "{'ถนน', 'ทางเท้า'}"
	Organizations string
	District      string
	Comment       string
	PhotoURL      string
}

// Coordinate is a WGS-84 position in (longitude, latitude) order.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Ticket is the derived representation of one civic complaint.
type Ticket struct {
	ID            string     `json:"id"`
	Timestamp     time.Time  `json:"timestamp"`
	Coordinate    Coordinate `json:"coordinate"`
	State         State      `json:"state"`
	Categories    LabelSet   `json:"categories"`
	Organizations LabelSet   `json:"organizations"`
	District      string     `json:"district"`
	Comment       string     `json:"comment,omitempty"`
	PhotoURL      string     `json:"photo_url,omitempty"`
}

// LabelSet is a sorted, duplicate-free set of labels. The zero value is the
// empty set.
type LabelSet []string

// NewLabelSet builds a set from labels, dropping duplicates.
func NewLabelSet(labels ...string) LabelSet {
	set := make(LabelSet, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		set = append(set, l)
	}
	sort.Strings(set)
	return set
}

// Contains reports whether label is a member of the set.
func (s LabelSet) Contains(label string) bool {
	i := sort.SearchStrings(s, label)
	return i < len(s) && s[i] == label
}

// String renders the set in the same literal form the source uses, so a
// well-formed field survives parse and re-serialization unchanged in content.
func (s LabelSet) String() string {
	if len(s) == 0 {
		return "set()"
	}
	quoted := make([]string, len(s))
	for i, l := range s {
		quoted[i] = "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(l) + "'"
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}

// MarshalJSON keeps the empty set as [] rather than null.
func (s LabelSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// RowError reports a source row that could not be derived into a Ticket.
type RowError struct {
	Row int
	ID  string
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (id %q): %v", e.Row, e.ID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// DegradeReport counts set-like fields that fell back to the empty set.
type DegradeReport struct {
	Categories    int `json:"categories"`
	Organizations int `json:"organizations"`
}

// Table is the derived, in-memory ticket table for one load.
type Table struct {
	Tickets  []Ticket
	Rejected []*RowError
	Degraded DegradeReport
}

// Districts returns the distinct non-empty districts in the table, sorted.
func (t *Table) Districts() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range t.Tickets {
		d := t.Tickets[i].District
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// HasDistrict reports whether any ticket in the table belongs to district.
func (t *Table) HasDistrict(district string) bool {
	for i := range t.Tickets {
		if t.Tickets[i].District == district {
			return true
		}
	}
	return false
}

// DateBounds returns the earliest and latest ticket timestamps. ok is false
// for an empty table.
func (t *Table) DateBounds() (earliest, latest time.Time, ok bool) {
	if len(t.Tickets) == 0 {
		return time.Time{}, time.Time{}, false
	}
	earliest, latest = t.Tickets[0].Timestamp, t.Tickets[0].Timestamp
	for i := range t.Tickets[1:] {
		ts := t.Tickets[i+1].Timestamp
		if ts.Before(earliest) {
			earliest = ts
		}
		if ts.After(latest) {
			latest = ts
		}
	}
	return earliest, latest, true
}
