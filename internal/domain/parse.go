package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// timestampLayouts are tried in order. Layouts without a zone are read in the
// parser's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Parser derives Tickets from raw source rows. Timestamps are normalized to
// the parser's location.
type Parser struct {
	locale *Locale
	loc    *time.Location
}

// NewParser creates a Parser. A nil location means UTC.
func NewParser(locale *Locale, loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{locale: locale, loc: loc}
}

// Derivation is the outcome of deriving one row: the ticket plus which
// set-like fields fell back to the empty set.
type Derivation struct {
	Ticket                Ticket
	CategoriesDegraded    bool
	OrganizationsDegraded bool
}

// ParseTicket derives a Ticket from raw. Only the coordinate and the timestamp
// can fail; set-like fields degrade to the empty set and report it in the
// returned Derivation.
func (p *Parser) ParseTicket(raw RawTicket) (Derivation, error) {
	coord, err := ParseCoordinate(raw.Coordinate)
	if err != nil {
		return Derivation{}, err
	}
	ts, err := p.parseTimestamp(raw.Timestamp)
	if err != nil {
		return Derivation{}, err
	}

	categories, catOK := ParseCategories(raw.Categories)
	organizations, orgOK := ParseOrganizations(raw.Organizations)

	return Derivation{
		Ticket: Ticket{
			ID:            strings.TrimSpace(raw.ID),
			Timestamp:     ts,
			Coordinate:    coord,
			State:         p.locale.CanonicalState(normalizeLabel(raw.State)),
			Categories:    categories,
			Organizations: organizations,
			District:      normalizeLabel(raw.District),
			Comment:       raw.Comment,
			PhotoURL:      strings.TrimSpace(raw.PhotoURL),
		},
		CategoriesDegraded:    !catOK,
		OrganizationsDegraded: !orgOK,
	}, nil
}

// ParseTable derives every row. Rows that fail are collected in
// Table.Rejected; one bad row never aborts the batch.
func (p *Parser) ParseTable(rows []RawTicket) Table {
	table := Table{Tickets: make([]Ticket, 0, len(rows))}
	for _, raw := range rows {
		d, err := p.ParseTicket(raw)
		if err != nil {
			table.Rejected = append(table.Rejected, &RowError{Row: raw.Row, ID: raw.ID, Err: err})
			continue
		}
		if d.CategoriesDegraded {
			table.Degraded.Categories++
		}
		if d.OrganizationsDegraded {
			table.Degraded.Organizations++
		}
		table.Tickets = append(table.Tickets, d.Ticket)
	}
	return table
}

// ParseCoordinate splits a "<lon>,<lat>" field and parses both halves.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrMalformedCoordinate, s)
	}
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLon != nil || errLat != nil {
		return Coordinate{}, fmt.Errorf("%w: %q", ErrMalformedCoordinate, s)
	}
	if !isFinite(lon) || !isFinite(lat) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("%w: out of range %q", ErrMalformedCoordinate, s)
	}
	return Coordinate{Lon: lon, Lat: lat}, nil
}

func (p *Parser) parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t.In(p.loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// ParseCategories reads a category field. Only a literal set is accepted,
// anything else yields the empty set with ok=false. Blank input is an empty
// set and not a degradation.
func ParseCategories(s string) (LabelSet, bool) {
	return parseLabelField(s, kindSet)
}

// ParseOrganizations reads an organization field. Sets, lists, and tuples are
// all accepted.
func ParseOrganizations(s string) (LabelSet, bool) {
	return parseLabelField(s, kindSet, kindList, kindTuple)
}

func parseLabelField(s string, accept ...collectionKind) (LabelSet, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return LabelSet{}, true
	}
	kind, items, err := parseLiteralCollection(s)
	if err != nil {
		return LabelSet{}, false
	}
	for _, k := range accept {
		if k == kind {
			for i := range items {
				items[i] = normalizeLabel(items[i])
			}
			return NewLabelSet(items...), true
		}
	}
	return LabelSet{}, false
}

type collectionKind int

const (
	kindSet collectionKind = iota
	kindList
	kindTuple
	kindDict
)

var errNotLiteral = errors.New("not a literal collection of strings")

// parseLiteralCollection recognizes the textual collection literals found in
// the source export: {'a', 'b'}, set(), ['a'], ('a',), and {} (an empty dict).
// Elements must be quoted strings.
func parseLiteralCollection(s string) (collectionKind, []string, error) {
	if s == "set()" {
		return kindSet, nil, nil
	}
	if len(s) < 2 {
		return 0, nil, errNotLiteral
	}

	var kind collectionKind
	var closer byte
	switch s[0] {
	case '{':
		kind, closer = kindSet, '}'
	case '[':
		kind, closer = kindList, ']'
	case '(':
		kind, closer = kindTuple, ')'
	default:
		return 0, nil, errNotLiteral
	}
	if s[len(s)-1] != closer {
		return 0, nil, errNotLiteral
	}

	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		if kind == kindSet {
			return kindDict, nil, nil
		}
		return kind, nil, nil
	}

	var items []string
	for {
		item, rest, err := readQuoted(body)
		if err != nil {
			return 0, nil, err
		}
		items = append(items, item)
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return 0, nil, errNotLiteral
		}
		body = strings.TrimSpace(rest[1:])
		if body == "" {
			// Trailing comma.
			break
		}
	}
	return kind, items, nil
}

// readQuoted consumes one single- or double-quoted string from the front of s.
func readQuoted(s string) (string, string, error) {
	if s == "" || (s[0] != '\'' && s[0] != '"') {
		return "", "", errNotLiteral
	}
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), s[i+1:], nil
		case c == '\\':
			if i+1 >= len(s) {
				return "", "", errNotLiteral
			}
			switch s[i+1] {
			case 'n':
				b.WriteByte('\n')
				i += 2
			case 't':
				b.WriteByte('\t')
				i += 2
			default:
				r, size := utf8.DecodeRuneInString(s[i+1:])
				b.WriteRune(r)
				i += 1 + size
			}
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size
		}
	}
	return "", "", errNotLiteral
}

// normalizeLabel trims and NFC-normalizes a label so Thai strings composed
// differently upstream compare equal.
func normalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
