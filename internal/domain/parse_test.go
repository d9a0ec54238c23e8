package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(DefaultLocale(), time.UTC)
}

func TestParseTicket_Scenario(t *testing.T) {
	d, err := newTestParser().ParseTicket(RawTicket{
		ID:         "2021-AAA",
		Timestamp:  "2021-09-03 12:51:09.453003+00",
		Coordinate: "100.50,13.75",
		State:      "",
		Categories: "{'ถนน'}",
	})
	require.NoError(t, err)

	assert.Equal(t, Coordinate{Lon: 100.50, Lat: 13.75}, d.Ticket.Coordinate)
	assert.Equal(t, StateUnknown, d.Ticket.State)
	assert.Equal(t, LabelSet{"ถนน"}, d.Ticket.Categories)
	assert.Equal(t, RGB{0, 0, 0}, NewColorAssigner(DefaultLocale()).Assign(d.Ticket.State))
	assert.False(t, d.CategoriesDegraded)
	assert.Equal(t, time.Date(2021, 9, 3, 12, 51, 9, 453003000, time.UTC), d.Ticket.Timestamp)
}

func TestParseTicket_StateAliases(t *testing.T) {
	p := newTestParser()
	cases := map[string]State{
		"เสร็จสิ้น":      StateDone,
		"กำลังดำเนินการ": StateInProgress,
		"รอรับเรื่อง":    StatePending,
		"done":           StateDone,
		"  ":             StateUnknown,
		"ส่งต่อ":         State("ส่งต่อ"),
	}
	for raw, want := range cases {
		d, err := p.ParseTicket(RawTicket{Timestamp: "2024-01-01", Coordinate: "100.5,13.7", State: raw})
		require.NoError(t, err)
		assert.Equal(t, want, d.Ticket.State, "raw state %q", raw)
	}
}

func TestParseTicket_TimestampNormalizedToLocation(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	p := NewParser(DefaultLocale(), bangkok)

	d, err := p.ParseTicket(RawTicket{Timestamp: "2024-01-01T20:00:00Z", Coordinate: "100.5,13.7"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", d.Ticket.Timestamp.Format(DateLayout))

	d, err = p.ParseTicket(RawTicket{Timestamp: "2024-01-01 08:30:00", Coordinate: "100.5,13.7"})
	require.NoError(t, err)
	assert.Equal(t, 8, d.Ticket.Timestamp.Hour())
	assert.Equal(t, bangkok, d.Ticket.Timestamp.Location())
}

func TestParseTicket_MalformedTimestamp(t *testing.T) {
	_, err := newTestParser().ParseTicket(RawTicket{Timestamp: "yesterday", Coordinate: "100.5,13.7"})
	require.ErrorIs(t, err, ErrMalformedTimestamp)
}

func TestParseCoordinate(t *testing.T) {
	c, err := ParseCoordinate(" 100.5234 , 13.7563 ")
	require.NoError(t, err)
	assert.InEpsilon(t, 100.5234, c.Lon, 1e-9)
	assert.InEpsilon(t, 13.7563, c.Lat, 1e-9)

	for _, bad := range []string{"", "100.5", "100.5,", "abc,13.7", "100.5,13.7,1", "NaN,13.7", "100.5,Inf", "200,13.7", "100.5,95"} {
		_, err := ParseCoordinate(bad)
		assert.ErrorIs(t, err, ErrMalformedCoordinate, "input %q", bad)
	}
}

func TestParseCategories(t *testing.T) {
	cases := []struct {
		in       string
		want     LabelSet
		degraded bool
	}{
		{in: "{'ถนน', 'ทางเท้า'}", want: LabelSet{"ถนน", "ทางเท้า"}},
		{in: `{"น้ำท่วม"}`, want: LabelSet{"น้ำท่วม"}},
		{in: "{'ถนน', 'ถนน',}", want: LabelSet{"ถนน"}},
		{in: "set()", want: LabelSet{}},
		{in: "", want: LabelSet{}},
		{in: "nan", want: LabelSet{}},
		{in: "{not-a-set", want: LabelSet{}, degraded: true},
		{in: "['ถนน']", want: LabelSet{}, degraded: true},
		{in: "{}", want: LabelSet{}, degraded: true},
		{in: "{'ถนน' 'คลอง'}", want: LabelSet{}, degraded: true},
		{in: "{1, 2}", want: LabelSet{}, degraded: true},
		{in: `{'it\'s'}`, want: LabelSet{"it's"}},
	}
	for _, tc := range cases {
		got, ok := ParseCategories(tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
		assert.Equal(t, !tc.degraded, ok, "input %q", tc.in)
	}
}

func TestParseOrganizations_AcceptsAnyCollection(t *testing.T) {
	for _, in := range []string{"{'เขตบางรัก'}", "['เขตบางรัก']", "('เขตบางรัก',)"} {
		got, ok := ParseOrganizations(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, LabelSet{"เขตบางรัก"}, got, "input %q", in)
	}

	got, ok := ParseOrganizations("เขตบางรัก")
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestLabelSet_RoundTrip(t *testing.T) {
	for _, in := range []string{"{'ถนน', 'ทางเท้า', 'คลอง'}", "set()", `{'a\\b', 'it\'s'}`} {
		first, ok := ParseCategories(in)
		require.True(t, ok, "input %q", in)

		second, ok := ParseCategories(first.String())
		require.True(t, ok, "reserialized %q", first.String())
		assert.Equal(t, first, second)
	}
}

func TestParseTable_IsolatesBadRows(t *testing.T) {
	rows := []RawTicket{
		{Row: 1, ID: "a", Timestamp: "2024-01-01", Coordinate: "100.5,13.7", Categories: "{'ถนน'}"},
		{Row: 2, ID: "b", Timestamp: "2024-01-01", Coordinate: "not-a-coordinate"},
		{Row: 3, ID: "c", Timestamp: "2024-01-01", Coordinate: "100.6,13.8", Categories: "{broken", Organizations: "oops"},
		{Row: 4, ID: "d", Timestamp: "??", Coordinate: "100.6,13.8"},
	}

	table := newTestParser().ParseTable(rows)

	require.Len(t, table.Tickets, 2)
	assert.Equal(t, "a", table.Tickets[0].ID)
	assert.Equal(t, "c", table.Tickets[1].ID)
	assert.Empty(t, table.Tickets[1].Categories)

	require.Len(t, table.Rejected, 2)
	assert.Equal(t, 2, table.Rejected[0].Row)
	assert.ErrorIs(t, table.Rejected[0], ErrMalformedCoordinate)
	assert.ErrorIs(t, table.Rejected[1], ErrMalformedTimestamp)

	assert.Equal(t, DegradeReport{Categories: 1, Organizations: 1}, table.Degraded)
}

func TestTable_DistrictsAndBounds(t *testing.T) {
	table := Table{Tickets: []Ticket{
		{District: "บางรัก", Timestamp: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		{District: "", Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{District: "ปทุมวัน", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{District: "บางรัก", Timestamp: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
	}}

	assert.Equal(t, []string{"บางรัก", "ปทุมวัน"}, table.Districts())
	assert.True(t, table.HasDistrict("บางรัก"))
	assert.False(t, table.HasDistrict("สาทร"))

	lo, hi, ok := table.DateBounds()
	require.True(t, ok)
	assert.Equal(t, 1, lo.Day())
	assert.Equal(t, 5, hi.Day())

	_, _, ok = (&Table{}).DateBounds()
	assert.False(t, ok)
}
