package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_FillsMissingCells(t *testing.T) {
	var tickets []Ticket
	for i := range 10 {
		state := StatePending
		if i < 4 {
			state = StateDone
		}
		tickets = append(tickets, Ticket{Timestamp: time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC), State: state})
	}
	tickets = append(tickets, Ticket{Timestamp: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), State: StateInProgress})

	table := Aggregate(tickets)

	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, table.Dates)
	assert.Equal(t, []State{StateDone, StateInProgress, StatePending}, table.States)
	assert.Equal(t, 4, table.Count("2024-01-01", StateDone))
	assert.Equal(t, 6, table.Count("2024-01-01", StatePending))
	assert.Equal(t, 0, table.Count("2024-01-01", StateInProgress))
	assert.Equal(t, 1, table.Count("2024-01-02", StateInProgress))
	assert.Equal(t, 0, table.Count("2024-01-03", StateDone))
	assert.Equal(t, []int{4, 0}, table.Series(StateDone))
}

func TestAggregate_ConservesDailyTotals(t *testing.T) {
	tickets := filterFixture()
	table := Aggregate(tickets)

	perDay := make(map[string]int)
	for _, tk := range tickets {
		perDay[tk.Timestamp.Format(DateLayout)]++
	}
	require.Len(t, table.Dates, len(perDay))
	for date, n := range perDay {
		assert.Equal(t, n, table.DateTotal(date), "date %s", date)
	}
	for _, row := range table.Counts {
		assert.Len(t, row, len(table.States))
	}
}

func TestAggregate_UsesTimestampLocation(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	tickets := []Ticket{{Timestamp: time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC).In(bangkok), State: StateDone}}

	table := Aggregate(tickets)
	assert.Equal(t, []string{"2024-01-02"}, table.Dates)
}

func TestAggregate_Empty(t *testing.T) {
	table := Aggregate(nil)
	assert.Empty(t, table.Dates)
	assert.Empty(t, table.States)
	assert.Empty(t, table.Counts)
}
