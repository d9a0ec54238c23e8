package domain

import "sort"

// CountTable counts tickets per calendar date and state. Rows are the dates
// present, columns the states present, and every cell is filled.
type CountTable struct {
	Dates  []string `json:"dates"`
	States []State  `json:"states"`
	Counts [][]int  `json:"counts"` // Counts[date][state]
}

// Aggregate groups tickets by the calendar date of their timestamp, in the
// timestamp's own location, and by state.
func Aggregate(tickets []Ticket) CountTable {
	byDate := make(map[string]map[State]int)
	states := make(map[State]struct{})
	for i := range tickets {
		date := tickets[i].Timestamp.Format(DateLayout)
		row, ok := byDate[date]
		if !ok {
			row = make(map[State]int)
			byDate[date] = row
		}
		row[tickets[i].State]++
		states[tickets[i].State] = struct{}{}
	}

	table := CountTable{
		Dates:  make([]string, 0, len(byDate)),
		States: make([]State, 0, len(states)),
	}
	for d := range byDate {
		table.Dates = append(table.Dates, d)
	}
	for s := range states {
		table.States = append(table.States, s)
	}
	sort.Strings(table.Dates)
	sort.Slice(table.States, func(i, j int) bool { return table.States[i] < table.States[j] })

	table.Counts = make([][]int, len(table.Dates))
	for i, d := range table.Dates {
		table.Counts[i] = make([]int, len(table.States))
		for j, s := range table.States {
			table.Counts[i][j] = byDate[d][s]
		}
	}
	return table
}

// Count returns the cell for (date, state), zero when either is absent.
func (t CountTable) Count(date string, state State) int {
	i := sort.SearchStrings(t.Dates, date)
	if i == len(t.Dates) || t.Dates[i] != date {
		return 0
	}
	for j, s := range t.States {
		if s == state {
			return t.Counts[i][j]
		}
	}
	return 0
}

// DateTotal sums every state column for date.
func (t CountTable) DateTotal(date string) int {
	i := sort.SearchStrings(t.Dates, date)
	if i == len(t.Dates) || t.Dates[i] != date {
		return 0
	}
	total := 0
	for _, c := range t.Counts[i] {
		total += c
	}
	return total
}

// Series returns one count per date for state, in date order, suitable for a
// line chart.
func (t CountTable) Series(state State) []int {
	out := make([]int, len(t.Dates))
	for j, s := range t.States {
		if s != state {
			continue
		}
		for i := range t.Dates {
			out[i] = t.Counts[i][j]
		}
	}
	return out
}
