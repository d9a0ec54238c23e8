package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidParams marks a filter or view request the control surface should
// never have produced.
var ErrInvalidParams = errors.New("invalid parameters")

// FilterParams selects tickets along four independent facets. A zero Start or
// End leaves that side of the date range open; "all" disables a string facet.
type FilterParams struct {
	Start    time.Time `json:"start,omitzero"`
	End      time.Time `json:"end,omitzero"`
	State    string    `json:"state"`
	Category string    `json:"category"`
	District string    `json:"district"`
}

// DefaultFilterParams selects everything.
func DefaultFilterParams() FilterParams {
	return FilterParams{State: All, Category: All, District: All}
}

type predicate func(*Ticket) bool

// FilterEngine applies the facet predicates to a ticket collection. Calendar
// dates are interpreted in the engine's location, which must match the one
// timestamps were normalized to.
type FilterEngine struct {
	locale *Locale
	loc    *time.Location
}

// NewFilterEngine creates a FilterEngine. A nil location means UTC.
func NewFilterEngine(locale *Locale, loc *time.Location) *FilterEngine {
	if loc == nil {
		loc = time.UTC
	}
	return &FilterEngine{locale: locale, loc: loc}
}

// Validate rejects parameters outside the selectable domain: an inverted date
// range, a state outside the enumeration, or a category outside the vocabulary.
// Districts are not checked here since they depend on the loaded data.
func (f *FilterEngine) Validate(params FilterParams) error {
	if !params.Start.IsZero() && !params.End.IsZero() && f.startOfDay(params.End).Before(f.startOfDay(params.Start)) {
		return fmt.Errorf("%w: start date %s is after end date %s", ErrInvalidParams,
			params.Start.Format(DateLayout), params.End.Format(DateLayout))
	}
	if !isAll(params.State) && !validState(params.State) {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidParams, params.State)
	}
	if !isAll(params.Category) && !f.locale.HasCategory(params.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidParams, params.Category)
	}
	return nil
}

// Apply returns the tickets satisfying every active facet, preserving input
// order. The input slice is not modified. An empty result is valid.
func (f *FilterEngine) Apply(tickets []Ticket, params FilterParams) []Ticket {
	preds := f.predicates(params)
	out := make([]Ticket, 0, len(tickets))
next:
	for i := range tickets {
		for _, keep := range preds {
			if !keep(&tickets[i]) {
				continue next
			}
		}
		out = append(out, tickets[i])
	}
	return out
}

// predicates builds the active clauses in fixed order: date, state, category,
// district. Each clause is independent, so the order only affects cost.
func (f *FilterEngine) predicates(params FilterParams) []predicate {
	var preds []predicate

	if !params.Start.IsZero() {
		from := f.startOfDay(params.Start)
		preds = append(preds, func(t *Ticket) bool { return !t.Timestamp.Before(from) })
	}
	if !params.End.IsZero() {
		until := f.startOfDay(params.End).AddDate(0, 0, 1)
		preds = append(preds, func(t *Ticket) bool { return t.Timestamp.Before(until) })
	}
	if !isAll(params.State) {
		state := State(params.State)
		preds = append(preds, func(t *Ticket) bool { return t.State == state })
	}
	if !isAll(params.Category) {
		category := params.Category
		preds = append(preds, func(t *Ticket) bool { return t.Categories.Contains(category) })
	}
	if !isAll(params.District) {
		district := params.District
		preds = append(preds, func(t *Ticket) bool { return t.District == district })
	}
	return preds
}

func (f *FilterEngine) startOfDay(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, f.loc)
}

func isAll(s string) bool {
	return s == "" || s == All
}

func validState(s string) bool {
	switch State(s) {
	case StateDone, StateInProgress, StatePending, StateUnknown:
		return true
	default:
		return false
	}
}
