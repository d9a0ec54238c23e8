// Command validate checks a complaint export for data integrity before it is
// served: rows the parser rejects, set-like fields that degrade, categories
// outside the vocabulary, coordinates outside the service area, and duplicate
// ticket IDs. It reads through the same source loaders the service uses.
//
// Usage:
//
//	go run ./cmd/validate -data data/full_col.csv
//	go run ./cmd/validate -data data/tickets.db -driver sqlite -table tickets -strict
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/couchcryptid/civic-map-service/internal/config"
	"github.com/couchcryptid/civic-map-service/internal/domain"
	"github.com/couchcryptid/civic-map-service/internal/source"
)

// bbox is a lon/lat rectangle.
type bbox struct {
	minLon, minLat, maxLon, maxLat float64
}

func (b bbox) contains(c domain.Coordinate) bool {
	return c.Lon >= b.minLon && c.Lon <= b.maxLon && c.Lat >= b.minLat && c.Lat <= b.maxLat
}

func parseBBox(s string) (bbox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return bbox{}, fmt.Errorf("bbox %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return bbox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return bbox{}, fmt.Errorf("bbox %q: min must be below max", s)
	}
	return bbox{minLon: v[0], minLat: v[1], maxLon: v[2], maxLat: v[3]}, nil
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	advisory bool // failures are reported but do not fail the run
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	data := flag.String("data", "", "path to the CSV export or SQLite database")
	driver := flag.String("driver", config.DriverCSV, "source driver: csv or sqlite")
	table := flag.String("table", "tickets", "SQLite table name")
	tz := flag.String("timezone", "Asia/Bangkok", "IANA zone naive timestamps are read in")
	area := flag.String("bbox", "100.30,13.45,100.95,14.00", "service area as minLon,minLat,maxLon,maxLat")
	localeFile := flag.String("locale", "", "optional YAML locale override")
	strict := flag.Bool("strict", false, "treat degraded fields and out-of-area coordinates as failures")
	flag.Parse()

	if *data == "" {
		flag.Usage()
		os.Exit(1)
	}

	serviceArea, err := parseBBox(*area)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	loc, err := time.LoadLocation(*tz)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: timezone: %v\n", err)
		os.Exit(1)
	}
	locale, err := config.LoadLocale(*localeFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	tbl, err := load(*driver, *data, *table, domain.NewParser(locale, loc))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", *data, err)
		os.Exit(1)
	}

	os.Exit(report(&tbl, locale, serviceArea, *strict))
}

func load(driver, path, table string, parser *domain.Parser) (domain.Table, error) {
	ctx := context.Background()
	switch driver {
	case config.DriverCSV:
		return source.NewCSVLoader(path, parser).Load(ctx, 0)
	case config.DriverSQLite:
		l, err := source.OpenSQLite(path, table, parser)
		if err != nil {
			return domain.Table{}, err
		}
		defer l.Close()
		return l.Load(ctx, 0)
	default:
		return domain.Table{}, fmt.Errorf("unknown driver %q", driver)
	}
}

func report(tbl *domain.Table, locale *domain.Locale, area bbox, strict bool) int {
	fmt.Println("=== Complaint Export Integrity Validation ===")
	fmt.Println()

	phases := []*phase{
		validateRows(tbl),
		validateDegradation(tbl, !strict),
		validateVocabulary(tbl, locale),
		validateArea(tbl, area, !strict),
		validateUniqueIDs(tbl),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.passed():
		case p.advisory:
			status = fmt.Sprintf("\033[33mWARN (%d)\033[0m", len(p.errors))
		default:
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-40s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d loaded, %d rejected, %d categories degraded, %d organizations degraded\n",
		len(tbl.Tickets), len(tbl.Rejected), tbl.Degraded.Categories, tbl.Degraded.Organizations)
	if lo, hi, ok := tbl.DateBounds(); ok {
		fmt.Printf("Dates: %s .. %s\n", lo.Format(domain.DateLayout), hi.Format(domain.DateLayout))
	}
	fmt.Println(stateBreakdown(tbl))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Row Integrity ──

func validateRows(tbl *domain.Table) *phase {
	p := &phase{name: "Phase 1: Row Integrity (parse)"}
	for _, re := range tbl.Rejected {
		reason := "other"
		switch {
		case errors.Is(re, domain.ErrMalformedCoordinate):
			reason = "coordinate"
		case errors.Is(re, domain.ErrMalformedTimestamp):
			reason = "timestamp"
		}
		p.errorf("row %d (%s): %s: %v", re.Row, re.ID, reason, re.Err)
	}
	return p
}

// ── Phase 2: Field Degradation ──

func validateDegradation(tbl *domain.Table, advisory bool) *phase {
	p := &phase{name: "Phase 2: Set Fields (degradation)", advisory: advisory}
	if n := tbl.Degraded.Categories; n > 0 {
		p.errorf("%d row(s) had an unparseable category set", n)
	}
	if n := tbl.Degraded.Organizations; n > 0 {
		p.errorf("%d row(s) had an unparseable organization collection", n)
	}
	return p
}

// ── Phase 3: Vocabulary ──

func validateVocabulary(tbl *domain.Table, locale *domain.Locale) *phase {
	p := &phase{name: "Phase 3: Category Vocabulary"}
	unknown := map[string]int{}
	for i := range tbl.Tickets {
		for _, c := range tbl.Tickets[i].Categories {
			if !locale.HasCategory(c) {
				unknown[c]++
			}
		}
	}
	names := make([]string, 0, len(unknown))
	for c := range unknown {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		p.errorf("category %q used by %d ticket(s) is not in the vocabulary", c, unknown[c])
	}
	return p
}

// ── Phase 4: Service Area ──

func validateArea(tbl *domain.Table, area bbox, advisory bool) *phase {
	p := &phase{name: "Phase 4: Coordinates (service area)", advisory: advisory}
	for i := range tbl.Tickets {
		t := &tbl.Tickets[i]
		if !area.contains(t.Coordinate) {
			p.errorf("ticket %s at (%g, %g) is outside the service area", t.ID, t.Coordinate.Lon, t.Coordinate.Lat)
		}
	}
	return p
}

// ── Phase 5: Unique IDs ──

func validateUniqueIDs(tbl *domain.Table) *phase {
	p := &phase{name: "Phase 5: Ticket IDs (unique)"}
	seen := make(map[string]int, len(tbl.Tickets))
	for i := range tbl.Tickets {
		id := tbl.Tickets[i].ID
		if id == "" {
			p.errorf("ticket at index %d has an empty ID", i)
			continue
		}
		seen[id]++
	}
	ids := make([]string, 0)
	for id, n := range seen {
		if n > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		p.errorf("ticket ID %q appears %d times", id, seen[id])
	}
	return p
}

// stateBreakdown counts tickets per canonical state. States outside the
// known set (passed through unmapped) are summed under other.
func stateBreakdown(tbl *domain.Table) string {
	counts := map[domain.State]int{}
	for i := range tbl.Tickets {
		counts[tbl.Tickets[i].State]++
	}
	var b strings.Builder
	b.WriteString("States:")
	for _, s := range append(domain.States(), domain.StateUnknown) {
		fmt.Fprintf(&b, " %s=%d", s, counts[s])
		delete(counts, s)
	}
	other := 0
	for _, n := range counts {
		other += n
	}
	fmt.Fprintf(&b, " other=%d", other)
	return b.String()
}
