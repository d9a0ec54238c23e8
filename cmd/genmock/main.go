// Command genmock generates a synthetic Bangkok complaint export for local
// development and load testing. Tickets are scattered around a handful of
// district hotspots so clustering has something to find, and a configurable
// share of rows is deliberately malformed to exercise the rejection paths.
// Output is deterministic for a given seed.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/tickets.csv -n 5000 -seed 7
//	go run ./cmd/genmock -out data/mock/tickets.csv -sqlite-out data/mock/tickets.db
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/civic-map-service/internal/domain"
)

var header = []string{"ticket_id", "type", "organization", "comment", "photo", "coords", "district", "timestamp", "state"}

// hotspot is a district center that attracts complaints.
type hotspot struct {
	district string
	lat, lon float64
	weight   int
}

var hotspots = []hotspot{
	{district: "บางรัก", lat: 13.7300, lon: 100.5240, weight: 5},
	{district: "ปทุมวัน", lat: 13.7440, lon: 100.5340, weight: 4},
	{district: "พระนคร", lat: 13.7563, lon: 100.5018, weight: 4},
	{district: "สาทร", lat: 13.7200, lon: 100.5290, weight: 3},
	{district: "ธนบุรี", lat: 13.7250, lon: 100.4860, weight: 2},
	{district: "จตุจักร", lat: 13.8280, lon: 100.5590, weight: 3},
	{district: "บางเขน", lat: 13.8730, lon: 100.5960, weight: 2},
	{district: "ห้วยขวาง", lat: 13.7760, lon: 100.5790, weight: 2},
}

var stateLabels = []string{"เสร็จสิ้น", "เสร็จสิ้น", "กำลังดำเนินการ", "รอรับเรื่อง", ""}

var comments = []string{
	"ถนนเป็นหลุมบ่อ", "น้ำท่วมขังหลังฝนตก", "ไฟทางดับหลายดวง", "ทางเท้าชำรุด",
	"ขยะไม่ได้จัดเก็บ", "รถจอดกีดขวางทางเข้าออก", "ต้นไม้ล้มขวางถนน", "",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the CSV export")
	sqliteOut := flag.String("sqlite-out", "", "optional output path for a SQLite copy of the export")
	n := flag.Int("n", 2000, "number of rows to generate")
	seed := flag.Uint64("seed", 7, "random seed")
	days := flag.Int("days", 90, "number of days the timestamps span")
	malformed := flag.Float64("malformed", 0.02, "share of rows with a broken coordinate, timestamp, or set field")
	flag.Parse()

	if *out == "" || *n < 1 || *days < 1 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags: -out, -n, -days")
	}

	// Fixed clock so the export is reproducible.
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC))
	g := newGenerator(*seed, clock, *days, *malformed)

	rows := make([][]string, *n)
	for i := range rows {
		rows[i] = g.row(i)
	}

	if err := writeCSV(*out, rows); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	log.Printf("wrote %d rows to %s", len(rows), *out)

	if *sqliteOut != "" {
		if err := writeSQLite(*sqliteOut, rows); err != nil {
			return fmt.Errorf("writing SQLite: %w", err)
		}
		log.Printf("wrote %d rows to %s (table tickets)", len(rows), *sqliteOut)
	}

	printStats(g)
	return nil
}

type generator struct {
	rng       *rand.Rand
	start     time.Time
	span      time.Duration
	malformed float64
	locale    *domain.Locale
	totalW    int

	districtCounts map[string]int
	brokenCounts   map[string]int
}

func newGenerator(seed uint64, clock clockwork.Clock, days int, malformed float64) *generator {
	g := &generator{
		rng:            rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		start:          clock.Now().AddDate(0, 0, -days),
		span:           time.Duration(days) * 24 * time.Hour,
		malformed:      malformed,
		locale:         domain.DefaultLocale(),
		districtCounts: map[string]int{},
		brokenCounts:   map[string]int{},
	}
	for _, h := range hotspots {
		g.totalW += h.weight
	}
	return g
}

func (g *generator) pickHotspot() hotspot {
	r := g.rng.IntN(g.totalW)
	for _, h := range hotspots {
		if r < h.weight {
			return h
		}
		r -= h.weight
	}
	return hotspots[len(hotspots)-1]
}

func (g *generator) row(i int) []string {
	h := g.pickHotspot()
	g.districtCounts[h.district]++

	// Roughly 300 m of spread around the hotspot.
	lat := h.lat + g.rng.NormFloat64()*0.003
	lon := h.lon + g.rng.NormFloat64()*0.003
	ts := g.start.Add(time.Duration(g.rng.Int64N(int64(g.span)))).Truncate(time.Microsecond)

	cats := g.pickCategories()
	orgs := []string{"เขต" + h.district}
	if g.rng.IntN(4) == 0 {
		orgs = append(orgs, "สำนักการโยธา")
	}

	rec := []string{
		fmt.Sprintf("2024-%06X", i+1),
		setLiteral(cats),
		setLiteral(orgs),
		comments[g.rng.IntN(len(comments))],
		"",
		fmt.Sprintf("%.6f,%.6f", lon, lat),
		h.district,
		ts.Format("2006-01-02 15:04:05.000000-07"),
		stateLabels[g.rng.IntN(len(stateLabels))],
	}
	if g.rng.IntN(3) == 0 {
		rec[4] = fmt.Sprintf("https://storage.example.org/tickets/%s.jpg", rec[0])
	}

	if g.rng.Float64() < g.malformed {
		g.breakRow(rec)
	}
	return rec
}

func (g *generator) pickCategories() []string {
	vocab := g.locale.Categories
	cats := []string{vocab[g.rng.IntN(len(vocab))]}
	if g.rng.IntN(5) == 0 {
		cats = append(cats, vocab[g.rng.IntN(len(vocab))])
	}
	return cats
}

// breakRow damages one field in the ways real exports go wrong.
func (g *generator) breakRow(rec []string) {
	switch g.rng.IntN(4) {
	case 0:
		rec[5] = ""
		g.brokenCounts["coordinate"]++
	case 1:
		rec[7] = "not-a-date"
		g.brokenCounts["timestamp"]++
	case 2:
		rec[1] = "{" + strings.Trim(rec[1], "{}")
		g.brokenCounts["categories"]++
	default:
		rec[2] = "['" + strings.Trim(rec[2], "{}'") // unterminated list
		g.brokenCounts["organizations"]++
	}
}

func setLiteral(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = "'" + strings.ReplaceAll(l, "'", `\'`) + "'"
	}
	return "{" + strings.Join(quoted, ", ") + "}"
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func writeSQLite(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE tickets (
		ticket_id TEXT, type TEXT, organization TEXT, comment TEXT, photo TEXT,
		coords TEXT, district TEXT, timestamp TEXT, state TEXT)`); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tickets
		(ticket_id, type, organization, comment, photo, coords, district, timestamp, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		args := make([]any, len(r))
		for i, v := range r {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", r[0], err)
		}
	}
	return tx.Commit()
}

type districtCount struct {
	district string
	count    int
}

func printStats(g *generator) {
	dc := make([]districtCount, 0, len(g.districtCounts))
	total := 0
	for d, c := range g.districtCounts {
		dc = append(dc, districtCount{d, c})
		total += c
	}
	sort.Slice(dc, func(i, j int) bool {
		if dc[i].count != dc[j].count {
			return dc[i].count > dc[j].count
		}
		return dc[i].district < dc[j].district
	})

	fmt.Println("\n=== Generated export ===")
	fmt.Printf("Total: %d\n", total)
	fmt.Printf("Range: %s .. %s\n", g.start.Format(domain.DateLayout), g.start.Add(g.span).Format(domain.DateLayout))
	fmt.Printf("Districts (%d):", len(dc))
	for _, d := range dc {
		fmt.Printf(" %s=%d", d.district, d.count)
	}
	fmt.Println()
	fmt.Printf("Malformed: coordinate=%d, timestamp=%d, categories=%d, organizations=%d\n",
		g.brokenCounts["coordinate"], g.brokenCounts["timestamp"],
		g.brokenCounts["categories"], g.brokenCounts["organizations"])
}
