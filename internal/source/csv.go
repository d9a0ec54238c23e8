package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/civic-map-service/internal/domain"
)

// CSVLoader reads tickets from a CSV export with a header row.
type CSVLoader struct {
	path   string
	parser *domain.Parser
}

// NewCSVLoader creates a loader for the CSV file at path.
func NewCSVLoader(path string, parser *domain.Parser) *CSVLoader {
	return &CSVLoader{path: path, parser: parser}
}

// Load reads up to limit data rows from the file.
func (l *CSVLoader) Load(ctx context.Context, limit int) (domain.Table, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open csv source: %w", err)
	}
	defer f.Close()

	return ReadCSV(ctx, f, l.parser, limit)
}

// ReadCSV derives tickets from CSV text. Records the CSV reader cannot split
// are rejected like any other bad row.
func ReadCSV(ctx context.Context, r io.Reader, parser *domain.Parser, limit int) (domain.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return domain.Table{}, fmt.Errorf("read csv header: %w", err)
	}
	cols, missing := resolveColumns(header)
	if len(missing) > 0 {
		return domain.Table{}, fmt.Errorf("csv source missing columns: %s", strings.Join(missing, ", "))
	}

	var raws []domain.RawTicket
	var unreadable []*domain.RowError
	for row := 1; limit <= 0 || row <= limit; row++ {
		if row%1000 == 0 && ctx.Err() != nil {
			return domain.Table{}, ctx.Err()
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			unreadable = append(unreadable, &domain.RowError{Row: row, Err: err})
			continue
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("read csv row %d: %w", row, err)
		}
		raws = append(raws, cols.rawTicket(row, record))
	}

	table := parser.ParseTable(raws)
	if len(unreadable) > 0 {
		table.Rejected = append(unreadable, table.Rejected...)
		sort.Slice(table.Rejected, func(i, j int) bool { return table.Rejected[i].Row < table.Rejected[j].Row })
	}
	return table, nil
}
