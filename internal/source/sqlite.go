package source

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/civic-map-service/internal/domain"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteLoader reads tickets from a SQLite table whose columns follow the CSV
// export names (ticket_id, timestamp, coords, state, type, organization,
// district, comment, photo).
type SQLiteLoader struct {
	db     *sql.DB
	query  string
	parser *domain.Parser
}

// OpenSQLite opens the database at path read-only and returns a loader for table.
func OpenSQLite(path, table string, parser *domain.Parser) (*SQLiteLoader, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite source: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite source: %w", err)
	}
	l, err := NewSQLiteLoader(db, table, parser)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// NewSQLiteLoader wraps an open database. The caller keeps ownership of db
// unless it calls Close on the loader.
func NewSQLiteLoader(db *sql.DB, table string, parser *domain.Parser) (*SQLiteLoader, error) {
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid sqlite table name %q", table)
	}
	query := fmt.Sprintf(`SELECT ticket_id, timestamp, coords, state, type, organization, district, comment, photo
		FROM %s ORDER BY rowid LIMIT ?`, table)
	return &SQLiteLoader{db: db, query: query, parser: parser}, nil
}

// Load reads up to limit rows in insertion order.
func (l *SQLiteLoader) Load(ctx context.Context, limit int) (domain.Table, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, l.query, limit)
	if err != nil {
		return domain.Table{}, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

	var raws []domain.RawTicket
	for n := 1; rows.Next(); n++ {
		var id, ts, coords, state, types, orgs, district, comment, photo sql.NullString
		if err := rows.Scan(&id, &ts, &coords, &state, &types, &orgs, &district, &comment, &photo); err != nil {
			return domain.Table{}, fmt.Errorf("scan ticket row %d: %w", n, err)
		}
		raws = append(raws, domain.RawTicket{
			Row:           n,
			ID:            id.String,
			Timestamp:     ts.String,
			Coordinate:    coords.String,
			State:         state.String,
			Categories:    types.String,
			Organizations: orgs.String,
			District:      district.String,
			Comment:       comment.String,
			PhotoURL:      photo.String,
		})
	}
	if err := rows.Err(); err != nil {
		return domain.Table{}, fmt.Errorf("iterate ticket rows: %w", err)
	}

	return l.parser.ParseTable(raws), nil
}

// Close releases the database handle.
func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}
