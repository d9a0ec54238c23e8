package source

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/civic-map-service/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE tickets (
		ticket_id TEXT, timestamp TEXT, coords TEXT, state TEXT, type TEXT,
		organization TEXT, district TEXT, comment TEXT, photo TEXT
	)`)
	require.NoError(t, err)
	return db
}

func TestSQLiteLoader_Load(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO tickets VALUES
		('a', '2024-01-01 08:00:00+00', '100.52,13.72', 'เสร็จสิ้น', '{''ถนน''}', NULL, 'บางรัก', 'c1', NULL),
		('b', '2024-01-01 09:00:00+00', 'bad', 'รอรับเรื่อง', NULL, NULL, 'บางรัก', NULL, NULL),
		('c', '2024-01-02 10:00:00+00', '100.53,13.74', NULL, '{oops', '[''เขตปทุมวัน'']', 'ปทุมวัน', NULL, 'https://example.org/c.jpg')`)
	require.NoError(t, err)

	loader, err := NewSQLiteLoader(db, "tickets", testParser())
	require.NoError(t, err)

	table, err := loader.Load(context.Background(), 0)
	require.NoError(t, err)

	require.Len(t, table.Tickets, 2)
	assert.Equal(t, domain.StateDone, table.Tickets[0].State)
	assert.Equal(t, domain.LabelSet{"ถนน"}, table.Tickets[0].Categories)
	assert.Empty(t, table.Tickets[0].Organizations)
	assert.Equal(t, domain.StateUnknown, table.Tickets[1].State)
	assert.Equal(t, domain.LabelSet{"เขตปทุมวัน"}, table.Tickets[1].Organizations)
	assert.Equal(t, "https://example.org/c.jpg", table.Tickets[1].PhotoURL)

	require.Len(t, table.Rejected, 1)
	assert.Equal(t, 2, table.Rejected[0].Row)
	assert.Equal(t, 1, table.Degraded.Categories)

	limited, err := loader.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited.Tickets, 1)
}

func TestNewSQLiteLoader_RejectsBadTableName(t *testing.T) {
	_, err := NewSQLiteLoader(openTestDB(t), "tickets; DROP TABLE tickets", testParser())
	require.Error(t, err)
}
