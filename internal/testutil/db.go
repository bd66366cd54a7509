// Package testutil provides test utilities for journal database setup.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

// Schema mirrors the journal migrations so repository tests can run
// against an in-memory database without the migration machinery.
const Schema = `
CREATE TABLE journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	registration_id TEXT NOT NULL,
	action TEXT NOT NULL,
	kind TEXT NOT NULL,
	operator TEXT NOT NULL DEFAULT '',
	namespace TEXT NOT NULL DEFAULT '',
	dispatch_key TEXT NOT NULL DEFAULT '',
	debug TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX idx_journal_operator ON journal(operator);

CREATE INDEX idx_journal_kind ON journal(kind);
`

// NewTestDB opens an in-memory SQLite database with the journal schema
// applied. The database closes automatically when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return db
}
