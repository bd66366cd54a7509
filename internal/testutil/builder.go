package testutil

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

// Builder queues journal rows and writes them in order, so tests can
// rely on the autoincrement id reflecting insertion order.
type Builder struct {
	t       *testing.T
	db      *sql.DB
	entries []entryData
}

// NewBuilder starts an empty builder over db.
func NewBuilder(t *testing.T, db *sql.DB) *Builder {
	t.Helper()
	return &Builder{t: t, db: db}
}

// WithEntry queues one journal entry, configured by opts.
func (b *Builder) WithEntry(registrationID string, opts ...EntryOption) *Builder {
	entry := defaultEntry(registrationID)
	for _, opt := range opts {
		opt(&entry)
	}
	b.entries = append(b.entries, entry)
	return b
}

// Build writes the queued entries.
func (b *Builder) Build() {
	b.t.Helper()
	for _, e := range b.entries {
		_, err := b.db.Exec(
			`INSERT INTO journal (registration_id, action, kind, operator, namespace, dispatch_key, debug, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.registrationID, e.action, e.kind, e.operator,
			e.namespace, e.key, e.debug, e.createdAt.Unix(),
		)
		require.NoError(b.t, err)
	}
}
