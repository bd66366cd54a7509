package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// journalColumns is the list of columns to select for journal queries.
const journalColumns = `id, registration_id, action, kind, operator, namespace, dispatch_key, debug, created_at`

// sqliteRecorder implements Recorder over a sqlite connection.
type sqliteRecorder struct {
	db *sql.DB
}

// NewRecorder creates a Recorder backed by db. The connection stays
// owned by the caller.
func NewRecorder(db *sql.DB) Recorder {
	return &sqliteRecorder{db: db}
}

var _ Recorder = (*sqliteRecorder)(nil)

// scanEntry scans a row into an Entry.
func scanEntry(scanner interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var createdAt int64
	err := scanner.Scan(
		&e.ID, &e.RegistrationID, &e.Action, &e.Kind,
		&e.Operator, &e.Namespace, &e.Key, &e.Debug, &createdAt,
	)
	if err != nil {
		return Entry{}, err
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return e, nil
}

// Record appends one entry.
func (r *sqliteRecorder) Record(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO journal (
			registration_id, action, kind, operator, namespace, dispatch_key, debug, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RegistrationID, string(e.Action), e.Kind,
		e.Operator, e.Namespace, e.Key, e.Debug, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (r *sqliteRecorder) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT ` + journalColumns + ` FROM journal`
	var args []any
	var where []string

	if f.Operator != "" {
		where = append(where, `operator = ?`)
		args = append(args, f.Operator)
	}
	if f.Kind != "" {
		where = append(where, `kind = ?`)
		args = append(args, f.Kind)
	}
	for i, cond := range where {
		if i == 0 {
			query += ` WHERE ` + cond
		} else {
			query += ` AND ` + cond
		}
	}

	query += ` ORDER BY id DESC`

	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}

	return entries, nil
}
