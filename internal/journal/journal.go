// Package journal keeps a sqlite-backed audit trail of dispatch table
// mutations. Every registration and release becomes one row, so startup
// ordering problems can be reconstructed after the fact.
package journal

import (
	"context"
	"time"
)

// Action distinguishes registrations from releases.
type Action string

const (
	ActionAdded   Action = "added"
	ActionRemoved Action = "removed"
)

// Entry is one journal row.
type Entry struct {
	// ID is the row id, assigned by the database.
	ID int64

	// RegistrationID correlates the added and removed rows of one
	// registration.
	RegistrationID string

	Action    Action
	Kind      string
	Operator  string
	Namespace string
	Key       string
	Debug     string
	CreatedAt time.Time
}

// Filter narrows a List query. Zero values mean "no constraint".
type Filter struct {
	// Operator matches the qualified operator name exactly.
	Operator string

	// Kind matches the registration kind (namespace, def, impl, fallback).
	Kind string

	// Limit caps the number of rows returned, newest first.
	Limit int
}

// Recorder persists journal entries.
type Recorder interface {
	// Record appends one entry. The entry's ID and CreatedAt are
	// assigned by the implementation.
	Record(ctx context.Context, e Entry) error

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]Entry, error)
}
