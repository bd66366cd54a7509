package testutil

import "time"

// entryData holds all data for a journal row to be inserted.
type entryData struct {
	registrationID string
	action         string
	kind           string
	operator       string
	namespace      string
	key            string
	debug          string
	createdAt      time.Time
}

// defaultEntry returns an entryData with sensible defaults.
func defaultEntry(registrationID string) entryData {
	return entryData{
		registrationID: registrationID,
		action:         "added",
		kind:           "impl",
		createdAt:      time.Now(),
	}
}

// EntryOption configures a journal entry during builder setup.
type EntryOption func(*entryData)

// Action sets the entry action (added, removed).
func Action(action string) EntryOption {
	return func(e *entryData) { e.action = action }
}

// Kind sets the registration kind (def, impl, fallback).
func Kind(kind string) EntryOption {
	return func(e *entryData) { e.kind = kind }
}

// Operator sets the qualified operator name.
func Operator(name string) EntryOption {
	return func(e *entryData) { e.operator = name }
}

// Namespace sets the namespace the registration touched.
func Namespace(ns string) EntryOption {
	return func(e *entryData) { e.namespace = ns }
}

// Key sets the dispatch key the registration targeted.
func Key(key string) EntryOption {
	return func(e *entryData) { e.key = key }
}

// Debug sets the provenance string recorded with the registration.
func Debug(debug string) EntryOption {
	return func(e *entryData) { e.debug = debug }
}

// CreatedAt sets the created_at timestamp.
func CreatedAt(t time.Time) EntryOption {
	return func(e *entryData) { e.createdAt = t }
}
