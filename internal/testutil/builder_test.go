package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuilder_WithEntry(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).
		WithEntry("reg-1").
		Build()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM journal`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	var registrationID, action, kind string
	err = db.QueryRow(`SELECT registration_id, action, kind FROM journal WHERE registration_id = ?`, "reg-1").
		Scan(&registrationID, &action, &kind)
	require.NoError(t, err)
	require.Equal(t, "reg-1", registrationID)
	require.Equal(t, "added", action) // default action
	require.Equal(t, "impl", kind)    // default kind
}

func TestBuilder_WithEntry_AllOptions(t *testing.T) {
	db := NewTestDB(t)

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	NewBuilder(t, db).
		WithEntry("reg-1",
			Action("removed"),
			Kind("def"),
			Operator("math::add"),
			Namespace("math"),
			Key("cpu"),
			Debug("manifests/math.yaml"),
			CreatedAt(at),
		).
		Build()

	var action, kind, operator, namespace, key, debug string
	var createdAt int64
	err := db.QueryRow(`SELECT action, kind, operator, namespace, dispatch_key, debug, created_at FROM journal WHERE registration_id = ?`, "reg-1").
		Scan(&action, &kind, &operator, &namespace, &key, &debug, &createdAt)
	require.NoError(t, err)
	require.Equal(t, "removed", action)
	require.Equal(t, "def", kind)
	require.Equal(t, "math::add", operator)
	require.Equal(t, "math", namespace)
	require.Equal(t, "cpu", key)
	require.Equal(t, "manifests/math.yaml", debug)
	require.Equal(t, at.Unix(), createdAt)
}

func TestBuilder_InsertOrder(t *testing.T) {
	db := NewTestDB(t)

	NewBuilder(t, db).
		WithEntry("reg-1").
		WithEntry("reg-2").
		WithEntry("reg-3").
		Build()

	rows, err := db.Query(`SELECT registration_id FROM journal ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.Equal(t, []string{"reg-1", "reg-2", "reg-3"}, ids)
}

func TestBuilder_ChainMethods(t *testing.T) {
	db := NewTestDB(t)

	builder := NewBuilder(t, db)
	result := builder.
		WithEntry("reg-1").
		WithEntry("reg-2", Action("removed"))

	require.Same(t, builder, result, "chained methods should return same builder")

	result.Build()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM journal`).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}
