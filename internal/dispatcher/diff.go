package dispatcher

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/renholm/switchboard/internal/schema"
)

// duplicateDefError builds the conflict error for a second definition of
// name. When the two schema renderings differ, the message carries an
// inline diff so the caller can see exactly where they disagree.
func duplicateDefError(name schema.OperatorName, existing *schema.Schema, existingDebug string, proposed *schema.Schema, proposedDebug string) error {
	oldText := existing.String()
	newText := proposed.String()
	if oldText == newText {
		return fmt.Errorf("%w: %s (existing: %s, new: %s)", ErrDuplicateDef, name, existingDebug, proposedDebug)
	}
	return fmt.Errorf("%w: %s (existing: %s, new: %s), schemas differ: %s",
		ErrDuplicateDef, name, existingDebug, proposedDebug, schemaDiff(oldText, newText))
}

// schemaDiff renders an inline word diff between two schema strings.
// Deletions are wrapped in [-...-], insertions in {+...+}.
func schemaDiff(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-")
			b.WriteString(d.Text)
			b.WriteString("-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+")
			b.WriteString(d.Text)
			b.WriteString("+}")
		}
	}
	return b.String()
}
