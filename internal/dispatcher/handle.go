package dispatcher

import (
	"github.com/google/uuid"
)

// RegistrationID uniquely identifies one committed registration. IDs
// correlate handles, listener events, and journal rows.
type RegistrationID string

func newRegistrationID() RegistrationID {
	return RegistrationID(uuid.NewString())
}

// Handle is the revocation token issued for one committed registration.
// Releasing it undoes exactly that registration. A Handle is owned by a
// single session or registrar and is not safe for concurrent release.
type Handle struct {
	id      RegistrationID
	release func()
}

// NewHandle wraps an undo function in a revocation token. The dispatcher
// issues handles for every registration; tests may construct their own
// when faking the registry.
func NewHandle(id RegistrationID, release func()) *Handle {
	return &Handle{id: id, release: release}
}

// ID returns the registration identifier.
func (h *Handle) ID() RegistrationID {
	return h.id
}

// Release undoes the registration. The undo function is moved out before
// it runs, so a handle releases at most once and a later call is a no-op.
func (h *Handle) Release() {
	if h.release == nil {
		return
	}
	release := h.release
	h.release = nil
	release()
}
