package kernel

import "github.com/gofrs/uuid"

// newMsgID generates a fresh message/session identifier. The teacher's
// original kernel derived this from a timestamp with a zeroed random
// component, which collides under concurrent message generation within the
// same clock tick; this uses real UUIDv4 generation instead.
func newMsgID() string {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails if the system CSPRNG is unreadable; fall back
		// to the nil UUID rather than panicking a worker over it.
		return uuid.Nil.String()
	}
	return id.String()
}
