// Package history defines the conversation history store boundary.
//
// Each simulated participant in an interview owns one session: an ordered,
// append-only log of human/ai message pairs addressed by an opaque session
// ID. Sessions are not meant to live indefinitely; implementations expire
// entries after a fixed idle period. Implementations must be safe for
// concurrent use across sessions; a single Session handle is used by one
// goroutine at a time.
package history

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entry roles. These are the chat-history frame ("who said it to the
// model"), distinct from interview turn roles.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Entry is one persisted message in a session log.
type Entry struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Session is a scoped handle to one participant's conversation log.
// Close releases the handle and must be called when the conversation ends,
// including on failure; it is idempotent and does not delete persisted
// entries.
type Session interface {
	// ID returns the opaque session identifier.
	ID() string

	// Append persists one entry at the end of the log.
	Append(ctx context.Context, e Entry) error

	// Entries returns all persisted entries in append order.
	Entries(ctx context.Context) ([]Entry, error)

	// Close releases the handle.
	Close(ctx context.Context) error
}

// Store opens sessions by identifier. Opening an unknown identifier starts
// an empty log; opening a known one resumes it.
type Store interface {
	Open(ctx context.Context, sessionID string) (Session, error)
}

// IDGen produces fresh session identifiers. Injecting a deterministic
// generator keeps tests stable; the default is ULID over crypto/rand.
type IDGen func() string

// NewULIDGen returns the default identifier generator.
func NewULIDGen() IDGen {
	return func() string {
		return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	}
}
