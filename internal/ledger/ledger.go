// ABOUTME: Data types and sentinel errors for the conversation ledger
// ABOUTME: Defines Identity, Turn and the error contract of the storage adapter

package ledger

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested identity does not exist.
// AppendTurn surfaces it when called with an internal id that was never
// produced by ResolveIdentity; it is a contract violation, not retried.
var ErrNotFound = errors.New("identity not found")

// ErrDuplicateIdentity is the tagged conflict result of the storage adapter:
// an identity insert hit the external_id uniqueness constraint because a
// concurrent caller won the creation race. ResolveIdentity recovers from it
// internally; callers of the Ledger never see it.
var ErrDuplicateIdentity = errors.New("identity already exists")

// MaxExternalIDLen bounds caller-supplied external identifiers.
const MaxExternalIDLen = 256

// Role identifies the author side of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the two allowed roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Identity binds a caller-supplied external id (Telegram user id, web
// session id) to a stable internal id. At most one row exists per
// external_id, even under concurrent first-contact requests.
type Identity struct {
	ID         string
	ExternalID string
	CreatedAt  time.Time
}

// Turn is one immutable message within a conversation. A conversation is
// the ordered turn history for one (identity, model variant) pair; distinct
// variants never interleave. Seq is assigned by the storage layer and
// matches the real-time order in which appends committed.
type Turn struct {
	ID           string
	IdentityID   string
	ModelVariant string
	Role         Role
	Content      string
	Seq          int64
	CreatedAt    time.Time
}
