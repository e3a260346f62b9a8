// Package id labels the events the ledger emits.
//
// Ledger rows are keyed by connector name. IDs exist only so an audit record
// or a swallowed-failure warning can be matched across logs and audit
// backends. They are UUIDv7-based TypeIDs rendered as "prefix_suffix".
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix is the event kind encoded in an ID.
type Prefix string

const (
	PrefixAuditEvent Prefix = "audit"
	PrefixWarning    Prefix = "warn"
)

// ID is a generated event identifier. The zero value renders as "".
type ID struct {
	tid typeid.TypeID
	set bool
}

// AuditEventID labels an audit record.
type AuditEventID = ID

// WarningID labels an operator warning.
type WarningID = ID

// New generates an ID for prefix. Prefixes are compile-time constants, so
// an invalid one panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{tid: tid, set: true}
}

func NewAuditEventID() AuditEventID { return New(PrefixAuditEvent) }

func NewWarningID() WarningID { return New(PrefixWarning) }

func (i ID) String() string {
	if !i.set {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the event kind, or "" for the zero value.
func (i ID) Prefix() Prefix {
	if !i.set {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// MarshalText renders the ID in JSON audit records.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}
