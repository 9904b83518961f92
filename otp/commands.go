package otp

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/fusevault/fusevault/tee"
)

// AppUUID identifies the trusted application that owns the fuse-backed
// storage. Sessions are always opened against this identity.
var AppUUID = uuid.MustParse("5b9e3d1c-6f2a-4e8b-9d47-c0a1f83e72d5")

// Command identifiers.
//
// The numbering below is the wire contract with the trusted application and
// MUST NOT be renumbered without a major protocol version bump.
const (
	CmdVersion    tee.Command = 0
	CmdRead       tee.Command = 1
	CmdWrite      tee.Command = 2
	CmdInvalidate tee.Command = 3
	CmdIsValid    tee.Command = 4
	CmdIsWritten  tee.Command = 5
	CmdLock       tee.Command = 6
)

// Compiled-in expected protocol version. A peer must report an equal major
// and a minor no older than this; see Version.Compatible.
const (
	ProtocolMajor uint32 = 1
	ProtocolMinor uint32 = 2
)

// FieldID identifies one logical storage slot in the trusted application.
type FieldID uint32

// LockFieldID is the reserved field whose written-status represents the
// global lock state. The protocol deliberately reuses the is-written query
// on this field instead of defining a dedicated lock-status command.
const LockFieldID FieldID = 0

// Version is the (major, minor) protocol version reported by the peer.
type Version struct {
	Major uint32
	Minor uint32
}

// Compatible reports whether a peer at v can serve this client: the major
// must match exactly (breaking changes bump it) and the minor must be at
// least the client's (the peer may be feature-newer, never older).
func (v Version) Compatible() bool {
	return v.Major == ProtocolMajor && v.Minor >= ProtocolMinor
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
