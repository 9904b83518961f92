// Package emulator is an in-memory secure peer implementing the trusted
// application's documented storage policy.
//
// It exists so the client protocol, the tools, and any transport
// implementation can be exercised end to end without hardware: fields move
// unwritten -> written -> invalid, writes are one-time, and the global lock
// is one-way. State lives in process memory and vanishes on exit.
package emulator

import (
	"sync"

	"github.com/fusevault/fusevault/otp"
	"github.com/fusevault/fusevault/tee"
)

// DefaultMaxFieldSize bounds field payloads when Options leaves it unset.
const DefaultMaxFieldSize = 256

// Options configures a Peer.
type Options struct {
	// Major/Minor is the protocol version the peer reports. A zero Major
	// selects the client's compiled-in pair.
	Major uint32
	Minor uint32

	// MaxFieldSize bounds payload length per field; 0 means
	// DefaultMaxFieldSize.
	MaxFieldSize int
}

// Peer is the emulated trusted application. One Peer may serve many
// connections and sessions concurrently; all state is guarded by a single
// mutex so distinct sessions observe a consistent store.
type Peer struct {
	mu           sync.Mutex
	major, minor uint32
	maxFieldSize int
	fields       map[otp.FieldID]*field
}

type field struct {
	data    []byte
	written bool
	valid   bool
}

// New constructs an empty peer.
func New(opts Options) *Peer {
	major, minor := opts.Major, opts.Minor
	if major == 0 {
		major, minor = otp.ProtocolMajor, otp.ProtocolMinor
	}
	maxFieldSize := opts.MaxFieldSize
	if maxFieldSize <= 0 {
		maxFieldSize = DefaultMaxFieldSize
	}
	return &Peer{
		major:        major,
		minor:        minor,
		maxFieldSize: maxFieldSize,
		fields:       map[otp.FieldID]*field{},
	}
}

var _ tee.Transport = (*Peer)(nil)

// Connect implements tee.Transport.
func (p *Peer) Connect() (tee.Conn, error) {
	return &conn{p: p}, nil
}

type conn struct {
	p *Peer
}

func (c *conn) OpenSession(app tee.AppID) (tee.Session, error) {
	if app != otp.AppUUID {
		return nil, tee.Errf(tee.StatusItemNotFound, tee.OriginTEE, "no trusted application %s", app)
	}
	return &session{p: c.p}, nil
}

func (c *conn) Close() {}

type session struct {
	p      *Peer
	closed bool
}

func (s *session) Invoke(cmd tee.Command, op *tee.Operation) error {
	if s.closed {
		return tee.Errf(tee.StatusBadState, tee.OriginAPI, "session closed")
	}
	if op == nil {
		return tee.Errf(tee.StatusBadParameters, tee.OriginAPI, "nil operation")
	}
	return s.p.invoke(cmd, op)
}

func (s *session) Close() { s.closed = true }

func (p *Peer) invoke(cmd tee.Command, op *tee.Operation) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch cmd {
	case otp.CmdVersion:
		if err := shape(op, tee.ParamValueOut); err != nil {
			return err
		}
		op.Params[0].A = p.major
		op.Params[0].B = p.minor
		return nil

	case otp.CmdRead:
		if err := shape(op, tee.ParamValueIn, tee.ParamMemrefOut); err != nil {
			return err
		}
		return p.read(otp.FieldID(op.Params[0].A), &op.Params[1])

	case otp.CmdWrite:
		if err := shape(op, tee.ParamValueIn, tee.ParamMemrefIn); err != nil {
			return err
		}
		return p.write(otp.FieldID(op.Params[0].A), &op.Params[1])

	case otp.CmdInvalidate:
		if err := shape(op, tee.ParamValueIn); err != nil {
			return err
		}
		return p.invalidate(otp.FieldID(op.Params[0].A))

	case otp.CmdIsValid:
		if err := shape(op, tee.ParamValueIn, tee.ParamValueOut); err != nil {
			return err
		}
		f := p.fields[otp.FieldID(op.Params[0].A)]
		op.Params[1].A = boolValue(f != nil && f.written && f.valid)
		return nil

	case otp.CmdIsWritten:
		if err := shape(op, tee.ParamValueIn, tee.ParamValueOut); err != nil {
			return err
		}
		f := p.fields[otp.FieldID(op.Params[0].A)]
		op.Params[1].A = boolValue(f != nil && f.written)
		return nil

	case otp.CmdLock:
		if err := shape(op); err != nil {
			return err
		}
		return p.lock()

	default:
		return tee.Errf(tee.StatusBadParameters, tee.OriginTrustedApp, "unknown command %d", cmd)
	}
}

// isLocked is the written-status of the reserved lock field. Callers hold mu.
func (p *Peer) isLocked() bool {
	f := p.fields[otp.LockFieldID]
	return f != nil && f.written
}

func (p *Peer) read(id otp.FieldID, out *tee.Param) error {
	f := p.fields[id]
	if f == nil || !f.written {
		return tee.Errf(tee.StatusItemNotFound, tee.OriginTrustedApp, "field %d not written", id)
	}
	// Invalid fields stay readable; validity is a flag, not erasure.
	if len(f.data) > int(out.Size) {
		out.Size = uint32(len(f.data))
		return tee.Errf(tee.StatusShortBuffer, tee.OriginTrustedApp, "field %d requires %d bytes", id, len(f.data))
	}
	if len(out.Buf) < len(f.data) {
		return tee.Errf(tee.StatusBadParameters, tee.OriginTrustedApp, "output buffer shorter than declared capacity")
	}
	copy(out.Buf, f.data)
	out.Size = uint32(len(f.data))
	return nil
}

func (p *Peer) write(id otp.FieldID, in *tee.Param) error {
	if p.isLocked() {
		return tee.Errf(tee.StatusAccessDenied, tee.OriginTrustedApp, "storage locked")
	}
	if f := p.fields[id]; f != nil && f.written {
		return tee.Errf(tee.StatusAccessConflict, tee.OriginTrustedApp, "field %d already written", id)
	}
	n := int(in.Size)
	if n == 0 || n > p.maxFieldSize || n > len(in.Buf) {
		return tee.Errf(tee.StatusBadParameters, tee.OriginTrustedApp, "payload length %d out of bounds", n)
	}
	data := make([]byte, n)
	copy(data, in.Buf[:n])
	p.fields[id] = &field{data: data, written: true, valid: true}
	return nil
}

func (p *Peer) invalidate(id otp.FieldID) error {
	if p.isLocked() {
		return tee.Errf(tee.StatusAccessDenied, tee.OriginTrustedApp, "storage locked")
	}
	f := p.fields[id]
	if f == nil || !f.written {
		return tee.Errf(tee.StatusItemNotFound, tee.OriginTrustedApp, "field %d not written", id)
	}
	f.valid = false
	return nil
}

func (p *Peer) lock() error {
	if p.isLocked() {
		return tee.Errf(tee.StatusBadState, tee.OriginTrustedApp, "already locked")
	}
	p.fields[otp.LockFieldID] = &field{data: []byte{1}, written: true, valid: true}
	return nil
}

// shape enforces the fixed parameter layout of a command: the given types in
// order, remaining slots unused.
func shape(op *tee.Operation, want ...tee.ParamType) error {
	for i := range op.Params {
		got := op.Params[i].Type
		if i < len(want) {
			if got != want[i] {
				return tee.Errf(tee.StatusBadParameters, tee.OriginTrustedApp, "param %d: unexpected type", i)
			}
			continue
		}
		if got != tee.ParamNone {
			return tee.Errf(tee.StatusBadParameters, tee.OriginTrustedApp, "param %d: unexpected type", i)
		}
	}
	return nil
}

func boolValue(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
