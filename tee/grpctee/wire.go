package grpctee

import (
	"encoding/binary"
	"fmt"

	"github.com/fusevault/fusevault/tee"
)

// Frame layout (little-endian throughout).
//
// Open reply:    status u32 | origin u32 | session u32
// Invoke request: session u32 | command u32 | 4 x param
// Invoke reply:  status u32 | origin u32 | 4 x param echo
//
// Request param:  type u8, then
//   value-in:   a u32 | b u32
//   memref-in:  n u32 | n bytes
//   memref-out: capacity u32
//   value-out, none: nothing
// Reply param:    type u8 (echoed), then
//   value-out:  a u32 | b u32
//   memref-out: size u32 | n u32 | n bytes   (n=0 unless the call succeeded)
//   others: nothing
//
// This codec is the parameter-marshaling half of the wire contract; the gRPC
// framing above it uses protobuf well-known types only, so no codegen
// toolchain is required.

// maxMemref bounds any single memref the codec will decode or allocate.
const maxMemref = 1 << 20

func appendU32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

type reader struct {
	b   []byte
	off int
}

func (r *reader) u8() (uint8, error) {
	if r.off+1 > len(r.b) {
		return 0, fmt.Errorf("grpctee: truncated frame at offset %d", r.off)
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.off+4 > len(r.b) {
		return 0, fmt.Errorf("grpctee: truncated frame at offset %d", r.off)
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, fmt.Errorf("grpctee: truncated frame at offset %d", r.off)
	}
	v := r.b[r.off : r.off+n]
	r.off += n
	return v, nil
}

func (r *reader) done() error {
	if r.off != len(r.b) {
		return fmt.Errorf("grpctee: %d trailing bytes", len(r.b)-r.off)
	}
	return nil
}

func marshalOpenReply(status tee.Status, origin tee.Origin, session uint32) []byte {
	b := make([]byte, 0, 12)
	b = appendU32(b, uint32(status))
	b = appendU32(b, uint32(origin))
	b = appendU32(b, session)
	return b
}

func unmarshalOpenReply(b []byte) (tee.Status, tee.Origin, uint32, error) {
	r := &reader{b: b}
	status, err := r.u32()
	if err != nil {
		return 0, 0, 0, err
	}
	origin, err := r.u32()
	if err != nil {
		return 0, 0, 0, err
	}
	session, err := r.u32()
	if err != nil {
		return 0, 0, 0, err
	}
	if err := r.done(); err != nil {
		return 0, 0, 0, err
	}
	return tee.Status(status), tee.Origin(origin), session, nil
}

func marshalInvokeRequest(session uint32, cmd tee.Command, op *tee.Operation) ([]byte, error) {
	b := make([]byte, 0, 64)
	b = appendU32(b, session)
	b = appendU32(b, uint32(cmd))
	for i := range op.Params {
		p := &op.Params[i]
		b = append(b, uint8(p.Type))
		switch p.Type {
		case tee.ParamNone, tee.ParamValueOut:
		case tee.ParamValueIn:
			b = appendU32(b, p.A)
			b = appendU32(b, p.B)
		case tee.ParamMemrefIn:
			n := int(p.Size)
			if n > len(p.Buf) || n > maxMemref {
				return nil, fmt.Errorf("grpctee: param %d: memref length %d out of bounds", i, n)
			}
			b = appendU32(b, uint32(n))
			b = append(b, p.Buf[:n]...)
		case tee.ParamMemrefOut:
			if p.Size > maxMemref {
				return nil, fmt.Errorf("grpctee: param %d: capacity %d out of bounds", i, p.Size)
			}
			b = appendU32(b, p.Size)
		default:
			return nil, fmt.Errorf("grpctee: param %d: unknown type %d", i, p.Type)
		}
	}
	return b, nil
}

func unmarshalInvokeRequest(b []byte) (uint32, tee.Command, *tee.Operation, error) {
	r := &reader{b: b}
	session, err := r.u32()
	if err != nil {
		return 0, 0, nil, err
	}
	cmd, err := r.u32()
	if err != nil {
		return 0, 0, nil, err
	}
	op := &tee.Operation{}
	for i := range op.Params {
		t, err := r.u8()
		if err != nil {
			return 0, 0, nil, err
		}
		p := &op.Params[i]
		p.Type = tee.ParamType(t)
		switch p.Type {
		case tee.ParamNone, tee.ParamValueOut:
		case tee.ParamValueIn:
			if p.A, err = r.u32(); err != nil {
				return 0, 0, nil, err
			}
			if p.B, err = r.u32(); err != nil {
				return 0, 0, nil, err
			}
		case tee.ParamMemrefIn:
			n, err := r.u32()
			if err != nil {
				return 0, 0, nil, err
			}
			if n > maxMemref {
				return 0, 0, nil, fmt.Errorf("grpctee: param %d: memref length %d out of bounds", i, n)
			}
			raw, err := r.bytes(int(n))
			if err != nil {
				return 0, 0, nil, err
			}
			p.Buf = make([]byte, n)
			copy(p.Buf, raw)
			p.Size = n
		case tee.ParamMemrefOut:
			capacity, err := r.u32()
			if err != nil {
				return 0, 0, nil, err
			}
			if capacity > maxMemref {
				return 0, 0, nil, fmt.Errorf("grpctee: param %d: capacity %d out of bounds", i, capacity)
			}
			p.Buf = make([]byte, capacity)
			p.Size = capacity
		default:
			return 0, 0, nil, fmt.Errorf("grpctee: param %d: unknown type %d", i, t)
		}
	}
	if err := r.done(); err != nil {
		return 0, 0, nil, err
	}
	return session, tee.Command(cmd), op, nil
}

func marshalInvokeReply(status tee.Status, origin tee.Origin, op *tee.Operation) []byte {
	b := make([]byte, 0, 64)
	b = appendU32(b, uint32(status))
	b = appendU32(b, uint32(origin))
	for i := range op.Params {
		p := &op.Params[i]
		b = append(b, uint8(p.Type))
		switch p.Type {
		case tee.ParamValueOut:
			b = appendU32(b, p.A)
			b = appendU32(b, p.B)
		case tee.ParamMemrefOut:
			b = appendU32(b, p.Size)
			// Payload travels only on success; a short-buffer reply carries
			// the required size alone.
			if status == tee.StatusSuccess {
				n := int(p.Size)
				if n > len(p.Buf) {
					n = len(p.Buf)
				}
				b = appendU32(b, uint32(n))
				b = append(b, p.Buf[:n]...)
			} else {
				b = appendU32(b, 0)
			}
		}
	}
	return b
}

// applyInvokeReply decodes a reply frame and merges output slots into the
// caller's operation, which must be the one the request was built from.
func applyInvokeReply(b []byte, op *tee.Operation) (tee.Status, tee.Origin, error) {
	r := &reader{b: b}
	status, err := r.u32()
	if err != nil {
		return 0, 0, err
	}
	origin, err := r.u32()
	if err != nil {
		return 0, 0, err
	}
	for i := range op.Params {
		t, err := r.u8()
		if err != nil {
			return 0, 0, err
		}
		p := &op.Params[i]
		if tee.ParamType(t) != p.Type {
			return 0, 0, fmt.Errorf("grpctee: param %d: type echo mismatch", i)
		}
		switch p.Type {
		case tee.ParamValueOut:
			if p.A, err = r.u32(); err != nil {
				return 0, 0, err
			}
			if p.B, err = r.u32(); err != nil {
				return 0, 0, err
			}
		case tee.ParamMemrefOut:
			size, err := r.u32()
			if err != nil {
				return 0, 0, err
			}
			n, err := r.u32()
			if err != nil {
				return 0, 0, err
			}
			raw, err := r.bytes(int(n))
			if err != nil {
				return 0, 0, err
			}
			if int(n) > len(p.Buf) {
				return 0, 0, fmt.Errorf("grpctee: param %d: payload exceeds capacity", i)
			}
			copy(p.Buf, raw)
			p.Size = size
		}
	}
	if err := r.done(); err != nil {
		return 0, 0, err
	}
	return tee.Status(status), tee.Origin(origin), nil
}
