package tee

// ParamType declares how one parameter slot of an Operation is used.
type ParamType uint8

const (
	// ParamNone marks an unused slot.
	ParamNone ParamType = iota
	// ParamValueIn carries a pair of 32-bit values to the peer.
	ParamValueIn
	// ParamValueOut receives a pair of 32-bit values from the peer.
	ParamValueOut
	// ParamMemrefIn carries Buf (Size = len(Buf)) to the peer.
	ParamMemrefIn
	// ParamMemrefOut receives bytes from the peer. On input Size is the
	// caller's capacity and Buf the destination; on return Size is the
	// actual length, or the required length when the peer reports a short
	// buffer.
	ParamMemrefOut
)

// Param is one of the four fixed parameter slots of an Operation.
type Param struct {
	Type ParamType

	// A and B are the value pair for ParamValueIn/ParamValueOut.
	A, B uint32

	// Buf and Size describe the memory reference for ParamMemrefIn/Out.
	Buf  []byte
	Size uint32
}

// Operation is the fixed four-slot parameter block of one invocation.
//
// The slot layout per command is the wire contract; transports marshal
// exactly this shape and nothing else.
type Operation struct {
	Params [4]Param
}

// ValueIn builds an input value slot.
func ValueIn(a, b uint32) Param {
	return Param{Type: ParamValueIn, A: a, B: b}
}

// ValueOut builds an output value slot.
func ValueOut() Param {
	return Param{Type: ParamValueOut}
}

// MemrefIn builds an input memory reference over buf.
func MemrefIn(buf []byte) Param {
	return Param{Type: ParamMemrefIn, Buf: buf, Size: uint32(len(buf))}
}

// MemrefOut builds an output memory reference with the given capacity.
func MemrefOut(capacity int) Param {
	if capacity < 0 {
		capacity = 0
	}
	return Param{Type: ParamMemrefOut, Buf: make([]byte, capacity), Size: uint32(capacity)}
}
