package tee

import "fmt"

// Status is the transport status code of one invocation. Values follow the
// GlobalPlatform TEE Client API and pass through this layer unmodified.
type Status uint32

const (
	StatusSuccess        Status = 0x00000000
	StatusGeneric        Status = 0xFFFF0000
	StatusAccessDenied   Status = 0xFFFF0001
	StatusBadState       Status = 0xFFFF0002
	StatusBadParameters  Status = 0xFFFF0006
	StatusAccessConflict Status = 0xFFFF0007
	StatusItemNotFound   Status = 0xFFFF0008
	StatusCommunication  Status = 0xFFFF000E
	StatusShortBuffer    Status = 0xFFFF0010
	StatusTargetDead     Status = 0xFFFF3024
)

// String returns a short name for well-known statuses and the hex code
// otherwise. Names are for humans; callers branch on the value.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusGeneric:
		return "generic failure"
	case StatusAccessDenied:
		return "access denied"
	case StatusBadState:
		return "bad state"
	case StatusBadParameters:
		return "bad parameters"
	case StatusAccessConflict:
		return "access conflict"
	case StatusItemNotFound:
		return "item not found"
	case StatusCommunication:
		return "communication failure"
	case StatusShortBuffer:
		return "short buffer"
	case StatusTargetDead:
		return "target dead"
	default:
		return fmt.Sprintf("status 0x%08X", uint32(s))
	}
}

// Origin tags the tier that produced a non-success status.
type Origin uint32

const (
	// OriginAPI is the client-side library layer.
	OriginAPI Origin = 1
	// OriginComms is the communication path between client and environment.
	OriginComms Origin = 2
	// OriginTEE is the trusted OS itself.
	OriginTEE Origin = 3
	// OriginTrustedApp is the trusted application that owns the storage.
	OriginTrustedApp Origin = 4
)

func (o Origin) String() string {
	switch o {
	case OriginAPI:
		return "api"
	case OriginComms:
		return "comms"
	case OriginTEE:
		return "tee"
	case OriginTrustedApp:
		return "trusted app"
	default:
		return fmt.Sprintf("origin %d", uint32(o))
	}
}

// Remote reports whether the status was produced beyond the client library,
// i.e. the operation reached the environment and was rejected there.
func (o Origin) Remote() bool {
	return o == OriginTEE || o == OriginTrustedApp
}
