package grpctee

import (
	"google.golang.org/grpc/status"

	"github.com/fusevault/fusevault/tee"
)

// mapRPC turns a gRPC transport failure into a tee.Error. Anything the peer
// rejected travels inside the reply frames instead, so everything landing
// here is a fault of the communication path.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		return tee.Errf(tee.StatusCommunication, tee.OriginComms, "rpc: %s", st.Message())
	}
	return tee.Errf(tee.StatusCommunication, tee.OriginComms, "rpc: %v", err)
}
