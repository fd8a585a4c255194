package kvpaxos

import (
	"context"
)

// Resources served by every node.
const (
	ResourcePaxos = "paxos"
	ResourceGet   = "get"
)

// Handler serves one inbound request on behalf of the caller identified by
// identity. Requests and replies are encoded messages.
type Handler interface {
	Serve(identity string, resource string, req []byte) ([]byte, error)
}

type Transporter interface {
	// Size of the cluster.
	Size() int

	// Blocking call to node `to`. A transport failure and an error
	// returned by the remote handler are both reported as err.
	Call(ctx context.Context, to int, resource string, req []byte) ([]byte, error)
}
