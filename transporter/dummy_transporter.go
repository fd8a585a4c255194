package transporter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/message"
)

var errNodeDown = errors.New("dummy transporter: node unreachable")

type dummyNet struct {
	mu   sync.RWMutex
	down map[int]bool
}

// DummyTransporter calls in-process handlers directly. Nodes can be cut off
// and brought back to simulate partitions. Errors cross it the same way
// they cross the wire.
type DummyTransporter struct {
	Nodes    []kvpaxos.Handler
	Identity string
	net      *dummyNet
}

func NewDummyTR(nodes []kvpaxos.Handler, identity string) *DummyTransporter {
	return &DummyTransporter{
		Nodes:    nodes,
		Identity: identity,
		net:      &dummyNet{down: make(map[int]bool)},
	}
}

// WithIdentity returns a transporter for another client on the same network.
func (tr *DummyTransporter) WithIdentity(identity string) *DummyTransporter {
	return &DummyTransporter{
		Nodes:    tr.Nodes,
		Identity: identity,
		net:      tr.net,
	}
}

func (tr *DummyTransporter) Size() int {
	return len(tr.Nodes)
}

func (tr *DummyTransporter) Call(ctx context.Context, to int, resource string, req []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if to < 0 || to >= len(tr.Nodes) {
		return nil, fmt.Errorf("dummy transporter: no node %d", to)
	}
	if tr.isDown(to) {
		return nil, errNodeDown
	}
	reply, err := tr.Nodes[to].Serve(tr.Identity, resource, req)
	if err != nil {
		return nil, message.NewErrorReply(err).Err()
	}
	return reply, nil
}

// Partition makes node unreachable until Heal.
func (tr *DummyTransporter) Partition(node int) {
	tr.net.mu.Lock()
	defer tr.net.mu.Unlock()
	tr.net.down[node] = true
}

func (tr *DummyTransporter) Heal(node int) {
	tr.net.mu.Lock()
	defer tr.net.mu.Unlock()
	delete(tr.net.down, node)
}

func (tr *DummyTransporter) isDown(node int) bool {
	tr.net.mu.RLock()
	defer tr.net.mu.RUnlock()
	return tr.net.down[node]
}
