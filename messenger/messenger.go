// Package messenger fans typed messages out to every node of a cluster and
// enforces a quorum of successful replies.
package messenger

import (
	"context"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/message"
	"github.com/golang/glog"
)

// DefaultTimeout bounds each call to a single node.
const DefaultTimeout = 2 * time.Second

// Reply is one node's successful answer.
type Reply struct {
	From int
	Msg  message.Message
}

type Messenger struct {
	tr      kvpaxos.Transporter
	quorum  int
	Timeout time.Duration
}

func New(tr kvpaxos.Transporter, quorum int) *Messenger {
	if quorum < 1 || quorum > tr.Size() {
		panic("messenger: quorum out of range")
	}
	return &Messenger{
		tr:      tr,
		quorum:  quorum,
		Timeout: DefaultTimeout,
	}
}

// NewFromConfig creates a messenger with the quorum of config.
func NewFromConfig(config *kvpaxos.Config, tr kvpaxos.Transporter) *Messenger {
	return New(tr, config.Quorum())
}

func (m *Messenger) Quorum() int {
	return m.quorum
}

func (m *Messenger) Size() int {
	return m.tr.Size()
}

// Send a message to node `to` and decode the answer into reply.
func (m *Messenger) Send(ctx context.Context, to int, resource string, msg, reply message.Message) error {
	data, err := msg.MarshalProtobuf()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	out, err := m.tr.Call(ctx, to, resource, data)
	if err != nil {
		return err
	}
	return reply.UnmarshalProtobuf(out)
}

// Broadcast sends msg to all nodes in parallel and waits for every node to
// answer or time out. Successful replies come back in node order. If fewer
// than a quorum succeeded, the error is a *kvpaxos.QuorumError holding each
// failed node's error; the successful replies are still returned.
func (m *Messenger) Broadcast(ctx context.Context, resource string, msg message.Message, newReply func() message.Message) ([]Reply, error) {
	type result struct {
		from  int
		reply message.Message
		err   error
	}

	size := m.tr.Size()
	results := make(chan result, size)
	for i := 0; i < size; i++ {
		go func(to int) {
			reply := newReply()
			err := m.Send(ctx, to, resource, msg, reply)
			results <- result{from: to, reply: reply, err: err}
		}(i)
	}

	ok := make([]message.Message, size)
	errs := make(map[int]error)
	for i := 0; i < size; i++ {
		r := <-results
		if r.err != nil {
			glog.V(2).Infof("Messenger: %s to node %d failed: %v", resource, r.from, r.err)
			errs[r.from] = r.err
			continue
		}
		ok[r.from] = r.reply
	}

	replies := make([]Reply, 0, size-len(errs))
	for i, reply := range ok {
		if reply != nil {
			replies = append(replies, Reply{From: i, Msg: reply})
		}
	}
	if len(replies) < m.quorum {
		return replies, &kvpaxos.QuorumError{
			Quorum:    m.quorum,
			Successes: len(replies),
			Errors:    errs,
		}
	}
	return replies, nil
}
