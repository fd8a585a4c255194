// Package proposer runs single Paxos rounds for one (key, version) slot.
package proposer

import (
	"context"
	"time"

	"github.com/go-distributed/kvpaxos"
	"github.com/go-distributed/kvpaxos/message"
	"github.com/go-distributed/kvpaxos/messenger"
	"github.com/golang/glog"
)

type Proposer struct {
	m *messenger.Messenger
	// Clock used for sequence numbers, which acceptors also read as a
	// timestamp.
	Now func() time.Time
}

func New(m *messenger.Messenger) *Proposer {
	return &Proposer{
		m:   m,
		Now: time.Now,
	}
}

func newPaxosReply() message.Message {
	return new(message.PaxosReply)
}

// RunRound runs one round for (key, version), proposing value unless an
// acceptor discloses an earlier accepted value, in which case that value is
// proposed instead. A nil value with nothing accepted by any replying node
// ends the round after the PROMISE phase.
//
// Only a failed PROMISE phase is reported. Whether the ACCEPT phase reached
// a quorum is not; callers confirm the outcome with a read.
func (p *Proposer) RunRound(ctx context.Context, key string, version int64, value []byte) error {
	seq := p.Now().UnixNano()

	promise := message.NewPaxosRequest(&kvpaxos.Round{
		Key:     key,
		Version: version,
		Seq:     seq,
		Phase:   kvpaxos.PromisePhase{},
	})
	replies, err := p.m.Broadcast(ctx, kvpaxos.ResourcePaxos, promise, newPaxosReply)
	if err != nil {
		glog.V(2).Infof("Proposer: promise %s:%d:%d failed: %v", key, version, seq, err)
		return err
	}

	highest := int64(0)
	for _, r := range replies {
		promised := r.Msg.(*message.PaxosReply).Promised()
		if promised.AcceptedSeq > highest {
			highest = promised.AcceptedSeq
			value = promised.Value
		}
	}
	// A disclosed value may be empty, so decide by seq, not by value.
	if value == nil && highest == 0 {
		glog.V(2).Infof("Proposer: nothing to propose for %s:%d", key, version)
		return nil
	}

	accept := message.NewPaxosRequest(&kvpaxos.Round{
		Key:     key,
		Version: version,
		Seq:     seq,
		Phase:   kvpaxos.AcceptPhase{Value: value},
	})
	if _, err := p.m.Broadcast(ctx, kvpaxos.ResourcePaxos, accept, newPaxosReply); err != nil {
		glog.V(2).Infof("Proposer: accept %s:%d:%d failed: %v", key, version, seq, err)
	}
	return nil
}
